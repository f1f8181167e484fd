package workflow

import (
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/timing"
)

var rule = strings.Repeat("=", 70)

func banner(log logrus.FieldLogger, title string) {
	log.Info(rule)
	log.Info(title)
	log.Info(rule)
}

// summarize renders steps and total as a table on w.
func summarize(w io.Writer, title string, steps []StepResult, total time.Duration) {
	if w == nil {
		return
	}
	t := timing.New(nil)
	for _, s := range steps {
		t.Add(s.Name, s.Duration)
	}
	t.Report(w, title, total)
}

// elapsedSince measures from start using the stepper's clock.
func (s Stepper) elapsedSince(start time.Time) time.Duration {
	d := s.now().Sub(start)
	if d < 0 {
		return 0
	}
	return d
}
