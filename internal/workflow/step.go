package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/timing"
)

var (
	passed = color.New(color.FgGreen, color.Bold).SprintFunc()
	failed = color.New(color.FgRed, color.Bold).SprintFunc()
)

// StepResult is a step that completed successfully.
type StepResult struct {
	Name      string
	Succeeded bool
	Duration  time.Duration
}

// Seconds is the step's duration in whole seconds.
func (r StepResult) Seconds() int64 {
	return timing.Seconds(r.Duration)
}

// Outcome is the result of a workflow that ran to completion.
type Outcome struct {
	Name  string
	Steps []StepResult
	Total time.Duration
}

// Stepper times and logs steps.
type Stepper struct {
	Log logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s Stepper) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s Stepper) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Run executes op and returns its result. A failing op yields an *Error
// carrying the step name and elapsed time; errors that already are
// workflow errors keep their kind.
func (s Stepper) Run(ctx context.Context, description string, op func(context.Context) error) (StepResult, error) {
	log := s.log().WithField("step", description)
	log.Infof("Running %s", description)

	start := s.now()
	err := op(ctx)
	elapsed := s.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	secs := timing.Seconds(elapsed)
	log = log.WithField("duration_s", secs)

	if err != nil {
		log = log.WithField("status", "failed")
		log.Errorf("%s FAILED: %v", description, err)
		log.Infof("%s → %s (%d seconds)", description, failed("FAILED"), secs)

		var werr *Error
		if errors.As(err, &werr) {
			if werr != err || werr.Duration != 0 {
				return StepResult{}, err
			}
			timed := *werr
			timed.Duration = elapsed
			return StepResult{}, &timed
		}
		return StepResult{}, &Error{
			Kind:     KindBuild,
			Step:     description,
			Duration: elapsed,
			Err:      err,
		}
	}

	log.WithField("status", "passed").Infof("%s → %s (%d seconds)", description, passed("PASSED"), secs)
	return StepResult{Name: description, Succeeded: true, Duration: elapsed}, nil
}
