// Package timing tracks named phase durations and renders timing summaries.
package timing

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// Timer tracks durations of named phases.
type Timer struct {
	now    Clock
	start  time.Time
	phases []Phase
}

// Phase represents a timed phase with name and duration.
type Phase struct {
	Name     string
	Duration time.Duration
}

// New creates a new Timer starting from now. A nil clock uses time.Now.
func New(now Clock) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, start: now()}
}

// Mark records a named phase ending now.
// Duration is time since last mark (or since start if first mark).
func (t *Timer) Mark(name string) {
	elapsed := t.now().Sub(t.start)
	t.phases = append(t.phases, Phase{Name: name, Duration: elapsed - t.totalDuration()})
}

// Add records a phase whose duration was measured elsewhere.
func (t *Timer) Add(name string, d time.Duration) {
	t.phases = append(t.phases, Phase{Name: name, Duration: d})
}

// Total returns the total elapsed time since timer creation.
func (t *Timer) Total() time.Duration {
	return t.now().Sub(t.start)
}

// Report renders the phases and the given total as a table.
func (t *Timer) Report(w io.Writer, title string, total time.Duration) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "=== %s ===\n", title)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Duration"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetCenterSeparator("")
	table.SetRowSeparator("-")

	for _, p := range t.phases {
		table.Append([]string{p.Name, FormatSeconds(p.Duration)})
	}
	table.SetFooter([]string{"Total", FormatSeconds(total)})
	table.Render()
}

// Seconds truncates d to whole seconds, never below zero.
func Seconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatSeconds renders d as "<n> s".
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%d s", Seconds(d))
}

// totalDuration returns the sum of all phase durations.
func (t *Timer) totalDuration() time.Duration {
	var total time.Duration
	for _, p := range t.phases {
		total += p.Duration
	}
	return total
}
