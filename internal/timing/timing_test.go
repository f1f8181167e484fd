package timing

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestTimerMark(t *testing.T) {
	clock := newFakeClock()
	timer := New(clock.Now)

	clock.Advance(10 * time.Second)
	timer.Mark("phase1")

	clock.Advance(15 * time.Second)
	timer.Mark("phase2")

	var buf bytes.Buffer
	timer.Report(&buf, "Phases", timer.Total())
	output := buf.String()

	for _, want := range []string{"phase1", "10 s", "phase2", "15 s", "25 s"} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q:\n%s", want, output)
		}
	}
}

func TestTimerMarkAfterAdd(t *testing.T) {
	clock := newFakeClock()
	timer := New(clock.Now)

	clock.Advance(30 * time.Second)
	timer.Add("measured", 30*time.Second)

	clock.Advance(7 * time.Second)
	timer.Mark("marked")

	var buf bytes.Buffer
	timer.Report(&buf, "Mixed", timer.Total())
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.Contains(line, "marked") {
			continue
		}
		if !strings.Contains(line, " 7 s") {
			t.Errorf("mark should measure from the previous phase, got %q", line)
		}
		return
	}
	t.Errorf("report missing marked phase:\n%s", buf.String())
}

func TestTimerRealClock(t *testing.T) {
	timer := New(nil)
	time.Sleep(5 * time.Millisecond)
	if timer.Total() < 5*time.Millisecond {
		t.Errorf("total too short: %v", timer.Total())
	}
}

func TestTimerReport(t *testing.T) {
	timer := New(newFakeClock().Now)
	timer.Add("llvm-native -c check_llvm", 10*time.Second)
	timer.Add("clang-native -c check_clang", 20*time.Second)
	timer.Add("lld-native -c check_lld", 30*time.Second)

	var buf bytes.Buffer
	timer.Report(&buf, "Native lit suites", 60*time.Second)
	output := buf.String()

	for _, want := range []string{
		"Native lit suites",
		"llvm-native -c check_llvm",
		"clang-native -c check_clang",
		"lld-native -c check_lld",
		"10 s", "20 s", "30 s", "60 s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q:\n%s", want, output)
		}
	}
	if !strings.Contains(strings.ToUpper(output), "TOTAL") {
		t.Error("report missing total")
	}
}

func TestTimerEmpty(t *testing.T) {
	timer := New(nil)

	var buf bytes.Buffer
	timer.Report(&buf, "Empty", 0)
	if !strings.Contains(buf.String(), "0 s") {
		t.Error("empty report should still have a total")
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{-time.Second, 0},
		{999 * time.Millisecond, 0},
		{1500 * time.Millisecond, 1},
		{61 * time.Second, 61},
	}

	for _, tt := range tests {
		if got := Seconds(tt.d); got != tt.want {
			t.Errorf("Seconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
