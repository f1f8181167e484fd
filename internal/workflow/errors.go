package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a workflow failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindBuild
	KindResource
	KindRemoteCommand
	KindArtifactTransfer
)

func (k Kind) String() string {
	switch k {
	case KindBuild:
		return "build failure"
	case KindResource:
		return "resource acquisition failure"
	case KindRemoteCommand:
		return "remote command failure"
	case KindArtifactTransfer:
		return "artifact transfer failure"
	default:
		return "unknown failure"
	}
}

// ErrExitStatus is wrapped by errors for remote commands that exited
// non-zero.
var ErrExitStatus = errors.New("non-zero exit status")

// Error is a failure that aborted a workflow.
type Error struct {
	Kind Kind

	// Step names the step that failed.
	Step string

	// Message is a human-readable summary.
	Message string

	// Command is the command that failed, if any.
	Command string

	// Output is the captured output of the failed command.
	Output string

	// Duration is how long the step ran before failing.
	Duration time.Duration

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s in %q", e.Kind, e.Step)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, " [%s]", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Output != "" {
		fmt.Fprintf(&b, " (output: %q)", e.Output)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StepOf returns the failed step named by err, or "".
func StepOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}
