package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/vm"
)

// remoteCall is one command issued in the guest.
type remoteCall struct {
	step    string
	cmd     vm.Command
	timeout time.Duration
	kind    Kind
	message string
}

// runRemote renders and runs c. Any non-zero exit or transport error is
// returned as an *Error of c.kind; output is logged before returning.
func runRemote(ctx context.Context, session vm.Session, c remoteCall, log logrus.FieldLogger) (vm.Result, error) {
	line, err := c.cmd.Render()
	if err != nil {
		return vm.Result{}, &Error{Kind: c.kind, Step: c.step, Message: c.message, Err: err}
	}

	log = log.WithField("command", line)
	res, err := session.Run(ctx, line, c.timeout)
	if err != nil {
		log.WithError(err).Error(c.message)
		return vm.Result{}, &Error{Kind: c.kind, Step: c.step, Message: c.message, Command: line, Err: err}
	}
	if !res.Succeeded() {
		log.WithField("status", res.ExitStatus).Error(c.message)
		if res.Output != "" {
			log.Error(res.Output)
		}
		return res, &Error{
			Kind:    c.kind,
			Step:    c.step,
			Message: c.message,
			Command: line,
			Output:  res.Output,
			Err:     fmt.Errorf("%w %d", ErrExitStatus, res.ExitStatus),
		}
	}
	return res, nil
}
