package vm

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ErrInvalidCommand is returned when a command descriptor cannot be
// rendered safely.
var ErrInvalidCommand = errors.New("vm: invalid remote command")

// Command describes a remote command as an argument vector plus an
// optional working directory. It is rendered to a shell string only after
// validation, so arguments never need hand quoting.
type Command struct {
	// Dir is the directory to cd into first (must be absolute).
	Dir string

	// Args is the program and its arguments.
	Args []string
}

// Shell builds a Command from its arguments.
func Shell(args ...string) Command {
	return Command{Args: args}
}

// In returns a copy of c that runs inside dir.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// Validate checks that the command can be rendered.
func (c Command) Validate() error {
	if len(c.Args) == 0 {
		return fmt.Errorf("%w: no arguments", ErrInvalidCommand)
	}
	for i, arg := range c.Args {
		if arg == "" {
			return fmt.Errorf("%w: argument %d is empty", ErrInvalidCommand, i)
		}
		if strings.ContainsRune(arg, 0) {
			return fmt.Errorf("%w: argument %d contains NUL", ErrInvalidCommand, i)
		}
	}
	if c.Dir != "" && !path.IsAbs(c.Dir) {
		return fmt.Errorf("%w: directory %q is not absolute", ErrInvalidCommand, c.Dir)
	}
	return nil
}

// String renders the command for a POSIX shell.
func (c Command) String() string {
	line := shellquote.Join(c.Args...)
	if c.Dir == "" {
		return line
	}
	return "cd " + shellquote.Join(c.Dir) + " && " + line
}

// Render validates and renders the command.
func (c Command) Render() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c.String(), nil
}
