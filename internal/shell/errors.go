package shell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dxmate/dxmate/internal/model"
)

var (
	ErrEmptyCommand = errors.New("empty command")
	ErrInProgress   = errors.New("command in progress")
)

// ExitError is returned when a command exits with a nonzero code and no
// retry was taken. It unwraps to model.ErrFailed.
type ExitError struct {
	Line   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Line, e.Code)
	if first, _, _ := strings.Cut(strings.TrimSpace(e.Stderr), "\n"); first != "" {
		msg += ": " + first
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return model.ErrFailed
}
