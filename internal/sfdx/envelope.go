// Package sfdx decodes the JSON printed by the Salesforce CLI and reads the
// project files it works on.
package sfdx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dxmate/dxmate/internal/model"
)

var ErrNoJSON = errors.New("no JSON object in command output")

// Envelope is the shape of every `sf ... --json` output.
type Envelope[T any] struct {
	Status   int      `json:"status"`
	Result   T        `json:"result"`
	Name     string   `json:"name,omitempty"`
	Message  string   `json:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// CommandError is an envelope with a nonzero status.
type CommandError struct {
	Status  int
	Name    string
	Message string
}

func (e *CommandError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("sf status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("sf status %d: %s: %s", e.Status, e.Name, e.Message)
}

func (e *CommandError) Unwrap() error {
	return model.ErrFailed
}

// Decode extracts the result of an envelope from stdout. Anything printed
// before the first '{', like update warnings, is ignored.
func Decode[T any](stdout string) (T, error) {
	var zero T
	start := strings.IndexByte(stdout, '{')
	if start < 0 {
		return zero, ErrNoJSON
	}

	var env Envelope[T]
	dec := json.NewDecoder(strings.NewReader(stdout[start:]))
	if err := dec.Decode(&env); err != nil {
		return zero, fmt.Errorf("decoding sf output: %w", err)
	}
	if env.Status != 0 {
		return zero, &CommandError{Status: env.Status, Name: env.Name, Message: env.Message}
	}
	return env.Result, nil
}
