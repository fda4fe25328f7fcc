// Package prompt models the questions asked to the user: retry or cancel a
// failed command, confirm clearing an active job list and type a missing
// package installation key.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Common answers.
const (
	Retry  = "Retry"
	Cancel = "Cancel"
	Yes    = "Yes"
	No     = "No"
)

// Prompter asks the user to pick one of options. An empty choice with a nil
// error means the prompt was dismissed, callers treat it as the negative
// answer.
type Prompter interface {
	Choose(ctx context.Context, title string, options ...string) (string, error)
}

// Inputter asks for free text, e.g. a package installation key. An empty
// answer means dismissed.
type Inputter interface {
	Input(ctx context.Context, title string) (string, error)
}

// Terminal asks on a text stream. The answer is the option number or its
// label, case-insensitive. An empty line or EOF dismisses the prompt.
type Terminal struct {
	mx  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Choose(ctx context.Context, title string, options ...string) (string, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	for {
		if _, err := fmt.Fprintln(t.out, title); err != nil {
			return "", err
		}
		for i, opt := range options {
			if _, err := fmt.Fprintf(t.out, "  %d) %s\n", i+1, opt); err != nil {
				return "", err
			}
		}
		if _, err := fmt.Fprint(t.out, "> "); err != nil {
			return "", err
		}

		line, err := t.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if answer == "" {
			if err != nil && err != io.EOF {
				return "", err
			}
			return "", nil
		}
		if choice, ok := match(answer, options); ok {
			return choice, nil
		}
		if err != nil {
			return "", nil
		}
		if _, err := fmt.Fprintf(t.out, "unknown answer %q\n", answer); err != nil {
			return "", err
		}
	}
}

func (t *Terminal) Input(ctx context.Context, title string) (string, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(t.out, "%s\n> ", title); err != nil {
		return "", err
	}
	line, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func match(answer string, options []string) (string, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}
	for _, opt := range options {
		if strings.EqualFold(opt, answer) {
			return opt, true
		}
	}
	return "", false
}

// Static always answers the same choice, provided it is one of the offered
// options. Otherwise the prompt counts as dismissed.
type Static string

func (s Static) Choose(_ context.Context, _ string, options ...string) (string, error) {
	for _, opt := range options {
		if opt == string(s) {
			return opt, nil
		}
	}
	return "", nil
}

// Scripted answers with the given choices in order and dismisses once they
// run out. It records every title it was asked.
type Scripted struct {
	mx      sync.Mutex
	choices []string
	titles  []string
}

func NewScripted(choices ...string) *Scripted {
	return &Scripted{choices: choices}
}

func (s *Scripted) Choose(_ context.Context, title string, _ ...string) (string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.titles = append(s.titles, title)
	if len(s.choices) == 0 {
		return "", nil
	}
	choice := s.choices[0]
	s.choices = s.choices[1:]
	return choice, nil
}

// Input consumes the next scripted answer like Choose does.
func (s *Scripted) Input(ctx context.Context, title string) (string, error) {
	return s.Choose(ctx, title)
}

// Titles returns the questions asked so far.
func (s *Scripted) Titles() []string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]string(nil), s.titles...)
}
