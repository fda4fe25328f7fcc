package job

import "fmt"

// Status of a job. The order of the constants is the order of the lifecycle,
// a status only ever moves forward.
type Status int

const (
	Scheduled Status = iota
	InProgress
	Success
	Error
	Cancelled
)

var statusNames = [...]string{
	Scheduled:  "SCHEDULED",
	InProgress: "IN_PROGRESS",
	Success:    "SUCCESS",
	Error:      "ERROR",
	Cancelled:  "CANCELLED",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether s is final.
func (s Status) Terminal() bool {
	return s == Success || s == Error || s == Cancelled
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Policy decides what a composite job does when a child ends in error.
type Policy int

const (
	// ContinueOnError logs the failure and runs the next sibling.
	ContinueOnError Policy = iota
	// AbortOnError stops the composite and cancels the remaining children.
	AbortOnError
)
