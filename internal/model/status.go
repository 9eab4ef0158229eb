package model

import (
	"fmt"
)

// OperationStatus is the state of a job.
type OperationStatus int

const (
	StatusIdle OperationStatus = iota
	StatusPending
	StatusStarted
	StatusSucceeded
	StatusPartiallySucceeded
	StatusFailed
	StatusFailedToStart
	StatusError
	StatusFinished
)

var statusNames = [...]string{
	StatusIdle:               "idle",
	StatusPending:            "pending",
	StatusStarted:            "started",
	StatusSucceeded:          "succeeded",
	StatusPartiallySucceeded: "partially_succeeded",
	StatusFailed:             "failed",
	StatusFailedToStart:      "failed_to_start",
	StatusError:              "error",
	StatusFinished:           "finished",
}

func (s OperationStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("OperationStatus(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further transition is accepted.
func (s OperationStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusPartiallySucceeded, StatusFailed,
		StatusFailedToStart, StatusError, StatusFinished:
		return true
	}
	return false
}

// Failure reports whether s is one of the failed terminal states.
func (s OperationStatus) Failure() bool {
	return s == StatusFailed || s == StatusFailedToStart || s == StatusError
}

func (s OperationStatus) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown operation status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *OperationStatus) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = OperationStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown operation status %q", string(b))
}
