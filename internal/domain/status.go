package domain

import (
	"encoding/json"
	"fmt"
)

// Status is the contest lifecycle state. The zero value is NotStarted.
type Status uint8

const (
	StatusNotStarted Status = iota
	StatusOngoing
	StatusFinished
)

var statusNames = [...]string{
	StatusNotStarted: "not_started",
	StatusOngoing:    "ongoing",
	StatusFinished:   "finished",
}

func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", uint8(s))
	}
	return statusNames[s]
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown contest status %q", v)
}

// Require fails with InvalidStatusError unless s equals required.
func (s Status) Require(required Status) error {
	if s != required {
		return &InvalidStatusError{Required: required, Actual: s}
	}
	return nil
}

// CanTransitionTo allows only the single forward step
// NotStarted -> Ongoing -> Finished.
func (s Status) CanTransitionTo(next Status) bool {
	return next.Valid() && s.Valid() && next == s+1
}

// Transition validates a lifecycle step and returns the new status.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransitionTo(next) {
		if next == 0 || !next.Valid() {
			return s, &InvalidStatusError{Required: s, Actual: s}
		}
		return s, &InvalidStatusError{Required: next - 1, Actual: s}
	}
	return next, nil
}
