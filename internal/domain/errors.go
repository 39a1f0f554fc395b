package domain

import (
	"errors"
	"fmt"
)

var (
	ErrContestNotFound        = errors.New("this contest does not exist")
	ErrAlreadyExists          = errors.New("this address has already added a contest with the same name")
	ErrNotOwner               = errors.New("caller is not the contest creator")
	ErrInvalidStatus          = errors.New("invalid contest status, this action cannot be performed")
	ErrInsufficientCandidates = errors.New("this contest needs at least two movies to start")
	ErrCandidateNotFound      = errors.New("this movie title does not exist in this contest")
	ErrDuplicateCandidate     = errors.New("this movie title has already been added to this contest")
	ErrVotingClosed           = errors.New("voting period has ended")
	ErrAlreadyVoted           = errors.New("caller has already voted in this contest")
	ErrDeadlineNotReached     = errors.New("the deadline for this contest has not passed yet")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrUnsupportedOperation   = errors.New("fallback function, call a function that exists")
	ErrPaymentRejected        = errors.New("this registry does not accept payments")
)

// NotOwnerError carries the identity that attempted an owner-only operation.
type NotOwnerError struct {
	Caller Identity
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotOwner, e.Caller)
}

func (e *NotOwnerError) Is(target error) bool {
	return target == ErrNotOwner
}

type InvalidStatusError struct {
	Required Status
	Actual   Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("%s (required %s, actual %s)", ErrInvalidStatus, e.Required, e.Actual)
}

func (e *InvalidStatusError) Is(target error) bool {
	return target == ErrInvalidStatus
}

type AlreadyVotedError struct {
	Voter Identity
}

func (e *AlreadyVotedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAlreadyVoted, e.Voter)
}

func (e *AlreadyVotedError) Is(target error) bool {
	return target == ErrAlreadyVoted
}

// InvalidArgument wraps ErrInvalidArgument with the offending field.
func InvalidArgument(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidArgument, field, reason)
}
