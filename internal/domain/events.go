package domain

import "time"

type EventKind string

const (
	EventContestStarted EventKind = "contest_started"
	EventContestEnded   EventKind = "contest_ended"
	EventVoteCast       EventKind = "vote_cast"
)

// Event is a domain event committed together with the mutation that caused it.
type Event struct {
	ID         string     `json:"id"`
	Kind       EventKind  `json:"kind"`
	Contest    ContestKey `json:"contest"`
	Title      string     `json:"title,omitempty"`
	Winner     string     `json:"winner,omitempty"`
	Voter      Identity   `json:"voter,omitempty"`
	Deadline   int64      `json:"deadline,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
