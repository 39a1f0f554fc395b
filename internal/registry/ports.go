package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

// Store is the durable state behind the registry. Each mutating method is
// one transaction: the row changes and the events commit together or not at all.
//
// GetContest and HasMovie return domain.ErrContestNotFound for unknown keys.
// ListContests may leave Movies nil.
type Store interface {
	GetContest(ctx context.Context, key domain.ContestKey) (domain.Contest, error)
	ListContests(ctx context.Context, creator domain.Identity) ([]domain.Contest, error)
	HasMovie(ctx context.Context, key domain.ContestKey, title string) (bool, error)
	HasVoted(ctx context.Context, key domain.ContestKey, voter domain.Identity) (bool, error)

	CreateContest(ctx context.Context, key domain.ContestKey, createdAt time.Time) error
	AppendMovie(ctx context.Context, key domain.ContestKey, title string) error
	StartContest(ctx context.Context, key domain.ContestKey, deadline int64, events ...domain.Event) error
	RecordVote(ctx context.Context, key domain.ContestKey, voter domain.Identity, title string, events ...domain.Event) error
	FinishContest(ctx context.Context, key domain.ContestKey, winner string, events ...domain.Event) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }
