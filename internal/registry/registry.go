// Package registry owns the contest lifecycle: who may act on a contest,
// when, and exactly once.
//
// Every operation reads the clock once, validates against the stored
// contest and commits through a single Store call while holding the
// registry lock, so a rejected call never leaves a partial write behind.
package registry

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

type Registry struct {
	mu       sync.RWMutex
	store    Store
	clock    Clock
	ids      IDGenerator
	operator domain.Identity
	logger   *slog.Logger
}

type Options struct {
	Clock  Clock
	IDs    IDGenerator
	Logger *slog.Logger
	// Operator is the identity that runs this registry. It is reported by
	// Owner and grants nothing.
	Operator domain.Identity
}

func New(store Store, opts Options) *Registry {
	r := &Registry{
		store:    store,
		clock:    opts.Clock,
		ids:      opts.IDs,
		operator: opts.Operator,
		logger:   opts.Logger,
	}
	if r.clock == nil {
		r.clock = systemClock{}
	}
	if r.ids == nil {
		r.ids = uuidGenerator{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Owner returns the operator identity configured at construction.
func (r *Registry) Owner() domain.Identity {
	return r.operator
}

// ---------- Contest Store ----------

func (r *Registry) AddContest(ctx context.Context, caller domain.Identity, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.InvalidArgument("contest name", "must not be empty")
	}
	key := domain.ContestKey{Creator: caller, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if _, err := r.store.GetContest(ctx, key); err == nil {
		return domain.ErrAlreadyExists
	} else if !isNotFound(err) {
		return err
	}
	if err := r.store.CreateContest(ctx, key, now); err != nil {
		return err
	}

	r.logger.Info("contest created", "creator", caller, "name", name)
	return nil
}

// Contest returns the full stored record. Any caller may read it.
func (r *Registry) Contest(ctx context.Context, creator domain.Identity, name string) (domain.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.store.GetContest(ctx, domain.ContestKey{Creator: creator, Name: name})
}

// ContestsByCreator lists the contests created by creator.
func (r *Registry) ContestsByCreator(ctx context.Context, creator domain.Identity) ([]domain.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.store.ListContests(ctx, creator)
}

// HasVoted reports whether voter already cast a ballot in the contest.
func (r *Registry) HasVoted(ctx context.Context, creator domain.Identity, name string, voter domain.Identity) (bool, error) {
	key := domain.ContestKey{Creator: creator, Name: name}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, err := r.store.GetContest(ctx, key); err != nil {
		return false, err
	}
	return r.store.HasVoted(ctx, key, voter)
}

// loadOwned applies the checks shared by owner-only operations, in order:
// ownership, existence, status.
func (r *Registry) loadOwned(ctx context.Context, caller domain.Identity, key domain.ContestKey, required domain.Status) (domain.Contest, error) {
	if caller != key.Creator {
		return domain.Contest{}, &domain.NotOwnerError{Caller: caller}
	}
	contest, err := r.store.GetContest(ctx, key)
	if err != nil {
		return domain.Contest{}, err
	}
	if err := contest.Status.Require(required); err != nil {
		return domain.Contest{}, err
	}
	return contest, nil
}

// ---------- Candidate Ledger ----------

func (r *Registry) AddMovie(ctx context.Context, caller, creator domain.Identity, name, title string) error {
	key := domain.ContestKey{Creator: creator, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.loadOwned(ctx, caller, key, domain.StatusNotStarted); err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return domain.InvalidArgument("movie title", "must not be empty")
	}
	dup, err := r.store.HasMovie(ctx, key, title)
	if err != nil {
		return err
	}
	if dup {
		return domain.ErrDuplicateCandidate
	}
	if err := r.store.AppendMovie(ctx, key, title); err != nil {
		return err
	}

	r.logger.Info("movie added", "creator", creator, "name", name, "title", title)
	return nil
}

// GetMovies returns the movies in insertion order. Any caller may read them.
func (r *Registry) GetMovies(ctx context.Context, creator domain.Identity, name string) ([]domain.Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contest, err := r.store.GetContest(ctx, domain.ContestKey{Creator: creator, Name: name})
	if err != nil {
		return nil, err
	}
	movies := make([]domain.Movie, len(contest.Movies))
	copy(movies, contest.Movies)
	return movies, nil
}

// HasMovie reports whether title is a movie of the contest. Titles match
// exactly. Unknown contests yield domain.ErrContestNotFound.
func (r *Registry) HasMovie(ctx context.Context, creator domain.Identity, name, title string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.store.HasMovie(ctx, domain.ContestKey{Creator: creator, Name: name}, title)
}

// ---------- Lifecycle ----------

func (r *Registry) StartContest(ctx context.Context, caller, creator domain.Identity, name string, durationSeconds uint64) error {
	key := domain.ContestKey{Creator: creator, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	contest, err := r.loadOwned(ctx, caller, key, domain.StatusNotStarted)
	if err != nil {
		return err
	}
	if len(contest.Movies) < domain.MinMovies {
		return domain.ErrInsufficientCandidates
	}
	if _, err := contest.Status.Transition(domain.StatusOngoing); err != nil {
		return err
	}
	start := now.Unix()
	if durationSeconds > uint64(math.MaxInt64-start) {
		return domain.InvalidArgument("duration", "is too large")
	}
	deadline := start + int64(durationSeconds)

	event := r.newEvent(domain.EventContestStarted, key, now)
	event.Deadline = deadline
	if err := r.store.StartContest(ctx, key, deadline, event); err != nil {
		return err
	}

	r.logger.Info("contest started", "creator", creator, "name", name, "deadline", deadline)
	return nil
}

// VoteMovie records caller's single ballot for title. Checks run in the
// order: contest exists, movie exists, status, deadline, previous vote.
func (r *Registry) VoteMovie(ctx context.Context, caller, creator domain.Identity, name, title string) error {
	key := domain.ContestKey{Creator: creator, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	contest, err := r.store.GetContest(ctx, key)
	if err != nil {
		return err
	}
	found, err := r.store.HasMovie(ctx, key, title)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrCandidateNotFound
	}
	if err := contest.Status.Require(domain.StatusOngoing); err != nil {
		return err
	}
	if now.Unix() > contest.Deadline {
		return domain.ErrVotingClosed
	}
	voted, err := r.store.HasVoted(ctx, key, caller)
	if err != nil {
		return err
	}
	if voted {
		return &domain.AlreadyVotedError{Voter: caller}
	}

	event := r.newEvent(domain.EventVoteCast, key, now)
	event.Title = title
	event.Voter = caller
	if err := r.store.RecordVote(ctx, key, caller, title, event); err != nil {
		return err
	}

	r.logger.Info("vote recorded", "creator", creator, "name", name, "title", title)
	return nil
}

func (r *Registry) EndContest(ctx context.Context, caller, creator domain.Identity, name string) (string, error) {
	key := domain.ContestKey{Creator: creator, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	contest, err := r.loadOwned(ctx, caller, key, domain.StatusOngoing)
	if err != nil {
		return "", err
	}
	if now.Unix() <= contest.Deadline {
		return "", domain.ErrDeadlineNotReached
	}
	if _, err := contest.Status.Transition(domain.StatusFinished); err != nil {
		return "", err
	}

	winner := domain.DecideWinner(contest.Movies)
	event := r.newEvent(domain.EventContestEnded, key, now)
	event.Winner = winner
	if err := r.store.FinishContest(ctx, key, winner, event); err != nil {
		return "", err
	}

	r.logger.Info("contest ended", "creator", creator, "name", name, "winner", winner)
	return winner, nil
}

// GetWinner returns the stored result of a finished contest. Any caller may read it.
func (r *Registry) GetWinner(ctx context.Context, creator domain.Identity, name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contest, err := r.store.GetContest(ctx, domain.ContestKey{Creator: creator, Name: name})
	if err != nil {
		return "", err
	}
	if err := contest.Status.Require(domain.StatusFinished); err != nil {
		return "", err
	}
	return contest.Winner, nil
}

func (r *Registry) newEvent(kind domain.EventKind, key domain.ContestKey, at time.Time) domain.Event {
	return domain.Event{
		ID:         r.ids.NewID(),
		Kind:       kind,
		Contest:    key,
		OccurredAt: at.UTC(),
	}
}
