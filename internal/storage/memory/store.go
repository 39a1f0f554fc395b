// Package memory keeps registry state in process maps. It backs tests and
// DB_DRIVER=memory runs; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KevinTran99/MovieContest/internal/domain"
	"github.com/KevinTran99/MovieContest/internal/storage"
)

type voteKey struct {
	contest domain.ContestKey
	voter   domain.Identity
}

type outboxRecord struct {
	event     domain.Event
	published bool
}

type Store struct {
	mu sync.RWMutex

	contests map[domain.ContestKey]*domain.Contest
	titles   map[domain.ContestKey]map[string]int
	votes    map[voteKey]string
	outbox   []outboxRecord
}

func NewStore() *Store {
	return &Store{
		contests: make(map[domain.ContestKey]*domain.Contest),
		titles:   make(map[domain.ContestKey]map[string]int),
		votes:    make(map[voteKey]string),
	}
}

func (s *Store) GetContest(_ context.Context, key domain.ContestKey) (domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contests[key]
	if !ok {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	return cloneContest(c), nil
}

func (s *Store) ListContests(_ context.Context, creator domain.Identity) ([]domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Contest, 0)
	for key, c := range s.contests {
		if key.Creator == creator {
			items = append(items, cloneContest(c))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (s *Store) HasMovie(_ context.Context, key domain.ContestKey, title string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titles, ok := s.titles[key]
	if !ok {
		return false, domain.ErrContestNotFound
	}
	_, found := titles[title]
	return found, nil
}

func (s *Store) HasVoted(_ context.Context, key domain.ContestKey, voter domain.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.votes[voteKey{contest: key, voter: voter}]
	return ok, nil
}

func (s *Store) CreateContest(_ context.Context, key domain.ContestKey, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[key]; ok {
		return domain.ErrAlreadyExists
	}
	s.contests[key] = &domain.Contest{
		Creator:   key.Creator,
		Name:      key.Name,
		Exists:    true,
		Status:    domain.StatusNotStarted,
		Movies:    []domain.Movie{},
		CreatedAt: createdAt.UTC(),
	}
	s.titles[key] = make(map[string]int)
	return nil
}

func (s *Store) AppendMovie(_ context.Context, key domain.ContestKey, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contests[key]
	if !ok {
		return domain.ErrContestNotFound
	}
	if _, dup := s.titles[key][title]; dup {
		return domain.ErrDuplicateCandidate
	}
	s.titles[key][title] = len(c.Movies)
	c.Movies = append(c.Movies, domain.Movie{Title: title})
	return nil
}

func (s *Store) StartContest(_ context.Context, key domain.ContestKey, deadline int64, events ...domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contests[key]
	if !ok {
		return domain.ErrContestNotFound
	}
	next, err := c.Status.Transition(domain.StatusOngoing)
	if err != nil {
		return err
	}
	c.Status = next
	c.Deadline = deadline
	s.appendOutbox(events)
	return nil
}

func (s *Store) RecordVote(_ context.Context, key domain.ContestKey, voter domain.Identity, title string, events ...domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contests[key]
	if !ok {
		return domain.ErrContestNotFound
	}
	idx, ok := s.titles[key][title]
	if !ok {
		return domain.ErrCandidateNotFound
	}
	vk := voteKey{contest: key, voter: voter}
	if _, voted := s.votes[vk]; voted {
		return &domain.AlreadyVotedError{Voter: voter}
	}
	s.votes[vk] = title
	c.Movies[idx].VoteCount++
	s.appendOutbox(events)
	return nil
}

func (s *Store) FinishContest(_ context.Context, key domain.ContestKey, winner string, events ...domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contests[key]
	if !ok {
		return domain.ErrContestNotFound
	}
	next, err := c.Status.Transition(domain.StatusFinished)
	if err != nil {
		return err
	}
	c.Status = next
	c.Winner = winner
	s.appendOutbox(events)
	return nil
}

// ---------- Outbox ----------

func (s *Store) ListPendingEvents(_ context.Context, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Event, 0)
	for _, rec := range s.outbox {
		if rec.published {
			continue
		}
		items = append(items, rec.event)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkEventPublished(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].event.ID == id && !s.outbox[i].published {
			s.outbox[i].published = true
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) appendOutbox(events []domain.Event) {
	for _, e := range events {
		s.outbox = append(s.outbox, outboxRecord{event: e})
	}
}

func cloneContest(c *domain.Contest) domain.Contest {
	out := *c
	out.Movies = make([]domain.Movie, len(c.Movies))
	copy(out.Movies, c.Movies)
	return out
}
