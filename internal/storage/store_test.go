package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, dialect, err := Open(DriverSQLite3, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, dialect, "test-salt")
	if err := s.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s, db
}

func mustCount(t *testing.T, db *sql.DB, q string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func seedContest(t *testing.T, s *Store, key domain.ContestKey, titles ...string) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateContest(ctx, key, time.Unix(100, 0)); err != nil {
		t.Fatalf("CreateContest: %v", err)
	}
	for _, title := range titles {
		if err := s.AppendMovie(ctx, key, title); err != nil {
			t.Fatalf("AppendMovie(%q): %v", title, err)
		}
	}
}

func TestStore_CreateContest_UniquePerCreator(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key := domain.ContestKey{Creator: 1, Name: "Best 2024"}
	seedContest(t, s, key)

	if err := s.CreateContest(ctx, key, time.Now()); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got: %v", err)
	}

	// Same name under another creator is a different contest.
	if err := s.CreateContest(ctx, domain.ContestKey{Creator: 2, Name: "Best 2024"}, time.Now()); err != nil {
		t.Fatalf("CreateContest(other creator): %v", err)
	}

	c, err := s.GetContest(ctx, key)
	if err != nil {
		t.Fatalf("GetContest: %v", err)
	}
	if !c.Exists || c.Status != domain.StatusNotStarted || c.Deadline != 0 || c.Winner != "" || len(c.Movies) != 0 {
		t.Fatalf("unexpected fresh contest: %+v", c)
	}
	if !c.CreatedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("unexpected created_at: %v", c.CreatedAt)
	}
}

func TestStore_GetContest_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetContest(context.Background(), domain.ContestKey{Creator: 9, Name: "nope"})
	if !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected ErrContestNotFound, got: %v", err)
	}
}

func TestStore_AppendMovie_KeepsOrderAndRejectsDuplicates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key := domain.ContestKey{Creator: 1, Name: "c"}
	seedContest(t, s, key, "Dune", "Alien", "Heat")

	if err := s.AppendMovie(ctx, key, "Alien"); !errors.Is(err, domain.ErrDuplicateCandidate) {
		t.Fatalf("expected ErrDuplicateCandidate, got: %v", err)
	}
	if err := s.AppendMovie(ctx, domain.ContestKey{Creator: 1, Name: "missing"}, "X"); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected ErrContestNotFound, got: %v", err)
	}

	c, err := s.GetContest(ctx, key)
	if err != nil {
		t.Fatalf("GetContest: %v", err)
	}
	want := []string{"Dune", "Alien", "Heat"}
	if len(c.Movies) != len(want) {
		t.Fatalf("expected %d movies, got %+v", len(want), c.Movies)
	}
	for i, title := range want {
		if c.Movies[i].Title != title || c.Movies[i].VoteCount != 0 {
			t.Fatalf("movie %d: got %+v, want %q with 0 votes", i, c.Movies[i], title)
		}
	}
}

func TestStore_HasMovie(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key := domain.ContestKey{Creator: 1, Name: "c"}
	seedContest(t, s, key, "Dune", "Alien")
	seedContest(t, s, domain.ContestKey{Creator: 2, Name: "c"}, "Heat")
	seedContest(t, s, domain.ContestKey{Creator: 1, Name: "empty"})

	tests := []struct {
		name  string
		key   domain.ContestKey
		title string
		want  bool
	}{
		{"present", key, "Alien", true},
		{"absent", key, "Heat", false},
		{"case sensitive", key, "dune", false},
		{"empty contest", domain.ContestKey{Creator: 1, Name: "empty"}, "Dune", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.HasMovie(ctx, tt.key, tt.title)
			if err != nil {
				t.Fatalf("HasMovie: %v", err)
			}
			if got != tt.want {
				t.Fatalf("HasMovie(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}

	if _, err := s.HasMovie(ctx, domain.ContestKey{Creator: 3, Name: "c"}, "Dune"); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected ErrContestNotFound, got: %v", err)
	}
}

func TestStore_RecordVote_OncePerVoter(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	key := domain.ContestKey{Creator: 1, Name: "c"}
	seedContest(t, s, key, "A", "B")
	if err := s.StartContest(ctx, key, 1000); err != nil {
		t.Fatalf("StartContest: %v", err)
	}

	ev := domain.Event{ID: "e1", Kind: domain.EventVoteCast, Contest: key, Title: "B", Voter: 42, OccurredAt: time.Unix(200, 0)}
	if err := s.RecordVote(ctx, key, 42, "B", ev); err != nil {
		t.Fatalf("RecordVote: %v", err)
	}

	err := s.RecordVote(ctx, key, 42, "A")
	var already *domain.AlreadyVotedError
	if !errors.As(err, &already) || already.Voter != 42 {
		t.Fatalf("expected AlreadyVotedError for 42, got: %v", err)
	}
	if !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("expected errors.Is ErrAlreadyVoted")
	}

	if err := s.RecordVote(ctx, key, 43, "Missing"); !errors.Is(err, domain.ErrCandidateNotFound) {
		t.Fatalf("expected ErrCandidateNotFound, got: %v", err)
	}

	voted, err := s.HasVoted(ctx, key, 42)
	if err != nil || !voted {
		t.Fatalf("HasVoted(42) = %v, %v", voted, err)
	}
	voted, err = s.HasVoted(ctx, key, 43)
	if err != nil || voted {
		t.Fatalf("HasVoted(43) = %v, %v", voted, err)
	}

	c, _ := s.GetContest(ctx, key)
	if c.Movies[0].VoteCount != 0 || c.Movies[1].VoteCount != 1 {
		t.Fatalf("unexpected counts: %+v", c.Movies)
	}

	if got := mustCount(t, db, `SELECT COUNT(*) FROM votes`); got != 1 {
		t.Fatalf("expected 1 vote row, got %d", got)
	}
	// Raw identities never reach the votes table.
	if got := mustCount(t, db, `SELECT COUNT(*) FROM votes WHERE voter_hash = ?`, "42"); got != 0 {
		t.Fatalf("voter id stored unhashed")
	}
	if got := mustCount(t, db, `SELECT COUNT(*) FROM outbox`); got != 1 {
		t.Fatalf("expected 1 outbox row, got %d", got)
	}
}

func TestStore_Transitions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key := domain.ContestKey{Creator: 1, Name: "c"}
	seedContest(t, s, key, "A", "B")

	if err := s.FinishContest(ctx, key, "A"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("finish before start: expected ErrInvalidStatus, got: %v", err)
	}
	if err := s.StartContest(ctx, key, 500); err != nil {
		t.Fatalf("StartContest: %v", err)
	}
	if err := s.StartContest(ctx, key, 900); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("second start: expected ErrInvalidStatus, got: %v", err)
	}
	if err := s.FinishContest(ctx, key, domain.TieResult); err != nil {
		t.Fatalf("FinishContest: %v", err)
	}

	c, err := s.GetContest(ctx, key)
	if err != nil {
		t.Fatalf("GetContest: %v", err)
	}
	if c.Status != domain.StatusFinished || c.Deadline != 500 || c.Winner != domain.TieResult {
		t.Fatalf("unexpected contest: %+v", c)
	}
}

func TestStore_FailedTransition_WritesNoEvents(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	key := domain.ContestKey{Creator: 1, Name: "c"}
	seedContest(t, s, key, "A", "B")

	ev := domain.Event{ID: "e1", Kind: domain.EventContestEnded, Contest: key, OccurredAt: time.Now()}
	if err := s.FinishContest(ctx, key, "A", ev); err == nil {
		t.Fatalf("expected error")
	}
	if got := mustCount(t, db, `SELECT COUNT(*) FROM outbox`); got != 0 {
		t.Fatalf("expected rolled back outbox, got %d rows", got)
	}
}

func TestStore_ListContests(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"first", "second"} {
		key := domain.ContestKey{Creator: 7, Name: name}
		if err := s.CreateContest(ctx, key, time.Unix(int64(100+i), 0)); err != nil {
			t.Fatalf("CreateContest: %v", err)
		}
	}
	_ = s.CreateContest(ctx, domain.ContestKey{Creator: 8, Name: "other"}, time.Unix(50, 0))

	items, err := s.ListContests(ctx, 7)
	if err != nil {
		t.Fatalf("ListContests: %v", err)
	}
	if len(items) != 2 || items[0].Name != "second" || items[1].Name != "first" {
		t.Fatalf("unexpected list: %+v", items)
	}
}

func TestStore_Outbox_PendingAndPublished(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key := domain.ContestKey{Creator: 1, Name: "c"}
	seedContest(t, s, key, "A", "B")

	started := domain.Event{ID: "e1", Kind: domain.EventContestStarted, Contest: key, Deadline: 700, OccurredAt: time.Unix(100, 0)}
	ended := domain.Event{ID: "e2", Kind: domain.EventContestEnded, Contest: key, Winner: "A", OccurredAt: time.Unix(800, 0)}
	if err := s.StartContest(ctx, key, 700, started); err != nil {
		t.Fatalf("StartContest: %v", err)
	}
	if err := s.FinishContest(ctx, key, "A", ended); err != nil {
		t.Fatalf("FinishContest: %v", err)
	}

	pending, err := s.ListPendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingEvents: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "e1" || pending[1].ID != "e2" {
		t.Fatalf("unexpected pending: %+v", pending)
	}
	if pending[0].Contest != key || pending[0].Deadline != 700 || pending[1].Winner != "A" {
		t.Fatalf("payload not round-tripped: %+v", pending)
	}

	if err := s.MarkEventPublished(ctx, "e1", time.Unix(900, 0)); err != nil {
		t.Fatalf("MarkEventPublished: %v", err)
	}
	if err := s.MarkEventPublished(ctx, "e1", time.Unix(901, 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second mark, got: %v", err)
	}

	pending, _ = s.ListPendingEvents(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "e2" {
		t.Fatalf("unexpected pending after publish: %+v", pending)
	}
}

func TestStore_PureGoDriver(t *testing.T) {
	db, dialect, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "nested", "pure.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, dialect, "salt")
	if err := s.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	key := domain.ContestKey{Creator: 3, Name: "pure"}
	seedContest(t, s, key, "A")

	c, err := s.GetContest(context.Background(), key)
	if err != nil || len(c.Movies) != 1 {
		t.Fatalf("GetContest = %+v, %v", c, err)
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, _, err := Open("mysql", "x"); err == nil {
		t.Fatalf("expected error")
	}
	if _, _, err := Open(DriverSQLite3, "  "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestOpen_ReportsUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, _, err := Open(DriverSQLite3, filepath.Join(blocker, "sub", "contests.db"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "create db dir") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{DialectSQLite, "a = ? AND b = ?", "a = ? AND b = ?"},
		{DialectPostgres, "a = ? AND b = ?", "a = $1 AND b = $2"},
		{DialectPostgres, "no params", "no params"},
	}
	for _, tt := range tests {
		s := &Store{dialect: tt.dialect}
		if got := s.rebind(tt.in); got != tt.want {
			t.Fatalf("rebind(%s, %q) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}

func TestHashVoter_DeterministicAndSalted(t *testing.T) {
	t.Parallel()

	s := &Store{voteSalt: "pepper"}
	sum := sha256.Sum256([]byte("pepper:123"))
	want := hex.EncodeToString(sum[:])

	got := s.hashVoter(123)
	if got != want {
		t.Fatalf("hash mismatch\ngot : %s\nwant: %s", got, want)
	}
	if got2 := s.hashVoter(123); got2 != got {
		t.Fatalf("not deterministic: %s vs %s", got, got2)
	}
	if other := (&Store{voteSalt: "salt"}).hashVoter(123); other == got {
		t.Fatalf("salt does not change the hash")
	}
	if s.hashVoter(124) == got {
		t.Fatalf("different voters share a hash")
	}
}
