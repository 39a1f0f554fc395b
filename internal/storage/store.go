package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

//go:embed schema.sql
var embeddedSchema embed.FS

var ErrNotFound = errors.New("not found")

type Store struct {
	db       *sql.DB
	dialect  Dialect
	voteSalt string
}

func New(db *sql.DB, dialect Dialect, voteSalt string) *Store {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &Store{db: db, dialect: dialect, voteSalt: voteSalt}
}

func (s *Store) InitSchema() error {
	if s.dialect == DialectSQLite {
		if _, err := s.db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
			return err
		}
	}

	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}

	schema := strings.TrimSpace(string(b))
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(q[i])
	}
	return sb.String()
}

// hashVoter keeps raw user IDs out of the votes table.
func (s *Store) hashVoter(voter domain.Identity) string {
	data := fmt.Sprintf("%s:%d", s.voteSalt, int64(voter))
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ---------- Contests ----------

func (s *Store) GetContest(ctx context.Context, key domain.ContestKey) (domain.Contest, error) {
	return s.getContest(ctx, s.db, key)
}

func (s *Store) getContest(ctx context.Context, q queryer, key domain.ContestKey) (domain.Contest, error) {
	c := domain.Contest{Creator: key.Creator, Name: key.Name, Exists: true}
	var createdAt int64
	err := q.QueryRowContext(ctx, s.rebind(`
SELECT status, deadline, winner, created_at
FROM contests
WHERE creator_id = ? AND name = ?
`), int64(key.Creator), key.Name).Scan(&c.Status, &c.Deadline, &c.Winner, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Contest{}, domain.ErrContestNotFound
		}
		return domain.Contest{}, err
	}
	c.CreatedAt = fromMillis(createdAt)

	rows, err := q.QueryContext(ctx, s.rebind(`
SELECT title, vote_count
FROM movies
WHERE creator_id = ? AND contest_name = ?
ORDER BY position
`), int64(key.Creator), key.Name)
	if err != nil {
		return domain.Contest{}, err
	}
	defer rows.Close()

	c.Movies = []domain.Movie{}
	for rows.Next() {
		var m domain.Movie
		if err := rows.Scan(&m.Title, &m.VoteCount); err != nil {
			return domain.Contest{}, err
		}
		c.Movies = append(c.Movies, m)
	}
	if err := rows.Err(); err != nil {
		return domain.Contest{}, err
	}
	return c, nil
}

func (s *Store) ListContests(ctx context.Context, creator domain.Identity) ([]domain.Contest, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT name, status, deadline, winner, created_at
FROM contests
WHERE creator_id = ?
ORDER BY created_at DESC, name
`), int64(creator))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contests []domain.Contest
	for rows.Next() {
		c := domain.Contest{Creator: creator, Exists: true}
		var createdAt int64
		if err := rows.Scan(&c.Name, &c.Status, &c.Deadline, &c.Winner, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMillis(createdAt)
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contests, nil
}

func (s *Store) CreateContest(ctx context.Context, key domain.ContestKey, createdAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO contests(creator_id, name, status, deadline, winner, created_at)
VALUES (?, ?, ?, 0, '', ?)
ON CONFLICT(creator_id, name) DO NOTHING
`), int64(key.Creator), key.Name, domain.StatusNotStarted, toMillis(createdAt))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// ---------- Movies ----------

func (s *Store) AppendMovie(ctx context.Context, key domain.ContestKey, title string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.lockStatus(ctx, tx, key); err != nil {
		return err
	}

	var dup int
	err = tx.QueryRowContext(ctx, s.rebind(`
SELECT COUNT(1) FROM movies WHERE creator_id = ? AND contest_name = ? AND title = ?
`), int64(key.Creator), key.Name, title).Scan(&dup)
	if err != nil {
		return err
	}
	if dup > 0 {
		return domain.ErrDuplicateCandidate
	}

	var position int
	err = tx.QueryRowContext(ctx, s.rebind(`
SELECT COUNT(1) FROM movies WHERE creator_id = ? AND contest_name = ?
`), int64(key.Creator), key.Name).Scan(&position)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
INSERT INTO movies(creator_id, contest_name, position, title, vote_count)
VALUES (?, ?, ?, ?, 0)
`), int64(key.Creator), key.Name, position, title)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// HasMovie looks title up through the unique title index. The join keeps
// unknown contests distinguishable from missing titles.
func (s *Store) HasMovie(ctx context.Context, key domain.ContestKey, title string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT COUNT(m.title)
FROM contests c
LEFT JOIN movies m
  ON m.creator_id = c.creator_id AND m.contest_name = c.name AND m.title = ?
WHERE c.creator_id = ? AND c.name = ?
GROUP BY c.creator_id, c.name
`), title, int64(key.Creator), key.Name).Scan(&cnt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrContestNotFound
		}
		return false, err
	}
	return cnt > 0, nil
}

// ---------- Lifecycle ----------

func (s *Store) StartContest(ctx context.Context, key domain.ContestKey, deadline int64, events ...domain.Event) error {
	return s.transition(ctx, key, domain.StatusOngoing, `deadline = ?`, deadline, events)
}

func (s *Store) FinishContest(ctx context.Context, key domain.ContestKey, winner string, events ...domain.Event) error {
	return s.transition(ctx, key, domain.StatusFinished, `winner = ?`, winner, events)
}

// transition moves a contest one lifecycle step forward, sets one extra
// column and appends events, all in one transaction.
func (s *Store) transition(ctx context.Context, key domain.ContestKey, next domain.Status, set string, value any, events []domain.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := s.lockStatus(ctx, tx, key)
	if err != nil {
		return err
	}
	if _, err := current.Transition(next); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
UPDATE contests SET status = ?, `+set+`
WHERE creator_id = ? AND name = ?
`), next, value, int64(key.Creator), key.Name)
	if err != nil {
		return err
	}
	if err := s.insertOutbox(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) lockStatus(ctx context.Context, tx *sql.Tx, key domain.ContestKey) (domain.Status, error) {
	q := `SELECT status FROM contests WHERE creator_id = ? AND name = ?`
	if s.dialect == DialectPostgres {
		q += ` FOR UPDATE`
	}
	var status domain.Status
	err := tx.QueryRowContext(ctx, s.rebind(q), int64(key.Creator), key.Name).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrContestNotFound
		}
		return 0, err
	}
	return status, nil
}

// ---------- Votes ----------

func (s *Store) HasVoted(ctx context.Context, key domain.ContestKey, voter domain.Identity) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT COUNT(1) FROM votes WHERE creator_id = ? AND contest_name = ? AND voter_hash = ?
`), int64(key.Creator), key.Name, s.hashVoter(voter)).Scan(&cnt)
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *Store) RecordVote(ctx context.Context, key domain.ContestKey, voter domain.Identity, title string, events ...domain.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.lockStatus(ctx, tx, key); err != nil {
		return err
	}

	var position int
	err = tx.QueryRowContext(ctx, s.rebind(`
SELECT position FROM movies WHERE creator_id = ? AND contest_name = ? AND title = ?
`), int64(key.Creator), key.Name, title).Scan(&position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCandidateNotFound
		}
		return err
	}

	createdAt := time.Now()
	if len(events) > 0 {
		createdAt = events[0].OccurredAt
	}
	res, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO votes(creator_id, contest_name, voter_hash, position, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(creator_id, contest_name, voter_hash) DO NOTHING
`), int64(key.Creator), key.Name, s.hashVoter(voter), position, toMillis(createdAt))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &domain.AlreadyVotedError{Voter: voter}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
UPDATE movies SET vote_count = vote_count + 1
WHERE creator_id = ? AND contest_name = ? AND position = ?
`), int64(key.Creator), key.Name, position)
	if err != nil {
		return err
	}
	if err := s.insertOutbox(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
