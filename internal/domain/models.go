package domain

import (
	"strconv"
	"strings"
	"time"
)

// TieResult is stored as the winner when the highest tally is shared.
const TieResult = "The result was a tie"

// MinMovies is the number of movies a contest needs before it can start.
const MinMovies = 2

// Identity is the caller reference supplied by the transport (a Telegram user ID).
type Identity int64

func (id Identity) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseIdentity parses the decimal form produced by Identity.String.
func ParseIdentity(s string) (Identity, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return Identity(v), nil
}

// ContestKey addresses a contest. The creator half doubles as the owner.
type ContestKey struct {
	Creator Identity `json:"creator"`
	Name    string   `json:"name"`
}

func (k ContestKey) String() string {
	return k.Creator.String() + "/" + k.Name
}

type Movie struct {
	Title     string `json:"title"`
	VoteCount uint64 `json:"vote_count"`
}

type Contest struct {
	Creator   Identity  `json:"creator"`
	Name      string    `json:"name"`
	Exists    bool      `json:"exists"`
	Status    Status    `json:"status"`
	Deadline  int64     `json:"deadline"`
	Winner    string    `json:"winner,omitempty"`
	Movies    []Movie   `json:"movies"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Contest) Key() ContestKey {
	return ContestKey{Creator: c.Creator, Name: c.Name}
}

// DecideWinner returns the title with the strictly highest tally, or
// TieResult when two or more movies share the maximum (all zero included).
func DecideWinner(movies []Movie) string {
	var (
		best   uint64
		winner string
		shared bool
	)
	for i, m := range movies {
		switch {
		case i == 0 || m.VoteCount > best:
			best = m.VoteCount
			winner = m.Title
			shared = false
		case m.VoteCount == best:
			shared = true
		}
	}
	if shared || len(movies) == 0 {
		return TieResult
	}
	return winner
}
