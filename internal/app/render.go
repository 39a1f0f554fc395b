package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

const (
	maxMessageLen    = 4000
	genericErrorText = "Something went wrong, please try again."
)

const helpText = "Movie contests: create a contest, add movies, open voting for a while, then announce the winner.\n\n" +
	"Commands:\n" +
	"/new_contest Name – create your contest\n" +
	"/add_movie creatorID | Name | Title – add a movie (creator only, before start)\n" +
	"/start_contest creatorID | Name | seconds – open voting (needs two movies)\n" +
	"/movies creatorID | Name – list movies with vote buttons\n" +
	"/vote creatorID | Name | Title – vote once per contest\n" +
	"/end_contest creatorID | Name – close voting after the deadline (creator only)\n" +
	"/winner creatorID | Name – show the result of a finished contest\n" +
	"/my_contests – your contests\n" +
	"/my_id – your ID to share with voters\n\n" +
	"Use \"me\" instead of creatorID for your own contests."

// describeError turns a registry rejection into a reply. Unknown errors get
// a generic text; the caller logs them.
func describeError(err error) string {
	var (
		usage    *usageError
		notOwner *domain.NotOwnerError
		status   *domain.InvalidStatusError
		voted    *domain.AlreadyVotedError
	)
	switch {
	case errors.As(err, &usage):
		return "Format: " + usage.usage
	case errors.As(err, &notOwner):
		return "Only the creator of this contest can do that."
	case errors.As(err, &status):
		return fmt.Sprintf("This contest is %s, but the action needs it to be %s.",
			statusLabel(status.Actual), statusLabel(status.Required))
	case errors.As(err, &voted):
		return "You have already voted in this contest."
	case errors.Is(err, domain.ErrContestNotFound):
		return "This contest does not exist. Check the creator ID and name."
	case errors.Is(err, domain.ErrAlreadyExists):
		return "You already have a contest with this name."
	case errors.Is(err, domain.ErrInsufficientCandidates):
		return fmt.Sprintf("Add at least %d movies before starting.", domain.MinMovies)
	case errors.Is(err, domain.ErrCandidateNotFound):
		return "There is no movie with this title in the contest."
	case errors.Is(err, domain.ErrDuplicateCandidate):
		return "This movie is already in the contest."
	case errors.Is(err, domain.ErrVotingClosed):
		return "Voting for this contest is closed."
	case errors.Is(err, domain.ErrDeadlineNotReached):
		return "Voting is still open. You can end the contest once the deadline has passed."
	case errors.Is(err, domain.ErrInvalidArgument):
		return capitalize(err.Error()) + "."
	case errors.Is(err, domain.ErrUnsupportedOperation):
		return "Unknown command. Try /help"
	case errors.Is(err, domain.ErrPaymentRejected):
		return "This bot does not accept payments."
	default:
		return genericErrorText
	}
}

func statusLabel(s domain.Status) string {
	switch s {
	case domain.StatusNotStarted:
		return "not started"
	case domain.StatusOngoing:
		return "ongoing"
	case domain.StatusFinished:
		return "finished"
	default:
		return s.String()
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatDeadline(deadline int64, now time.Time) string {
	t := time.Unix(deadline, 0)
	if t.After(now) {
		return "voting closes " + humanize.RelTime(t, now, "ago", "from now")
	}
	return "voting closed " + humanize.RelTime(t, now, "ago", "from now")
}

func formatContestHeader(c domain.Contest, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎬 %s (creator %s)\nStatus: %s", c.Name, c.Creator, statusLabel(c.Status))
	switch c.Status {
	case domain.StatusOngoing:
		sb.WriteString(", " + formatDeadline(c.Deadline, now))
	case domain.StatusFinished:
		sb.WriteString("\nResult: " + c.Winner)
	}
	return sb.String()
}

func formatMovies(c domain.Contest, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(formatContestHeader(c, now))
	sb.WriteString("\n\n")

	if len(c.Movies) == 0 {
		sb.WriteString("No movies yet.\n")
	}
	for _, m := range c.Movies {
		fmt.Fprintf(&sb, "• %s — %s vote(s)\n", m.Title, humanize.Comma(int64(m.VoteCount)))
	}
	return truncate(sb.String())
}

func formatContests(contests []domain.Contest, now time.Time) string {
	if len(contests) == 0 {
		return "You have no contests yet. Create one: /new_contest Name"
	}
	var sb strings.Builder
	sb.WriteString("Your contests:\n")
	for _, c := range contests {
		fmt.Fprintf(&sb, "• %s — %s", c.Name, statusLabel(c.Status))
		if c.Status == domain.StatusOngoing {
			sb.WriteString(", " + formatDeadline(c.Deadline, now))
		}
		fmt.Fprintf(&sb, " (created %s)\n", humanize.RelTime(c.CreatedAt, now, "ago", "from now"))
	}
	return truncate(sb.String())
}

func truncate(text string) string {
	if len(text) > maxMessageLen {
		return text[:maxMessageLen] + "\n\n(truncated)"
	}
	return text
}
