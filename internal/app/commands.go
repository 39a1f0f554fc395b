package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KevinTran99/MovieContest/internal/domain"
	"github.com/KevinTran99/MovieContest/internal/registry"
)

// usageError carries the expected command format back to the user.
type usageError struct {
	usage string
}

func (e *usageError) Error() string {
	return "usage: " + e.usage
}

const (
	usageNewContest   = "/new_contest Name\nExample: /new_contest Best Movie 2009"
	usageAddMovie     = "/add_movie creatorID | Name | Title\nExample: /add_movie me | Best Movie 2009 | Avatar"
	usageMovies       = "/movies creatorID | Name"
	usageStartContest = "/start_contest creatorID | Name | seconds\nExample: /start_contest me | Best Movie 2009 | 3600"
	usageVote         = "/vote creatorID | Name | Title"
	usageEndContest   = "/end_contest creatorID | Name"
	usageWinner       = "/winner creatorID | Name"
)

// parseCall turns a bot command into a registry call. Commands the bot
// does not know become calls to a method the registry does not have.
func parseCall(caller domain.Identity, command, args string) (registry.Call, error) {
	args = strings.TrimSpace(args)

	switch command {
	case "new_contest":
		if args == "" {
			return registry.Call{}, &usageError{usageNewContest}
		}
		return registry.Call{Method: registry.MethodAddContest, Name: args}, nil

	case "add_movie":
		creator, parts, err := contestArgs(caller, args, 3, usageAddMovie)
		if err != nil {
			return registry.Call{}, err
		}
		return registry.Call{Method: registry.MethodAddMovie, Creator: creator, Name: parts[1], Title: parts[2]}, nil

	case "movies":
		creator, parts, err := contestArgs(caller, args, 2, usageMovies)
		if err != nil {
			return registry.Call{}, err
		}
		return registry.Call{Method: registry.MethodGetMovies, Creator: creator, Name: parts[1]}, nil

	case "start_contest":
		creator, parts, err := contestArgs(caller, args, 3, usageStartContest)
		if err != nil {
			return registry.Call{}, err
		}
		seconds, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return registry.Call{}, &usageError{usageStartContest}
		}
		return registry.Call{Method: registry.MethodStartContest, Creator: creator, Name: parts[1], DurationSeconds: seconds}, nil

	case "vote":
		creator, parts, err := contestArgs(caller, args, 3, usageVote)
		if err != nil {
			return registry.Call{}, err
		}
		return registry.Call{Method: registry.MethodVoteMovie, Creator: creator, Name: parts[1], Title: parts[2]}, nil

	case "end_contest":
		creator, parts, err := contestArgs(caller, args, 2, usageEndContest)
		if err != nil {
			return registry.Call{}, err
		}
		return registry.Call{Method: registry.MethodEndContest, Creator: creator, Name: parts[1]}, nil

	case "winner":
		creator, parts, err := contestArgs(caller, args, 2, usageWinner)
		if err != nil {
			return registry.Call{}, err
		}
		return registry.Call{Method: registry.MethodGetWinner, Creator: creator, Name: parts[1]}, nil

	default:
		return registry.Call{Method: "/" + command}, nil
	}
}

// contestArgs splits "creatorID | Name [| extra]" and resolves the creator.
// "me" stands for the caller.
func contestArgs(caller domain.Identity, args string, n int, usage string) (domain.Identity, []string, error) {
	parts := splitPipeArgs(args, n)
	if len(parts) < n {
		return 0, nil, &usageError{usage}
	}
	creator, err := parseCreator(caller, parts[0])
	if err != nil {
		return 0, nil, &usageError{usage}
	}
	return creator, parts, nil
}

func parseCreator(caller domain.Identity, s string) (domain.Identity, error) {
	if strings.EqualFold(strings.TrimSpace(s), "me") {
		return caller, nil
	}
	id, err := domain.ParseIdentity(s)
	if err != nil {
		return 0, fmt.Errorf("creator id: %w", err)
	}
	return id, nil
}

func splitPipeArgs(s string, n int) []string {
	raw := strings.SplitN(s, "|", n)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
