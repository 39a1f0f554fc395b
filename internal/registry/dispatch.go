package registry

import (
	"context"
	"errors"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

// Method names accepted by Dispatch.
const (
	MethodAddContest   = "addContest"
	MethodAddMovie     = "addMovie"
	MethodGetMovies    = "getMovies"
	MethodStartContest = "startContest"
	MethodVoteMovie    = "voteMovie"
	MethodEndContest   = "endContest"
	MethodGetWinner    = "getWinner"
)

// Call is one invocation arriving from a transport.
type Call struct {
	Method          string
	Creator         domain.Identity
	Name            string
	Title           string
	DurationSeconds uint64
	// Value is any amount the caller tried to transfer with the call.
	Value int64
}

type Result struct {
	Movies []domain.Movie
	Winner string
}

// Dispatch routes a call to the matching operation. Calls carrying value
// are refused before anything else; unknown methods are refused after.
func (r *Registry) Dispatch(ctx context.Context, caller domain.Identity, call Call) (Result, error) {
	if call.Value != 0 {
		r.logger.Warn("payment rejected", "caller", caller, "method", call.Method, "value", call.Value)
		return Result{}, domain.ErrPaymentRejected
	}

	var (
		res Result
		err error
	)
	switch call.Method {
	case MethodAddContest:
		err = r.AddContest(ctx, caller, call.Name)
	case MethodAddMovie:
		err = r.AddMovie(ctx, caller, call.Creator, call.Name, call.Title)
	case MethodGetMovies:
		res.Movies, err = r.GetMovies(ctx, call.Creator, call.Name)
	case MethodStartContest:
		err = r.StartContest(ctx, caller, call.Creator, call.Name, call.DurationSeconds)
	case MethodVoteMovie:
		err = r.VoteMovie(ctx, caller, call.Creator, call.Name, call.Title)
	case MethodEndContest:
		res.Winner, err = r.EndContest(ctx, caller, call.Creator, call.Name)
	case MethodGetWinner:
		res.Winner, err = r.GetWinner(ctx, call.Creator, call.Name)
	default:
		r.logger.Debug("unsupported call", "caller", caller, "method", call.Method)
		return Result{}, domain.ErrUnsupportedOperation
	}
	if err != nil {
		r.logger.Debug("call rejected", "caller", caller, "method", call.Method, "error", err)
		return Result{}, err
	}
	return res, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrContestNotFound)
}
