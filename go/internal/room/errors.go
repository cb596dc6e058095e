package room

import (
	"errors"

	"github.com/fanoshome/bingo/go/clients"
)

var (
	ErrNoActiveRound    = errors.New("no active round")
	ErrNotSelectable    = errors.New("round is not accepting card changes")
	ErrMutationInFlight = errors.New("a card change is already in flight")
	ErrCardTaken        = errors.New("card is not available")
	ErrUnknownCard      = errors.New("unknown card")
	ErrNotMounted       = errors.New("room is not mounted")
)

// User facing messages.
const (
	msgLoadFailed     = "failed to load game data"
	msgSelectFailed   = "failed to select card"
	msgDeselectFailed = "failed to deselect card"
)

type failureKind int

const (
	failureNone failureKind = iota
	failureNetwork
	failureUnauthorized
	failureOther
)

func classify(err error) failureKind {
	switch {
	case err == nil:
		return failureNone
	case clients.IsNetworkError(err):
		return failureNetwork
	case clients.IsUnauthorized(err):
		return failureUnauthorized
	default:
		return failureOther
	}
}
