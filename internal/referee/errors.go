package referee

import "errors"

var (
	// ErrMatchInProgress: start was called while a match is active.
	ErrMatchInProgress = errors.New("a match is already in progress")
	// ErrNoActiveMatch: a frame or command arrived with no match started.
	ErrNoActiveMatch = errors.New("no active match")
	// ErrBadStartingPlayer: starting player index outside {0, 1}.
	ErrBadStartingPlayer = errors.New("starting player must be 0 or 1")
	// ErrMissingPlayerName: a player name was empty.
	ErrMissingPlayerName = errors.New("both player names are required")
)
