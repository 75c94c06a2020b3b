package model

import (
	"errors"
	"fmt"
)

// Error classes. Every sentinel below wraps exactly one of these so callers
// can branch on the class with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMalformedPayload = errors.New("malformed payload")
)

var (
	// Match errors
	ErrMatchNotFound     = fmt.Errorf("match %w", ErrNotFound)
	ErrMatchLocked       = fmt.Errorf("match is locked: %w", ErrInvalidState)
	ErrMatchNotBegun     = fmt.Errorf("match has not begun: %w", ErrInvalidState)
	ErrMatchAlreadyBegun = fmt.Errorf("match has already begun: %w", ErrInvalidState)
	ErrMatchTerminated   = fmt.Errorf("match is finished or cancelled: %w", ErrInvalidState)
	ErrNotManager        = fmt.Errorf("only the manager can perform this action: %w", ErrInvalidState)
	ErrInvalidGame       = fmt.Errorf("invalid game definition: %w", ErrMalformedPayload)

	// Player errors
	ErrPlayerNotFound    = fmt.Errorf("player %w", ErrNotFound)
	ErrPlayerNameTaken   = fmt.Errorf("player name is taken: %w", ErrConflict)
	ErrPlayerNameInvalid = fmt.Errorf("player name is not allowed: %w", ErrConflict)

	// Team errors
	ErrTeamNotFound    = fmt.Errorf("team %w", ErrNotFound)
	ErrNotInTeam       = fmt.Errorf("player is not in team: %w", ErrNotFound)
	ErrTeamNameTaken   = fmt.Errorf("team name is taken: %w", ErrConflict)
	ErrTeamFull        = fmt.Errorf("team is full: %w", ErrConflict)
	ErrTeamsIncomplete = fmt.Errorf("every player must be in a team of %d: %w", TeamSize, ErrInvalidState)

	// Observer errors
	ErrObserverNotFound  = fmt.Errorf("observer %w", ErrNotFound)
	ErrObserverIsManager = fmt.Errorf("observer name matches the manager: %w", ErrConflict)

	// Account errors
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	ErrGameNotFound    = fmt.Errorf("game %w", ErrNotFound)

	// Admin errors
	ErrBadPassword = fmt.Errorf("bad password: %w", ErrUnauthorized)

	// Protocol errors
	ErrUnknownEvent = fmt.Errorf("unknown event: %w", ErrMalformedPayload)
)
