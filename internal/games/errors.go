package games

import "errors"

// Precondition errors. Operations that return one of these made no state change.
var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrMatchInProgress  = errors.New("room already has an active match")
	ErrLobbyClosed      = errors.New("lobby is closed")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrWrongPhase       = errors.New("not allowed in the current phase")
	ErrNotInMatch       = errors.New("player is not in this match")
	ErrNotCreator       = errors.New("only the match creator can do that")
	ErrPlayerDead       = errors.New("player is dead")
	ErrAlreadyVoted     = errors.New("player already voted this round")
	ErrActionNotAllowed = errors.New("action not allowed for this role")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrOnCooldown       = errors.New("ability on cooldown")
	ErrAbilityUsed      = errors.New("ability already used")
	ErrNoFixerWindow    = errors.New("no fixer decision pending")
	ErrNoTaskAssigned   = errors.New("no task assigned")
	ErrBanned           = errors.New("player is banned")
)
