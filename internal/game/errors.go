package game

import "errors"

// Rule Engine failures. Operations wrap these with context; match with errors.Is.
var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameFull           = errors.New("game is full")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrGameNotActive      = errors.New("game is not active")
	ErrAlreadyJoined      = errors.New("player already joined this game")
	ErrPlayerNotFound     = errors.New("player not found in game")
	ErrCardNotFound       = errors.New("card not found")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrIllegalMove        = errors.New("illegal move")
	ErrInvalidSettings    = errors.New("invalid game settings")
	ErrPeekDisabled       = errors.New("peeking is disabled in this game")
	ErrAlreadyPeeked      = errors.New("peek already used")
)
