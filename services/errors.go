package services

import "errors"

// Validation failures returned to the transport layer. Handlers map these to
// stable HTTP statuses; the services never see transport codes.
var (
	ErrNoActiveRound    = errors.New("no active game session")
	ErrRoundNotJoinable = errors.New("this session is no longer active")
	ErrRoundNotActive   = errors.New("lobby is not active")
	ErrAlreadyJoined    = errors.New("you are already in the lobby")
	ErrNotJoined        = errors.New("you must join the lobby first")
	ErrInvalidSelection = errors.New("lucky number must be between 1 and 10")
	ErrPlayerNotFound   = errors.New("player not found")
)

// ErrPersistence wraps store write failures. It is fatal to the in-progress
// request but never to the engine's timers.
var ErrPersistence = errors.New("persistence failure")
