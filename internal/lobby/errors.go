package lobby

import "errors"

// Domain failures reported to the requesting client. They never terminate a
// connection and never affect other sessions.
var (
	ErrAlreadyOnline       = errors.New("account is already online")
	ErrNotLoggedIn         = errors.New("not logged in")
	ErrAlreadyInRoom       = errors.New("already in a room")
	ErrNotInRoom           = errors.New("not in a room")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomNotWaiting      = errors.New("room has already started")
	ErrNotHost             = errors.New("only the host can start the game")
	ErrInsufficientPlayers = errors.New("not enough players to start")
	ErrAlreadyStarted      = errors.New("game has already started")
)
