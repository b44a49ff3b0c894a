package service

import "errors"

var (
	ErrNoRoom             = errors.New("no room")
	ErrNotHost            = errors.New("only the host can do this")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrThemeSelection     = errors.New("select between 1 and 4 themes")
	ErrNoPlayableContent  = errors.New("no playable content")
	ErrTeamNotFound       = errors.New("team not found")
	ErrRoomNotJoinable    = errors.New("room is not accepting players")
	ErrInvalidRoomCode    = errors.New("invalid room code")
	ErrInvalidQuestionCnt = errors.New("question count must be a multiple of 5 between 5 and 40")
)
