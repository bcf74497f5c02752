/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"errors"
	"fmt"
)

// Error is a failure that is reported to the requesting client as an
// error frame. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.Code == e.Code
}

var (
	ErrRoomNotFound         = &Error{Code: "RoomNotFound", Message: "room not found"}
	ErrRoomFull             = &Error{Code: "RoomFull", Message: "room is full"}
	ErrRoomNotWaiting       = &Error{Code: "RoomNotWaiting", Message: "game has already started"}
	ErrGradeMismatch        = &Error{Code: "GradeMismatch", Message: "room is for a different grade"}
	ErrAlreadyMember        = &Error{Code: "AlreadyMember", Message: "already in this room"}
	ErrNotHost              = &Error{Code: "NotHost", Message: "only the host can do that"}
	ErrNotEnoughPlayers     = &Error{Code: "NotEnoughPlayers", Message: "at least 2 players are needed to start"}
	ErrAlreadyStarted       = &Error{Code: "AlreadyStarted", Message: "game has already started"}
	ErrNotAuthenticated     = &Error{Code: "NotAuthenticated", Message: "authenticate first"}
	ErrAlreadyAuthenticated = &Error{Code: "AlreadyAuthenticated", Message: "connection is already authenticated"}
	ErrDuplicateAnswer      = &Error{Code: "DuplicateAnswer", Message: "answer already recorded for this round"}
	ErrRoundClosed          = &Error{Code: "RoundClosed", Message: "no question is open"}
	ErrNotMember            = &Error{Code: "NotMember", Message: "not a member of this room"}
	ErrUnknownMessageType   = &Error{Code: "UnknownMessageType", Message: "unknown message type"}
	ErrInvalidMessage       = &Error{Code: "InvalidMessage", Message: "invalid message"}
	ErrInvalidSettings      = &Error{Code: "InvalidSettings", Message: "invalid room settings"}
	ErrInternal             = &Error{Code: "Internal", Message: "internal server error"}
)

// ErrCodeSpaceExhausted means no free room code could be found. It is fatal
// for the request and always logged.
var ErrCodeSpaceExhausted = fmt.Errorf("%w: room code space exhausted", ErrInternal)

func newError(base *Error, format string, args ...any) *Error {
	return &Error{
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the client-facing code for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrInternal.Code
}

// silent reports whether err is expected under network jitter and should
// be dropped rather than reported.
func silent(err error) bool {
	return errors.Is(err, ErrDuplicateAnswer) ||
		errors.Is(err, ErrRoundClosed) ||
		errors.Is(err, ErrNotMember)
}
