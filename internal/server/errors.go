package server

import (
	"errors"
	"net/http"

	"github.com/lox/blankcards/internal/auth"
	"github.com/lox/blankcards/internal/game"
)

// Transport-level error codes; game errors carry their own.
const (
	codeInvalidMessage    = "INVALID_MESSAGE"
	codeUnknownMessage    = "UNKNOWN_MESSAGE_TYPE"
	codeRateLimited       = "RATE_LIMITED"
	codeNotInRoom         = "NOT_IN_ROOM"
	codeAlreadyInRoom     = "ALREADY_IN_ROOM"
	codeInvalidToken      = "INVALID_TOKEN"
	codeTokenRoomMismatch = "TOKEN_ROOM_MISMATCH"
	codeInternal          = "INTERNAL"
)

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, auth.ErrInvalidToken) {
		return http.StatusUnauthorized
	}
	switch game.KindOf(err) {
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindIllegalState, game.KindCapacity:
		return http.StatusConflict
	case game.KindNotEligible:
		return http.StatusForbidden
	case game.KindInvalidChoice:
		return http.StatusUnprocessableEntity
	case game.KindConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorData describes an error for clients. Internal errors are not echoed.
func errorData(err error) ErrorData {
	if errors.Is(err, auth.ErrInvalidToken) {
		return ErrorData{Code: codeInvalidToken, Message: "invalid or expired token"}
	}
	kind := game.KindOf(err)
	if kind == game.KindInternal {
		return ErrorData{Code: codeInternal, Kind: kind.String(), Message: "internal error"}
	}
	return ErrorData{Code: game.CodeOf(err), Kind: kind.String(), Message: err.Error()}
}
