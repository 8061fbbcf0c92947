package game

import (
	"errors"
	"fmt"
)

// Kind classifies a game error so transports can map it to a response.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindIllegalState
	KindNotEligible
	KindInvalidChoice
	KindCapacity
	KindConfig
)

// String returns the string representation of an error kind
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindIllegalState:
		return "IllegalState"
	case KindNotEligible:
		return "NotEligible"
	case KindInvalidChoice:
		return "InvalidChoice"
	case KindCapacity:
		return "Capacity"
	case KindConfig:
		return "Config"
	default:
		return "Internal"
	}
}

// Error is a rule violation. Sentinels below are compared with errors.Is;
// call sites add context with fmt.Errorf("...: %w", err).
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrRoomNotFound   = newError(KindNotFound, "ROOM_NOT_FOUND", "room not found")
	ErrPlayerNotFound = newError(KindNotFound, "PLAYER_NOT_FOUND", "player not in room")

	ErrGameAlreadyInProgress = newError(KindIllegalState, "GAME_IN_PROGRESS", "game already in progress")
	ErrGameOver              = newError(KindIllegalState, "GAME_OVER", "game is over")
	ErrGameNotStarted        = newError(KindIllegalState, "GAME_NOT_STARTED", "game has not started")
	ErrAlreadyStarted        = newError(KindIllegalState, "ALREADY_STARTED", "game already started")
	ErrNotEnoughPlayers      = newError(KindIllegalState, "NOT_ENOUGH_PLAYERS", "not enough players")
	ErrWrongPhase            = newError(KindIllegalState, "WRONG_PHASE", "action not allowed in this phase")
	ErrOutOfCards            = newError(KindIllegalState, "OUT_OF_CARDS", "deck exhausted")

	ErrNotHost           = newError(KindNotEligible, "NOT_HOST", "only the host can start the game")
	ErrNotJudge          = newError(KindNotEligible, "NOT_JUDGE", "only the judge can pick a winner")
	ErrJudgeCannotSubmit = newError(KindNotEligible, "JUDGE_CANNOT_SUBMIT", "the judge cannot submit cards")
	ErrNotInRound        = newError(KindNotEligible, "NOT_IN_ROUND", "player joined after this round started")

	ErrCardNotInHand  = newError(KindInvalidChoice, "CARD_NOT_IN_HAND", "card not in hand")
	ErrDuplicateCard  = newError(KindInvalidChoice, "DUPLICATE_CARD", "card submitted twice")
	ErrWrongCardCount = newError(KindInvalidChoice, "WRONG_CARD_COUNT", "wrong number of cards for this prompt")
	ErrInvalidWinner  = newError(KindInvalidChoice, "INVALID_WINNER", "winner did not submit this round")
	ErrNameTaken      = newError(KindInvalidChoice, "NAME_TAKEN", "name already taken in this room")
	ErrInvalidName    = newError(KindInvalidChoice, "INVALID_NAME", "invalid player name")

	ErrRoomFull = newError(KindCapacity, "ROOM_FULL", "room is full")

	ErrInvalidConfig   = newError(KindConfig, "INVALID_CONFIG", "invalid room configuration")
	ErrCatalogTooSmall = newError(KindConfig, "CATALOG_TOO_SMALL", "card catalog too small for room")
)

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.Kind
	}
	return KindInternal
}

// CodeOf returns the machine code of the first *Error in err's chain.
func CodeOf(err error) string {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.Code
	}
	return "INTERNAL"
}

func errorf(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
