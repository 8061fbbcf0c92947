package server

import (
	"encoding/json"
	"time"

	"github.com/lox/blankcards/internal/engine"
	"github.com/lox/blankcards/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message stamped with now.
func NewMessage(messageType MessageType, data any, now time.Time) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: now,
	}, nil
}

// Client → Server Messages

// CreateRoomData leaves a rule nil to take the server default. An explicit
// value, zero included, is validated by the room.
type CreateRoomData struct {
	Name       string `json:"name"`
	ScoreLimit *int   `json:"scoreLimit,omitempty"`
	MaxPlayers *int   `json:"maxPlayers,omitempty"`
	HandSize   *int   `json:"handSize,omitempty"`
}

// RoomOptions converts the fields that were sent into room options.
func (d CreateRoomData) RoomOptions() []engine.RoomOption {
	var opts []engine.RoomOption
	if d.ScoreLimit != nil {
		opts = append(opts, engine.WithScoreLimit(*d.ScoreLimit))
	}
	if d.MaxPlayers != nil {
		opts = append(opts, engine.WithMaxPlayers(*d.MaxPlayers))
	}
	if d.HandSize != nil {
		opts = append(opts, engine.WithHandSize(*d.HandSize))
	}
	return opts
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type SubmitCardsData struct {
	CardIDs []string `json:"cardIds"`
}

type PickWinnerData struct {
	PlayerID string `json:"playerId"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type RoomCreatedData struct {
	RoomID string `json:"roomId"`
}

type JoinedData struct {
	RoomID   string    `json:"roomId"`
	PlayerID string    `json:"playerId"`
	Token    string    `json:"token"`
	State    game.View `json:"state"`
}

type RoomListData struct {
	Rooms []game.Summary `json:"rooms"`
}

type LeftData struct {
	RoomID string `json:"roomId"`
}

type WinnerData struct {
	Scores map[string]int `json:"scores"`
}
