package game

import (
	"slices"
	"time"

	"github.com/lox/blankcards/internal/deck"
)

// Round is one play: a judge, a prompt, and the answers to it. A new Round
// replaces the old one; rounds are never reused.
type Round struct {
	Number      int
	Phase       Phase
	JudgeID     string
	Prompt      deck.Card
	Required    []string
	Submissions map[string][]deck.Card
	WinnerID    string
	StartedAt   time.Time
}

func (r *Round) clone() *Round {
	c := *r
	c.Required = slices.Clone(r.Required)
	c.Submissions = make(map[string][]deck.Card, len(r.Submissions))
	for id, cards := range r.Submissions {
		c.Submissions[id] = cards
	}
	return &c
}

// IsRequired reports whether the player must submit this round.
func (r *Round) IsRequired(playerID string) bool {
	return slices.Contains(r.Required, playerID)
}

// HasSubmitted reports whether the player has a submission recorded.
func (r *Round) HasSubmitted(playerID string) bool {
	_, ok := r.Submissions[playerID]
	return ok
}

// complete reports whether every required player has submitted.
func (r *Round) complete() bool {
	for _, id := range r.Required {
		if !r.HasSubmitted(id) {
			return false
		}
	}
	return len(r.Required) > 0
}

func (r *Round) dropRequired(playerID string) {
	r.Required = slices.DeleteFunc(r.Required, func(id string) bool { return id == playerID })
}

// RoundResult records how a round was won, for display after the room has
// moved on.
type RoundResult struct {
	Number     int         `json:"number"`
	Prompt     deck.Card   `json:"prompt"`
	JudgeID    string      `json:"judgeId"`
	WinnerID   string      `json:"winnerId"`
	WinnerName string      `json:"winnerName"`
	Cards      []deck.Card `json:"cards"`
	Text       string      `json:"text"`
}
