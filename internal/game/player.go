package game

import (
	"time"

	"github.com/lox/blankcards/internal/deck"
)

// Player is a participant in a room. Players are owned by their room and are
// only changed through room actions.
type Player struct {
	ID       string
	Name     string
	Hand     []deck.Card
	Score    int
	JoinedAt time.Time
}

func (p *Player) clone() *Player {
	c := *p
	c.Hand = append([]deck.Card(nil), p.Hand...)
	return &c
}

// HasCard reports whether the card is in the player's hand.
func (p *Player) HasCard(cardID string) bool {
	return p.cardIndex(cardID) >= 0
}

func (p *Player) cardIndex(cardID string) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// takeCards removes the cards from the hand, preserving the order of ids.
// The ids must already be validated as present and distinct.
func (p *Player) takeCards(cardIDs []string) []deck.Card {
	taken := make([]deck.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		i := p.cardIndex(id)
		taken = append(taken, p.Hand[i])
		p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
	}
	return taken
}
