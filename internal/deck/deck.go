package deck

import (
	"errors"
	"fmt"

	"github.com/lox/blankcards/internal/randutil"
)

var (
	// ErrDeckExhausted means both piles are empty: the catalog is too small
	// for the demand placed on it.
	ErrDeckExhausted = errors.New("deck exhausted")
	// ErrInvalidCard means a card of the wrong kind was handed to a deck.
	ErrInvalidCard = errors.New("invalid card for deck")
)

// Deck is a draw pile and a discard pile over one kind of catalog card.
// A Deck is not safe for concurrent use; rooms clone it per transaction.
type Deck struct {
	kind    Kind
	draw    []Card
	discard []Card
	rng     randutil.Source
}

// New creates a deck holding every catalog card of kind, shuffled.
func New(catalog *Catalog, kind Kind, rng randutil.Source) *Deck {
	d := &Deck{
		kind: kind,
		draw: catalog.Cards(kind),
		rng:  rng,
	}
	d.Shuffle()
	return d
}

// Kind returns the kind of card the deck holds.
func (d *Deck) Kind() Kind {
	return d.kind
}

// Shuffle randomizes the order of the draw pile (Fisher-Yates).
func (d *Deck) Shuffle() {
	for i := len(d.draw) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	}
}

// Draw removes and returns the top card. An empty draw pile is first
// replaced by the shuffled discard pile.
func (d *Deck) Draw() (Card, error) {
	if len(d.draw) == 0 {
		if len(d.discard) == 0 {
			return Card{}, fmt.Errorf("%w: no %s cards left", ErrDeckExhausted, d.kind)
		}
		d.reshuffle()
	}

	card := d.draw[0]
	d.draw = d.draw[1:]
	return card, nil
}

// DrawN draws n cards. On failure the cards already drawn are returned to
// the top of the draw pile in order, so the deck is unchanged.
func (d *Deck) DrawN(n int) ([]Card, error) {
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		card, err := d.Draw()
		if err != nil {
			d.draw = append(cards, d.draw...)
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Discard puts card on the discard pile.
func (d *Deck) Discard(card Card) error {
	if card.Kind != d.kind {
		return fmt.Errorf("%w: %s card %s in %s deck", ErrInvalidCard, card.Kind, card.ID, d.kind)
	}
	d.discard = append(d.discard, card)
	return nil
}

// DiscardAll discards every card, stopping at the first kind mismatch.
func (d *Deck) DiscardAll(cards []Card) error {
	for _, card := range cards {
		if err := d.Discard(card); err != nil {
			return err
		}
	}
	return nil
}

// reshuffle moves the discard pile into the draw pile. Cards held by players
// are never part of either pile, so they are untouched.
func (d *Deck) reshuffle() {
	d.draw = append(d.draw[:0], d.discard...)
	d.discard = nil
	d.Shuffle()
}

// Clone returns an independent copy sharing only the randomness source.
func (d *Deck) Clone() *Deck {
	return &Deck{
		kind:    d.kind,
		draw:    append([]Card(nil), d.draw...),
		discard: append([]Card(nil), d.discard...),
		rng:     d.rng,
	}
}

// CardsRemaining returns the number of cards left in the draw pile
func (d *Deck) CardsRemaining() int {
	return len(d.draw)
}

// DiscardCount returns the number of cards on the discard pile.
func (d *Deck) DiscardCount() int {
	return len(d.discard)
}

// IsEmpty returns true if neither pile holds a card
func (d *Deck) IsEmpty() bool {
	return len(d.draw) == 0 && len(d.discard) == 0
}

// Peek returns the top card without removing it from the deck
func (d *Deck) Peek() (Card, bool) {
	if len(d.draw) == 0 {
		return Card{}, false
	}
	return d.draw[0], true
}

// Contents returns copies of both piles, for conservation checks.
func (d *Deck) Contents() (draw, discard []Card) {
	return append([]Card(nil), d.draw...), append([]Card(nil), d.discard...)
}
