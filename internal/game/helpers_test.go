package game

import (
	"fmt"
	"strings"
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/blankcards/internal/deck"
	"github.com/lox/blankcards/internal/randutil"
)

// testCatalog builds prompts with the given number of blanks and enough
// responses for a full room at default settings.
func testCatalog(t *testing.T, blanks int) *deck.Catalog {
	t.Helper()
	gaps := strings.TrimSpace(strings.Repeat(deck.Blank+" ", blanks))

	var cards []deck.Card
	for i := range 12 {
		cards = append(cards, deck.NewCard(fmt.Sprintf("p%02d", i), deck.Prompt, fmt.Sprintf("Prompt %d: %s.", i, gaps), "test"))
	}
	for i := range 150 {
		cards = append(cards, deck.NewCard(fmt.Sprintf("r%03d", i), deck.Response, fmt.Sprintf("Answer %d", i), "test"))
	}
	c, err := deck.NewCatalog(cards...)
	require.NoError(t, err)
	return c
}

func newTestRoom(t *testing.T, cfg Config, catalog *deck.Catalog) *Room {
	t.Helper()
	r, err := NewRoom("room_test", "Test Room", cfg, catalog, randutil.NewLocked(7), quartz.NewMock(t))
	require.NoError(t, err)
	return r
}

func withScoreLimit(limit int) Config {
	cfg := DefaultConfig()
	cfg.ScoreLimit = limit
	return cfg
}

// join adds players named after their ids.
func join(t *testing.T, r *Room, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := r.Join(id, id)
		require.NoError(t, err)
	}
}

// answer submits the first cards of the player's hand.
func answer(t *testing.T, r *Room, playerID string) []string {
	t.Helper()
	p := r.player(playerID)
	require.NotNil(t, p)
	pick := r.round.Prompt.Pick()
	ids := make([]string, pick)
	for i := range pick {
		ids[i] = p.Hand[i].ID
	}
	require.NoError(t, r.Submit(playerID, ids...))
	return ids
}

// answerAll submits for every required player still missing.
func answerAll(t *testing.T, r *Room) {
	t.Helper()
	for _, id := range r.round.Required {
		if !r.round.HasSubmitted(id) {
			answer(t, r, id)
		}
	}
}

// requireConserved checks every catalog card sits in exactly one place.
func requireConserved(t *testing.T, r *Room, catalog *deck.Catalog) {
	t.Helper()

	live := r.round != nil && (r.round.Phase == CollectingSubmissions || r.round.Phase == Judging)

	responses := make(map[string]int)
	draw, discard := r.responses.Contents()
	for _, c := range append(draw, discard...) {
		responses[c.ID]++
	}
	for _, p := range r.players {
		for _, c := range p.Hand {
			responses[c.ID]++
		}
	}
	if live {
		for _, cards := range r.round.Submissions {
			for _, c := range cards {
				responses[c.ID]++
			}
		}
	}
	requireExactlyOnce(t, "response", responses, catalog.Cards(deck.Response))

	prompts := make(map[string]int)
	draw, discard = r.prompts.Contents()
	for _, c := range append(draw, discard...) {
		prompts[c.ID]++
	}
	if live {
		prompts[r.round.Prompt.ID]++
	}
	requireExactlyOnce(t, "prompt", prompts, catalog.Cards(deck.Prompt))
}

func requireExactlyOnce(t *testing.T, kind string, counts map[string]int, universe []deck.Card) {
	t.Helper()
	require.Len(t, counts, len(universe), "%s cards lost or invented", kind)
	for _, c := range universe {
		require.Equal(t, 1, counts[c.ID], "%s card %s", kind, c.ID)
	}
}
