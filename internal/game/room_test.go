package game

import (
	"errors"
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blankcards/internal/deck"
	"github.com/lox/blankcards/internal/randutil"
)

func TestThreeWinScenario(t *testing.T) {
	catalog := testCatalog(t, 1)
	r := newTestRoom(t, withScoreLimit(3), catalog)
	join(t, r, "alice", "bob")

	require.NoError(t, r.Start("alice"))
	assert.Equal(t, CollectingSubmissions, r.Phase())
	assert.Equal(t, "alice", r.round.JudgeID)

	// Bob wins whenever he is not judging; Alice wins his rounds.
	for r.Phase() != GameOver {
		judge := r.round.JudgeID
		other := "bob"
		if judge == "bob" {
			other = "alice"
		}

		played := answer(t, r, other)
		require.Equal(t, Judging, r.Phase())

		scores, err := r.PickWinner(judge, other)
		require.NoError(t, err)
		assert.Equal(t, r.Scores(), scores)
		assert.Equal(t, played[0], r.LastResult().Cards[0].ID)

		if r.Phase() != GameOver {
			assert.Equal(t, CollectingSubmissions, r.Phase())
			assert.Equal(t, other, r.round.JudgeID, "judge rotates to the other player")
		}
		requireConserved(t, r, catalog)
	}

	assert.Equal(t, 3, r.Scores()["bob"])
	assert.Equal(t, 2, r.Scores()["alice"])
	assert.Equal(t, "bob", r.WinnerID())

	hand := r.player("alice").Hand
	err := r.Submit("alice", hand[0].ID)
	assert.ErrorIs(t, err, ErrGameOver)
	assert.Equal(t, KindIllegalState, KindOf(err))
}

func TestStateMachineLegality(t *testing.T) {
	catalog := testCatalog(t, 1)

	lobby := func(t *testing.T) *Room {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")
		return r
	}
	collecting := func(t *testing.T) *Room {
		r := lobby(t)
		require.NoError(t, r.Start("alice"))
		return r
	}
	judging := func(t *testing.T) *Room {
		r := collecting(t)
		answerAll(t, r)
		require.Equal(t, Judging, r.Phase())
		return r
	}
	over := func(t *testing.T) *Room {
		r := newTestRoom(t, withScoreLimit(1), catalog)
		join(t, r, "alice", "bob", "carol")
		require.NoError(t, r.Start("alice"))
		answerAll(t, r)
		_, err := r.PickWinner("alice", "bob")
		require.NoError(t, err)
		require.Equal(t, GameOver, r.Phase())
		return r
	}
	firstCard := func(r *Room, id string) string { return r.player(id).Hand[0].ID }

	tests := []struct {
		name   string
		setup  func(*testing.T) *Room
		action func(*Room) error
		want   *Error
		kind   Kind
	}{
		{
			name:   "submit in lobby",
			setup:  lobby,
			action: func(r *Room) error { return r.Submit("bob", "r000") },
			want:   ErrGameNotStarted,
			kind:   KindIllegalState,
		},
		{
			name:   "submit while judging",
			setup:  judging,
			action: func(r *Room) error { return r.Submit("bob", firstCard(r, "bob")) },
			want:   ErrWrongPhase,
			kind:   KindIllegalState,
		},
		{
			name:   "submit after game over",
			setup:  over,
			action: func(r *Room) error { return r.Submit("bob", firstCard(r, "bob")) },
			want:   ErrGameOver,
			kind:   KindIllegalState,
		},
		{
			name:  "pick while collecting",
			setup: collecting,
			action: func(r *Room) error {
				_, err := r.PickWinner("alice", "bob")
				return err
			},
			want: ErrWrongPhase,
			kind: KindIllegalState,
		},
		{
			name:  "pick after game over",
			setup: over,
			action: func(r *Room) error {
				_, err := r.PickWinner("bob", "carol")
				return err
			},
			want: ErrGameOver,
			kind: KindIllegalState,
		},
		{
			name:   "judge submits",
			setup:  collecting,
			action: func(r *Room) error { return r.Submit("alice", firstCard(r, "alice")) },
			want:   ErrJudgeCannotSubmit,
			kind:   KindNotEligible,
		},
		{
			name:  "non-judge picks",
			setup: judging,
			action: func(r *Room) error {
				_, err := r.PickWinner("bob", "carol")
				return err
			},
			want: ErrNotJudge,
			kind: KindNotEligible,
		},
		{
			name:  "winner without submission",
			setup: judging,
			action: func(r *Room) error {
				_, err := r.PickWinner("alice", "alice")
				return err
			},
			want: ErrInvalidWinner,
			kind: KindInvalidChoice,
		},
		{
			name:   "card not in hand",
			setup:  collecting,
			action: func(r *Room) error { return r.Submit("bob", firstCard(r, "carol")) },
			want:   ErrCardNotInHand,
			kind:   KindInvalidChoice,
		},
		{
			name:  "too many cards",
			setup: collecting,
			action: func(r *Room) error {
				hand := r.player("bob").Hand
				return r.Submit("bob", hand[0].ID, hand[1].ID)
			},
			want: ErrWrongCardCount,
			kind: KindInvalidChoice,
		},
		{
			name:   "unknown player",
			setup:  collecting,
			action: func(r *Room) error { return r.Submit("mallory", "r000") },
			want:   ErrPlayerNotFound,
			kind:   KindNotFound,
		},
		{
			name:   "start twice",
			setup:  collecting,
			action: func(r *Room) error { return r.Start("alice") },
			want:   ErrAlreadyStarted,
			kind:   KindIllegalState,
		},
		{
			name:   "non-host starts",
			setup:  lobby,
			action: func(r *Room) error { return r.Start("bob") },
			want:   ErrNotHost,
			kind:   KindNotEligible,
		},
		{
			name:   "restart after game over",
			setup:  over,
			action: func(r *Room) error { return r.Start("alice") },
			want:   ErrGameOver,
			kind:   KindIllegalState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.setup(t)
			before := r.View("")

			err := tt.action(r)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, before, r.View(""), "failed action must not change the room")
			requireConserved(t, r, catalog)
		})
	}
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	r := newTestRoom(t, DefaultConfig(), testCatalog(t, 1))
	join(t, r, "alice")

	err := r.Start("alice")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
	assert.Equal(t, Lobby, r.Phase())
}

func TestStartDealsHands(t *testing.T) {
	catalog := testCatalog(t, 1)
	r := newTestRoom(t, DefaultConfig(), catalog)
	join(t, r, "alice", "bob", "carol")

	for _, p := range r.players {
		assert.Empty(t, p.Hand, "no hands in the lobby")
	}

	require.NoError(t, r.Start("alice"))
	for _, p := range r.players {
		assert.Len(t, p.Hand, DefaultHandSize)
	}
	assert.Equal(t, []string{"bob", "carol"}, r.round.Required)
	assert.Equal(t, 1, r.round.Number)
	requireConserved(t, r, catalog)
}

func TestJoin(t *testing.T) {
	catalog := testCatalog(t, 1)

	t.Run("first player is host", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob")
		assert.Equal(t, "alice", r.HostID())
	})

	t.Run("room full", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxPlayers = 2
		r := newTestRoom(t, cfg, catalog)
		join(t, r, "alice", "bob")

		_, err := r.Join("carol", "carol")
		assert.ErrorIs(t, err, ErrRoomFull)
		assert.Equal(t, KindCapacity, KindOf(err))
	})

	t.Run("names", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice")

		tests := []struct {
			name string
			want error
		}{
			{name: "ALICE", want: ErrNameTaken},
			{name: "  alice ", want: ErrNameTaken},
			{name: "   ", want: ErrInvalidName},
			{name: "abcdefghijklmnopqrstu", want: ErrInvalidName},
			{name: "  Bob  "},
		}
		for _, tt := range tests {
			p, err := r.Join("player_"+tt.name, tt.name)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want, "name %q", tt.name)
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, "Bob", p.Name)
		}
	})

	t.Run("rejected while collecting", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob")
		require.NoError(t, r.Start("alice"))

		_, err := r.Join("carol", "carol")
		assert.ErrorIs(t, err, ErrGameAlreadyInProgress)
		assert.Equal(t, KindIllegalState, KindOf(err))
	})

	t.Run("during judging waits for next round", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")
		require.NoError(t, r.Start("alice"))
		answerAll(t, r)
		require.Equal(t, Judging, r.Phase())

		p, err := r.Join("dave", "dave")
		require.NoError(t, err)
		assert.Len(t, p.Hand, DefaultHandSize)
		assert.False(t, r.round.IsRequired("dave"))
		requireConserved(t, r, catalog)

		_, err = r.PickWinner("alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", r.round.JudgeID)
		assert.Equal(t, []string{"alice", "carol", "dave"}, r.round.Required)
	})

	t.Run("rejected after game over", func(t *testing.T) {
		r := newTestRoom(t, withScoreLimit(1), catalog)
		join(t, r, "alice", "bob")
		require.NoError(t, r.Start("alice"))
		answerAll(t, r)
		_, err := r.PickWinner("alice", "bob")
		require.NoError(t, err)

		_, err = r.Join("carol", "carol")
		assert.ErrorIs(t, err, ErrGameOver)
	})
}

func TestSubmit(t *testing.T) {
	t.Run("resubmission replaces", func(t *testing.T) {
		catalog := testCatalog(t, 1)
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")
		require.NoError(t, r.Start("alice"))

		first := answer(t, r, "bob")
		second := answer(t, r, "bob")
		assert.NotEqual(t, first, second)

		require.Len(t, r.round.Submissions["bob"], 1)
		assert.Equal(t, second[0], r.round.Submissions["bob"][0].ID)
		assert.Len(t, r.player("bob").Hand, DefaultHandSize)
		assert.Equal(t, CollectingSubmissions, r.Phase())
		requireConserved(t, r, catalog)
	})

	t.Run("multiple blanks need multiple cards", func(t *testing.T) {
		catalog := testCatalog(t, 2)
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob")
		require.NoError(t, r.Start("alice"))
		require.Equal(t, 2, r.round.Prompt.Pick())

		hand := r.player("bob").Hand
		err := r.Submit("bob", hand[0].ID)
		assert.ErrorIs(t, err, ErrWrongCardCount)

		err = r.Submit("bob", hand[0].ID, hand[0].ID)
		assert.ErrorIs(t, err, ErrDuplicateCard)

		require.NoError(t, r.Submit("bob", hand[1].ID, hand[0].ID))
		assert.Equal(t, Judging, r.Phase())
		assert.Equal(t, []deck.Card{hand[1], hand[0]}, r.round.Submissions["bob"])

		_, err = r.PickWinner("alice", "bob")
		require.NoError(t, err)
		last := r.LastResult()
		assert.Equal(t, r.LastResult().Prompt.Fill(hand[1].Text, hand[0].Text), last.Text)
		requireConserved(t, r, catalog)
	})

	t.Run("late joiner is not required", func(t *testing.T) {
		catalog := testCatalog(t, 1)
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")
		require.NoError(t, r.Start("alice"))
		answer(t, r, "bob")
		answer(t, r, "carol")
		join(t, r, "dave")

		err := r.Submit("dave", r.player("dave").Hand[0].ID)
		assert.ErrorIs(t, err, ErrWrongPhase)

		// Carol leaves; bob's answer is still there to judge.
		_, err = r.Leave("carol")
		require.NoError(t, err)
		assert.Equal(t, Judging, r.Phase())
		assert.False(t, r.round.IsRequired("dave"))
	})
}

func TestLeave(t *testing.T) {
	catalog := testCatalog(t, 1)

	t.Run("idempotent", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob")

		left, err := r.Leave("bob")
		require.NoError(t, err)
		assert.True(t, left)
		after := r.View("")

		left, err = r.Leave("bob")
		require.NoError(t, err)
		assert.False(t, left)
		assert.Equal(t, after, r.View(""))
	})

	t.Run("last player closes room", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice")

		_, err := r.Leave("alice")
		require.NoError(t, err)
		assert.True(t, r.Closed())

		_, err = r.Leave("alice")
		assert.ErrorIs(t, err, ErrRoomNotFound)
		_, err = r.Join("bob", "bob")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("host passes on", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")

		_, err := r.Leave("alice")
		require.NoError(t, err)
		assert.Equal(t, "bob", r.HostID())
		require.NoError(t, r.Start("bob"))
	})

	t.Run("judge leaving restarts round with next judge", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")
		require.NoError(t, r.Start("alice"))
		answer(t, r, "bob")
		number := r.round.Number

		_, err := r.Leave("alice")
		require.NoError(t, err)
		assert.Equal(t, CollectingSubmissions, r.Phase())
		assert.Equal(t, "bob", r.round.JudgeID)
		assert.Equal(t, number+1, r.round.Number)
		assert.Empty(t, r.round.Submissions)
		assert.Equal(t, []string{"carol"}, r.round.Required)
		requireConserved(t, r, catalog)
	})

	t.Run("non-judge leaving completes collection", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")
		require.NoError(t, r.Start("alice"))
		answer(t, r, "bob")

		_, err := r.Leave("carol")
		require.NoError(t, err)
		assert.Equal(t, Judging, r.Phase())
		assert.Equal(t, []string{"bob"}, r.round.Required)
		requireConserved(t, r, catalog)
	})

	t.Run("only submitter leaving during judging restarts round", func(t *testing.T) {
		r := newTestRoom(t, DefaultConfig(), catalog)
		join(t, r, "alice", "bob", "carol")
		require.NoError(t, r.Start("alice"))
		answer(t, r, "bob")
		_, err := r.Leave("carol")
		require.NoError(t, err)
		require.Equal(t, Judging, r.Phase())
		join(t, r, "dave")

		_, err = r.Leave("bob")
		require.NoError(t, err)
		assert.Equal(t, CollectingSubmissions, r.Phase())
		assert.Equal(t, "dave", r.round.JudgeID)
		assert.Equal(t, []string{"alice"}, r.round.Required)
		requireConserved(t, r, catalog)
	})

	t.Run("dropping below minimum returns to lobby", func(t *testing.T) {
		r := newTestRoom(t, withScoreLimit(5), catalog)
		join(t, r, "alice", "bob")
		require.NoError(t, r.Start("alice"))
		answer(t, r, "bob")
		_, err := r.PickWinner("alice", "bob")
		require.NoError(t, err)

		_, err = r.Leave("alice")
		require.NoError(t, err)
		assert.Equal(t, Lobby, r.Phase())
		assert.Empty(t, r.player("bob").Hand)
		assert.Equal(t, 1, r.Scores()["bob"], "scores kept until next start")
		assert.Equal(t, "bob", r.HostID())
		requireConserved(t, r, catalog)

		join(t, r, "carol")
		require.NoError(t, r.Start("bob"))
		assert.Equal(t, 0, r.Scores()["bob"])
		assert.Nil(t, r.LastResult())
		requireConserved(t, r, catalog)
	})
}

func TestRoundRobinFairness(t *testing.T) {
	catalog := testCatalog(t, 1)
	r := newTestRoom(t, withScoreLimit(MaxScoreLimit), catalog)
	ids := []string{"alice", "bob", "carol", "dave"}
	join(t, r, ids...)
	require.NoError(t, r.Start("alice"))

	const rounds = 13
	judged := make(map[string]int)
	var order []string
	for i := range rounds {
		judge := r.round.JudgeID
		judged[judge]++
		order = append(order, judge)

		answerAll(t, r)
		// Spread wins so nobody reaches the limit.
		winner := r.round.Required[i%len(r.round.Required)]
		_, err := r.PickWinner(judge, winner)
		require.NoError(t, err)
		require.Equal(t, CollectingSubmissions, r.Phase())
	}

	for _, id := range ids {
		assert.GreaterOrEqual(t, judged[id], rounds/len(ids), "%s judged too rarely: %v", id, order)
	}
	assert.Equal(t, ids, order[:4])
	assert.Equal(t, ids, order[4:8])
}

func TestRotationSurvivesLeaves(t *testing.T) {
	catalog := testCatalog(t, 1)
	r := newTestRoom(t, withScoreLimit(MaxScoreLimit), catalog)
	join(t, r, "alice", "bob", "carol", "dave")
	require.NoError(t, r.Start("alice"))

	playRound := func() {
		answerAll(t, r)
		_, err := r.PickWinner(r.round.JudgeID, r.round.Required[0])
		require.NoError(t, err)
	}

	playRound()
	playRound()
	require.Equal(t, "carol", r.round.JudgeID)

	// A player before the judge leaving does not skip anyone.
	_, err := r.Leave("alice")
	require.NoError(t, err)
	assert.Equal(t, "carol", r.round.JudgeID)
	playRound()
	assert.Equal(t, "dave", r.round.JudgeID)

	// The last seat's judge leaving wraps to the first seat.
	_, err = r.Leave("dave")
	require.NoError(t, err)
	assert.Equal(t, "bob", r.round.JudgeID)
}

func TestConservationUnderRandomPlay(t *testing.T) {
	catalog := testCatalog(t, 2)
	rng := randutil.New(11)
	r, err := NewRoom("room_walk", "Walk", withScoreLimit(4), catalog, randutil.NewLocked(3), quartz.NewMock(t))
	require.NoError(t, err)

	names := []string{"ann", "ben", "cat", "dan", "eve", "fay"}
	next := 0

	for step := 0; step < 3000; step++ {
		candidate := r.Clone()
		var actErr error

		players := candidate.players
		pickPlayer := func() string {
			if len(players) == 0 {
				return "nobody"
			}
			return players[rng.IntN(len(players))].ID
		}

		switch rng.IntN(6) {
		case 0:
			name := names[next%len(names)]
			next++
			_, actErr = candidate.Join(name, name)
		case 1:
			if rng.IntN(4) == 0 {
				_, actErr = candidate.Leave(pickPlayer())
			}
		case 2:
			actErr = candidate.Start(candidate.HostID())
		case 3, 4:
			id := pickPlayer()
			if p := candidate.player(id); p != nil && len(p.Hand) >= 2 {
				actErr = candidate.Submit(id, p.Hand[0].ID, p.Hand[1].ID)
			}
		case 5:
			if candidate.round != nil && len(candidate.round.Submissions) > 0 {
				for winner := range candidate.round.Submissions {
					_, actErr = candidate.PickWinner(candidate.round.JudgeID, winner)
					break
				}
			}
		}

		if actErr != nil {
			var gameErr *Error
			require.True(t, errors.As(actErr, &gameErr), "untyped error: %v", actErr)
			require.NotErrorIs(t, actErr, ErrOutOfCards, "catalog sized for the room ran dry")
			continue
		}
		if candidate.Closed() || candidate.Phase() == GameOver {
			if candidate.Phase() == GameOver {
				requireConserved(t, candidate, catalog)
			}
			fresh, err := NewRoom("room_walk", "Walk", withScoreLimit(4), catalog, randutil.NewLocked(int64(step)), quartz.NewMock(t))
			require.NoError(t, err)
			r = fresh
			continue
		}
		r = candidate
		requireConserved(t, r, catalog)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	catalog := testCatalog(t, 1)
	r := newTestRoom(t, DefaultConfig(), catalog)
	join(t, r, "alice", "bob", "carol")
	require.NoError(t, r.Start("alice"))
	before := r.View("bob")

	c := r.Clone()
	assert.Equal(t, r.Version()+1, c.Version())
	answer(t, c, "bob")
	answer(t, c, "carol")
	_, err := c.PickWinner("alice", "carol")
	require.NoError(t, err)

	assert.Equal(t, before, r.View("bob"))
	requireConserved(t, r, catalog)
	requireConserved(t, c, catalog)
}

func TestNewRoomValidation(t *testing.T) {
	small, err := deck.NewCatalog(
		deck.NewCard("p1", deck.Prompt, "Why ___?", ""),
		deck.NewCard("r1", deck.Response, "Because.", ""),
	)
	require.NoError(t, err)
	noPrompts, err := deck.NewCatalog(deck.NewCard("r1", deck.Response, "Because.", ""))
	require.NoError(t, err)

	tests := []struct {
		name    string
		room    string
		cfg     func(*Config)
		catalog *deck.Catalog
		want    *Error
	}{
		{name: "zero score limit", room: "x", cfg: func(c *Config) { c.ScoreLimit = 0 }, want: ErrInvalidConfig},
		{name: "score limit too high", room: "x", cfg: func(c *Config) { c.ScoreLimit = 21 }, want: ErrInvalidConfig},
		{name: "max below min", room: "x", cfg: func(c *Config) { c.MaxPlayers = 1 }, want: ErrInvalidConfig},
		{name: "no hand", room: "x", cfg: func(c *Config) { c.HandSize = 0 }, want: ErrInvalidConfig},
		{name: "empty name", room: "  ", want: ErrInvalidConfig},
		{name: "catalog too small", room: "x", catalog: small, want: ErrCatalogTooSmall},
		{name: "no prompts", room: "x", catalog: noPrompts, want: ErrCatalogTooSmall},
		{name: "hand smaller than pick", room: "x", cfg: func(c *Config) { c.HandSize = 1 }, catalog: testCatalog(t, 2), want: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			catalog := tt.catalog
			if catalog == nil {
				catalog = testCatalog(t, 1)
			}

			_, err := NewRoom("room_x", tt.room, cfg, catalog, randutil.NewLocked(1), quartz.NewMock(t))
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindConfig, KindOf(err))
		})
	}
}

func TestDefaultCatalogFitsDefaultConfig(t *testing.T) {
	catalog, err := deck.Default()
	require.NoError(t, err)

	_, err = NewRoom("room_default", "Default", DefaultConfig(), catalog, randutil.Seeded(), quartz.NewReal())
	assert.NoError(t, err)
}
