package engine

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blankcards/internal/game"
	"github.com/lox/blankcards/internal/gameid"
	"github.com/lox/blankcards/internal/randutil"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger; the dispatcher logs under the "engine" prefix.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger.WithPrefix("engine")
	}
}

// WithClock sets the clock used for room, player and round timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// WithNotifier registers the receiver of commit notifications.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

// WithDefaults sets the rules new rooms start from.
func WithDefaults(cfg game.Config) Option {
	return func(d *Dispatcher) {
		d.defaults = cfg
	}
}

// WithRandSource sets the factory for each room's shuffling source. Tests
// pass seeded sources; the default seeds every room from crypto/rand.
func WithRandSource(newSource func() randutil.Source) Option {
	return func(d *Dispatcher) {
		d.newSource = newSource
	}
}

// WithIDGenerators replaces the room and player id generators.
func WithIDGenerators(rooms, players *gameid.Generator) Option {
	return func(d *Dispatcher) {
		d.roomIDs = rooms
		d.playerIDs = players
	}
}

func defaultLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// RoomOption overrides one rule for a new room.
type RoomOption func(*game.Config)

// WithScoreLimit sets the score that ends the game.
func WithScoreLimit(limit int) RoomOption {
	return func(cfg *game.Config) {
		cfg.ScoreLimit = limit
	}
}

// WithMaxPlayers caps the number of seats.
func WithMaxPlayers(n int) RoomOption {
	return func(cfg *game.Config) {
		cfg.MaxPlayers = n
	}
}

// WithHandSize sets how many cards each player holds.
func WithHandSize(n int) RoomOption {
	return func(cfg *game.Config) {
		cfg.HandSize = n
	}
}

// WithRules replaces every rule at once.
func WithRules(rules game.Config) RoomOption {
	return func(cfg *game.Config) {
		*cfg = rules
	}
}
