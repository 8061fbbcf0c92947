package game

import "fmt"

const (
	DefaultScoreLimit = 5
	MaxScoreLimit     = 20
	DefaultMaxPlayers = 8
	DefaultHandSize   = 10
	MinPlayers        = 2
	MaxNameLength     = 20
)

// Config holds the rules a room is created with.
type Config struct {
	ScoreLimit int `json:"scoreLimit"`
	MaxPlayers int `json:"maxPlayers"`
	HandSize   int `json:"handSize"`
	MinPlayers int `json:"minPlayers"`
}

// DefaultConfig returns the standard rules.
func DefaultConfig() Config {
	return Config{
		ScoreLimit: DefaultScoreLimit,
		MaxPlayers: DefaultMaxPlayers,
		HandSize:   DefaultHandSize,
		MinPlayers: MinPlayers,
	}
}

// Validate checks the config, returning the first invalid field.
func (c Config) Validate() error {
	if c.ScoreLimit < 1 || c.ScoreLimit > MaxScoreLimit {
		return errorf(ErrInvalidConfig, "score limit must be between 1 and %d, got %d", MaxScoreLimit, c.ScoreLimit)
	}
	if c.MinPlayers < MinPlayers {
		return errorf(ErrInvalidConfig, "min players must be at least %d, got %d", MinPlayers, c.MinPlayers)
	}
	if c.MaxPlayers < c.MinPlayers {
		return errorf(ErrInvalidConfig, "max players (%d) must be >= min players (%d)", c.MaxPlayers, c.MinPlayers)
	}
	if c.HandSize < 1 {
		return errorf(ErrInvalidConfig, "hand size must be positive, got %d", c.HandSize)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("score limit %d, %d-%d players, %d cards", c.ScoreLimit, c.MinPlayers, c.MaxPlayers, c.HandSize)
}
