package server

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/blankcards/internal/game"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Game   *GameSettings  `hcl:"game,block"`
	Rooms  []RoomConfig   `hcl:"room,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Port      int    `hcl:"port,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	JWTSecret string `hcl:"jwt_secret,optional"`
}

// GameSettings are the rules rooms are created with unless they say otherwise
type GameSettings struct {
	ScoreLimit int    `hcl:"score_limit,optional"`
	MaxPlayers int    `hcl:"max_players,optional"`
	HandSize   int    `hcl:"hand_size,optional"`
	DecksDir   string `hcl:"decks_dir,optional"`
}

// RoomConfig defines a room created when the server starts
type RoomConfig struct {
	Name       string `hcl:"name,label"`
	ScoreLimit int    `hcl:"score_limit,optional"`
	MaxPlayers int    `hcl:"max_players,optional"`
	HandSize   int    `hcl:"hand_size,optional"`
}

// envOverrides are read from the environment after the config file.
type envOverrides struct {
	Address   string `env:"BLANKCARDS_ADDRESS"`
	Port      int    `env:"BLANKCARDS_PORT"`
	LogLevel  string `env:"BLANKCARDS_LOG_LEVEL"`
	JWTSecret string `env:"BLANKCARDS_JWT_SECRET"`
	DecksDir  string `env:"BLANKCARDS_DECKS_DIR"`
}

const (
	defaultAddress  = "localhost"
	defaultPort     = 8080
	defaultLogLevel = "info"
)

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	defaults := game.DefaultConfig()
	return &ServerConfig{
		Server: ServerSettings{
			Address:  defaultAddress,
			Port:     defaultPort,
			LogLevel: defaultLogLevel,
		},
		Game: &GameSettings{
			ScoreLimit: defaults.ScoreLimit,
			MaxPlayers: defaults.MaxPlayers,
			HandSize:   defaults.HandSize,
		},
		Rooms: []RoomConfig{
			{Name: "Main"},
		},
	}
}

// LoadServerConfig loads server configuration from an HCL file. A missing
// file yields the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaultLogLevel
	}

	defaults := game.DefaultConfig()
	if c.Game == nil {
		c.Game = &GameSettings{}
	}
	if c.Game.ScoreLimit == 0 {
		c.Game.ScoreLimit = defaults.ScoreLimit
	}
	if c.Game.MaxPlayers == 0 {
		c.Game.MaxPlayers = defaults.MaxPlayers
	}
	if c.Game.HandSize == 0 {
		c.Game.HandSize = defaults.HandSize
	}
}

// ApplyEnv overlays BLANKCARDS_* environment variables onto the config.
func (c *ServerConfig) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Address != "" {
		c.Server.Address = o.Address
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.LogLevel != "" {
		c.Server.LogLevel = o.LogLevel
	}
	if o.JWTSecret != "" {
		c.Server.JWTSecret = o.JWTSecret
	}
	if o.DecksDir != "" {
		if c.Game == nil {
			c.Game = &GameSettings{}
		}
		c.Game.DecksDir = o.DecksDir
	}
	return nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Server.LogLevel, err)
	}
	if err := c.GameConfig().Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}

	seen := make(map[string]bool)
	for _, room := range c.Rooms {
		name := strings.TrimSpace(room.Name)
		if name == "" {
			return errors.New("room name cannot be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate room %q", name)
		}
		seen[name] = true
		if err := c.RoomRules(room).Validate(); err != nil {
			return fmt.Errorf("room %q: %w", name, err)
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GameConfig returns the default room rules.
func (c *ServerConfig) GameConfig() game.Config {
	cfg := game.DefaultConfig()
	if c.Game == nil {
		return cfg
	}
	if c.Game.ScoreLimit != 0 {
		cfg.ScoreLimit = c.Game.ScoreLimit
	}
	if c.Game.MaxPlayers != 0 {
		cfg.MaxPlayers = c.Game.MaxPlayers
	}
	if c.Game.HandSize != 0 {
		cfg.HandSize = c.Game.HandSize
	}
	return cfg
}

// RoomRules returns the rules for a configured room.
func (c *ServerConfig) RoomRules(room RoomConfig) game.Config {
	cfg := c.GameConfig()
	if room.ScoreLimit != 0 {
		cfg.ScoreLimit = room.ScoreLimit
	}
	if room.MaxPlayers != 0 {
		cfg.MaxPlayers = room.MaxPlayers
	}
	if room.HandSize != 0 {
		cfg.HandSize = room.HandSize
	}
	return cfg
}

// DecksDir returns the configured card pack directory, if any.
func (c *ServerConfig) DecksDir() string {
	if c.Game == nil {
		return ""
	}
	return c.Game.DecksDir
}
