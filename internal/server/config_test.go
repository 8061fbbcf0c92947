package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blankcards/internal/game"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadServerConfig(t *testing.T) {
	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 9090
  log_level = "debug"
}

game {
  score_limit = 7
  decks_dir   = "/srv/decks"
}

room "Lounge" {
  max_players = 4
}

room "Marathon" {
  score_limit = 15
}
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/srv/decks", cfg.DecksDir())

	rules := cfg.GameConfig()
	assert.Equal(t, 7, rules.ScoreLimit)
	assert.Equal(t, game.DefaultMaxPlayers, rules.MaxPlayers)
	assert.Equal(t, game.DefaultHandSize, rules.HandSize)

	require.Len(t, cfg.Rooms, 2)
	lounge := cfg.RoomRules(cfg.Rooms[0])
	assert.Equal(t, 4, lounge.MaxPlayers)
	assert.Equal(t, 7, lounge.ScoreLimit)
	assert.Equal(t, 15, cfg.RoomRules(cfg.Rooms[1]).ScoreLimit)
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, game.DefaultConfig(), cfg.GameConfig())
	require.Len(t, cfg.Rooms, 1)
	assert.Equal(t, "Main", cfg.Rooms[0].Name)
}

func TestLoadServerConfigMinimalFile(t *testing.T) {
	cfg, err := LoadServerConfig(writeConfig(t, "server {}\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Rooms)
}

func TestLoadServerConfigInvalidHCL(t *testing.T) {
	_, err := LoadServerConfig(writeConfig(t, "server {\n  port = \n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BLANKCARDS_PORT", "7070")
	t.Setenv("BLANKCARDS_LOG_LEVEL", "warn")
	t.Setenv("BLANKCARDS_JWT_SECRET", "from-env")
	t.Setenv("BLANKCARDS_DECKS_DIR", "/decks")

	cfg := DefaultServerConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "localhost:7070", cfg.Addr())
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, "from-env", cfg.Server.JWTSecret)
	assert.Equal(t, "/decks", cfg.DecksDir())
}

func TestApplyEnvRejectsBadPort(t *testing.T) {
	t.Setenv("BLANKCARDS_PORT", "eighty")

	cfg := DefaultServerConfig()
	assert.Error(t, cfg.ApplyEnv())
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ServerConfig)
		wantErr bool
	}{
		{name: "defaults", modify: func(*ServerConfig) {}},
		{name: "port zero", modify: func(c *ServerConfig) { c.Server.Port = 0 }, wantErr: true},
		{name: "port too high", modify: func(c *ServerConfig) { c.Server.Port = 70000 }, wantErr: true},
		{name: "unknown log level", modify: func(c *ServerConfig) { c.Server.LogLevel = "chatty" }, wantErr: true},
		{name: "score limit too high", modify: func(c *ServerConfig) { c.Game.ScoreLimit = game.MaxScoreLimit + 1 }, wantErr: true},
		{name: "unnamed room", modify: func(c *ServerConfig) { c.Rooms = append(c.Rooms, RoomConfig{Name: " "}) }, wantErr: true},
		{name: "duplicate room", modify: func(c *ServerConfig) { c.Rooms = append(c.Rooms, RoomConfig{Name: "Main"}) }, wantErr: true},
		{name: "room with one seat", modify: func(c *ServerConfig) { c.Rooms[0].MaxPlayers = 1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
