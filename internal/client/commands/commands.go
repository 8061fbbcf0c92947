package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/lox/blankcards/internal/client"
	"github.com/lox/blankcards/internal/server"
)

// GlobalFlags holds common configuration for all commands
type GlobalFlags struct {
	Config   string `short:"c" long:"config" default:"blankcards.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" long:"server" help:"Server URL to connect to (overrides config)"`
	Player   string `short:"p" long:"player" help:"Player name (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	LogFile  string `long:"log-file" help:"Log file path (overrides config)"`
	NoColor  bool   `long:"no-color" help:"Disable colour output"`
}

// LoadConfig loads the config file and applies command line overrides.
func LoadConfig(flags *GlobalFlags) (*client.ClientConfig, error) {
	cfg, err := client.LoadClientConfig(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if flags.Server != "" {
		cfg.Server.URL = flags.Server
	}
	if flags.Player != "" {
		cfg.Player.Name = flags.Player
	}
	if flags.LogLevel != "" {
		cfg.UI.LogLevel = flags.LogLevel
	}
	if flags.LogFile != "" {
		cfg.UI.LogFile = flags.LogFile
	}
	if flags.NoColor {
		cfg.UI.NoColor = true
	}
	if cfg.UI.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return cfg, nil
}

// SetupClient creates and connects a client logging to stderr
func SetupClient(flags *GlobalFlags) (*client.Client, *client.ClientConfig, *log.Logger, error) {
	cfg, err := LoadConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	// Commands that don't sit in a room need no real name.
	if cfg.Player.Name == "" {
		cfg.Player.Name = "observer"
	}
	return setupClientConfigured(cfg, os.Stderr)
}

// SetupClientWithFileLogging creates and connects a client that logs to the
// configured file, leaving the terminal to the TUI
func SetupClientWithFileLogging(flags *GlobalFlags) (*client.Client, *client.ClientConfig, *log.Logger, func(), error) {
	cfg, err := LoadConfig(flags)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if cfg.Player.Name == "" {
		name, err := promptName(os.Stdin, os.Stdout)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		cfg.Player.Name = name
	}

	// Setup logging to file (overwrite each time)
	logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	wsClient, finalCfg, logger, err := setupClientConfigured(cfg, logFile)
	if err != nil {
		_ = logFile.Close()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		_ = wsClient.Disconnect()
		_ = logFile.Close()
	}

	return wsClient, finalCfg, logger, cleanup, nil
}

func promptName(in io.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, "Enter your player name: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read player name: %w", err)
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return "", fmt.Errorf("player name is required")
	}
	return name, nil
}

// setupClientConfigured creates a client with an already loaded config and log writer
func setupClientConfigured(cfg *client.ClientConfig, logWriter io.Writer) (*client.Client, *client.ClientConfig, *log.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(logWriter)
	logger.SetLevel(cfg.LogLevel())

	wsClient := client.NewClient(cfg.Server.URL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ConnectTimeout)*time.Second)
	defer cancel()
	if err := wsClient.Connect(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	return wsClient, cfg, logger, nil
}

func requestTimeout(cfg *client.ClientConfig) time.Duration {
	return time.Duration(cfg.Server.RequestTimeout) * time.Second
}

// reply waits for a response, turning an error message into an error.
func reply(wait func(time.Duration) (*server.Message, error), timeout time.Duration) (*server.Message, error) {
	msg, err := wait(timeout)
	if err != nil {
		return nil, err
	}
	if msg.Type != server.MessageTypeError {
		return msg, nil
	}

	var data server.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, fmt.Errorf("error parsing server error: %w", err)
	}
	return nil, fmt.Errorf("server error %s: %s", data.Code, data.Message)
}
