package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/blankcards/internal/tui"
)

// PlayCommand opens the interactive TUI, optionally joining a room first
type PlayCommand struct {
	Room string `short:"r" long:"room" help:"Room ID to join on startup (overrides config)"`
}

func (cmd *PlayCommand) Run(flags *GlobalFlags) error {
	// Create client with file logging (handles config loading and log file creation)
	wsClient, cfg, logger, cleanup, err := SetupClientWithFileLogging(flags)
	if err != nil {
		return err
	}
	defer cleanup()

	room := cfg.Player.Room
	if cmd.Room != "" {
		room = cmd.Room
	}

	logger.Info("Starting blankcards TUI",
		"server", cfg.Server.URL,
		"player", cfg.Player.Name,
		"room", room)

	tuiModel := tui.NewTUIModel(logger)
	bridge := tui.NewBridge(wsClient, tuiModel, cfg.Player.Name)

	tuiModel.AddLogEntries(
		tui.HeaderStyle.Render(" blankcards "),
		"Connected to "+cfg.Server.URL+" as "+cfg.Player.Name,
		"Type help for commands.",
		"",
	)

	if room != "" {
		if err := wsClient.JoinRoom(room, cfg.Player.Name); err != nil {
			return fmt.Errorf("failed to join room %s: %w", room, err)
		}
	} else if err := wsClient.ListRooms(); err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}

	program := tea.NewProgram(tuiModel, tea.WithAltScreen())
	tuiModel.SetProgram(program)
	bridge.Start()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	// Disconnecting gives up the seat.
	return nil
}
