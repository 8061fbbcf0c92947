package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lox/blankcards/internal/game"
	"github.com/lox/blankcards/internal/server"
)

// RoomsCommand lists all open rooms
type RoomsCommand struct{}

func (cmd *RoomsCommand) Run(flags *GlobalFlags) error {
	wsClient, cfg, _, err := SetupClient(flags)
	if err != nil {
		return err
	}
	defer func() { _ = wsClient.Disconnect() }()

	wait := wsClient.Expect(server.MessageTypeRoomList, server.MessageTypeError)
	if err := wsClient.ListRooms(); err != nil {
		return fmt.Errorf("failed to request room list: %w", err)
	}

	msg, err := reply(wait, requestTimeout(cfg))
	if err != nil {
		return err
	}

	var data server.RoomListData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("error parsing room list: %w", err)
	}
	PrintRooms(os.Stdout, data.Rooms)
	return nil
}

// PrintRooms writes one line per room summary.
func PrintRooms(w io.Writer, rooms []game.Summary) {
	if len(rooms) == 0 {
		_, _ = fmt.Fprintln(w, "No rooms open")
		return
	}

	_, _ = fmt.Fprintln(w, "Open rooms:")
	for _, r := range rooms {
		_, _ = fmt.Fprintf(w, "  %s  %-20s %d/%d players, first to %d, %s\n",
			r.ID, r.Name, r.Players, r.MaxPlayers, r.ScoreLimit, r.Phase)
	}
}
