package commands

import (
	"encoding/json"
	"fmt"

	"github.com/lox/blankcards/internal/server"
)

// CreateCommand creates a room and prints its id
type CreateCommand struct {
	Name       string `arg:"" help:"Room name"`
	ScoreLimit int    `short:"n" long:"score-limit" help:"Points needed to win (server default if unset)"`
}

func (cmd *CreateCommand) Run(flags *GlobalFlags) error {
	wsClient, cfg, logger, err := SetupClient(flags)
	if err != nil {
		return err
	}
	defer func() { _ = wsClient.Disconnect() }()

	wait := wsClient.Expect(server.MessageTypeRoomCreated, server.MessageTypeError)
	if err := wsClient.CreateRoom(cmd.Name, cmd.ScoreLimit); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	msg, err := reply(wait, requestTimeout(cfg))
	if err != nil {
		return err
	}

	var data server.RoomCreatedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("error parsing reply: %w", err)
	}
	logger.Info("Room created", "room", data.RoomID, "name", cmd.Name)
	fmt.Println(data.RoomID)
	return nil
}
