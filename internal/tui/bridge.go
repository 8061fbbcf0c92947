package tui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/blankcards/internal/client"
	"github.com/lox/blankcards/internal/game"
	"github.com/lox/blankcards/internal/server"
)

// Actions are the requests the command loop sends to the server.
type Actions interface {
	CreateRoom(name string, scoreLimit int) error
	JoinRoom(roomID, name string) error
	LeaveRoom() error
	StartGame() error
	SubmitCards(cardIDs ...string) error
	PickWinner(playerID string) error
	GetState(roomID string) error
	ListRooms() error
}

// Bridge manages the connection between a client and TUI model
type Bridge struct {
	actions Actions
	tui     *TUIModel
	name    string
	self    func() string
}

// NewBridge creates a new bridge between client and TUI. name is the
// display name used when joining rooms.
func NewBridge(c *client.Client, tui *TUIModel, name string) *Bridge {
	b := &Bridge{actions: c, tui: tui, name: name, self: c.PlayerID}
	b.setupEventHandlers(c)
	return b
}

// Start begins the command handling loop (non-blocking)
func (b *Bridge) Start() {
	go b.commandLoop()
}

// setupEventHandlers configures all client event handlers
func (b *Bridge) setupEventHandlers(c *client.Client) {
	c.AddEventHandler(server.MessageTypeRoomCreated, b.handleRoomCreated)
	c.AddEventHandler(server.MessageTypeJoined, b.handleJoined)
	c.AddEventHandler(server.MessageTypeRoomState, b.handleRoomState)
	c.AddEventHandler(server.MessageTypeRoomList, b.handleRoomList)
	c.AddEventHandler(server.MessageTypeLeft, b.handleLeft)
	c.AddEventHandler(server.MessageTypeScores, b.handleScores)
	c.AddEventHandler(server.MessageTypeError, b.handleError)
}

// commandLoop handles user actions from the TUI
func (b *Bridge) commandLoop() {
	for {
		action, args, shouldContinue, err := b.tui.WaitForAction()
		if err != nil {
			continue
		}
		if !shouldContinue || !b.handleCommand(action, args) {
			b.tui.SendQuitSignal()
			return
		}
	}
}

// handleCommand runs one typed command and reports whether to keep going.
func (b *Bridge) handleCommand(action string, args []string) bool {
	if action == "" {
		return true
	}
	action = strings.TrimPrefix(action, "/")

	view, me, seated := b.tui.Room()
	var err error

	switch action {
	case "quit", "exit":
		if seated {
			_ = b.actions.LeaveRoom()
		}
		return false

	case "help", "?":
		b.tui.AddLogEntries(helpLines()...)

	case "rooms", "list":
		err = b.actions.ListRooms()

	case "create":
		var name string
		var limit int
		name, limit, err = parseCreateArgs(args)
		if err == nil {
			err = b.actions.CreateRoom(name, limit)
		}

	case "join":
		if len(args) != 1 {
			err = fmt.Errorf("usage: join <room id>")
		} else if seated {
			err = fmt.Errorf("already in %s, leave first", view.Name)
		} else {
			err = b.actions.JoinRoom(args[0], b.name)
		}

	case "start", "leave", "state", "play", "pick":
		if !seated {
			err = fmt.Errorf("join a room first")
			break
		}
		err = b.roomCommand(action, args, view, me)

	default:
		err = fmt.Errorf("unknown command %q (try help)", action)
	}

	if err != nil {
		b.tui.AddLogEntry(ErrorStyle.Render(err.Error()))
	}
	return true
}

func (b *Bridge) roomCommand(action string, args []string, view game.View, me string) error {
	switch action {
	case "start":
		return b.actions.StartGame()
	case "leave":
		return b.actions.LeaveRoom()
	case "state":
		return b.actions.GetState("")
	case "play":
		ids, err := CardsForPlay(view, args)
		if err != nil {
			return err
		}
		return b.actions.SubmitCards(ids...)
	case "pick":
		winner, err := WinnerForPick(view, me, args)
		if err != nil {
			return err
		}
		return b.actions.PickWinner(winner)
	}
	return nil
}

func parseCreateArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, fmt.Errorf("usage: create <name> [score limit]")
	}
	limit := 0
	if n, err := strconv.Atoi(args[len(args)-1]); err == nil && len(args) > 1 {
		limit = n
		args = args[:len(args)-1]
	}
	return strings.Join(args, " "), limit, nil
}

// CardsForPlay maps 1-based hand positions to card ids.
func CardsForPlay(view game.View, args []string) ([]string, error) {
	if view.Phase != game.CollectingSubmissions {
		return nil, fmt.Errorf("not accepting cards right now")
	}
	if len(args) != view.Pick {
		return nil, fmt.Errorf("this prompt needs %d card(s): play <n...>", view.Pick)
	}

	ids := make([]string, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(view.Hand) {
			return nil, fmt.Errorf("no card %q in your hand (1-%d)", arg, len(view.Hand))
		}
		ids = append(ids, view.Hand[n-1].ID)
	}
	return ids, nil
}

// WinnerForPick maps a 1-based submission number to the player who made it.
func WinnerForPick(view game.View, me string, args []string) (string, error) {
	if view.Phase != game.Judging {
		return "", fmt.Errorf("nothing to judge yet")
	}
	if view.JudgeID != me {
		return "", fmt.Errorf("only the judge picks the winner")
	}
	if len(args) != 1 {
		return "", fmt.Errorf("usage: pick <n>")
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(view.Submissions) {
		return "", fmt.Errorf("no answer %q (1-%d)", args[0], len(view.Submissions))
	}
	return view.Submissions[n-1].PlayerID, nil
}

func helpLines() []string {
	return []string{
		"Commands:",
		"  rooms                   list open rooms",
		"  create <name> [limit]   open a room",
		"  join <room id>          join a room",
		"  start                   start the game (host)",
		"  play <n...>             play cards from your hand",
		"  pick <n>                choose the winning answer (judge)",
		"  state                   refresh the room",
		"  leave                   leave the room",
		"  quit                    leave and exit",
	}
}

// Event handlers

func (b *Bridge) handleRoomCreated(msg *server.Message) {
	var data server.RoomCreatedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	b.tui.AddLogEntries(
		SuccessStyle.Render("Room created: "+data.RoomID),
		"Type join "+data.RoomID+" to take a seat.",
	)
}

func (b *Bridge) handleJoined(msg *server.Message) {
	var data server.JoinedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}

	b.tui.SetRoomState(data.State, data.PlayerID)
	b.tui.AddLogEntries(
		SuccessStyle.Render(fmt.Sprintf("Joined %s (%s)", data.State.Name, data.RoomID)),
		fmt.Sprintf("%d player(s) here. First to %d points wins.", len(data.State.Players), data.State.Config.ScoreLimit),
	)
	b.tui.notifyEventCallback("joined")
}

func (b *Bridge) handleRoomState(msg *server.Message) {
	var view game.View
	if err := json.Unmarshal(msg.Data, &view); err != nil {
		return
	}

	current, me, seated := b.tui.Room()
	if seated && current.RoomID == view.RoomID && view.Version < current.Version {
		return
	}
	if me == "" {
		me = b.self()
	}

	prev := b.tui.SetRoomState(view, me)
	b.tui.AddLogEntries(DescribeTransition(prev, view, me)...)
}

func (b *Bridge) handleRoomList(msg *server.Message) {
	var data server.RoomListData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}

	if len(data.Rooms) == 0 {
		b.tui.AddLogEntry("No rooms open. create <name> to start one.")
		return
	}
	lines := []string{"Open rooms:"}
	for _, r := range data.Rooms {
		lines = append(lines, fmt.Sprintf("  %s  %s  %d/%d players, %s",
			r.ID, r.Name, r.Players, r.MaxPlayers, r.Phase))
	}
	b.tui.AddLogEntries(lines...)
}

func (b *Bridge) handleLeft(msg *server.Message) {
	b.tui.ClearRoom()
	b.tui.AddLogEntry("You left the room.")
}

func (b *Bridge) handleScores(msg *server.Message) {
	// room_state carries the round result; scores only confirm the pick.
	b.tui.notifyEventCallback("scores")
}

func (b *Bridge) handleError(msg *server.Message) {
	var data server.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	b.tui.AddLogEntry(ErrorStyle.Render(data.Message))
}

// DescribeTransition turns the difference between two views of a room into
// log lines. prev is nil for the first view.
func DescribeTransition(prev *game.View, next game.View, me string) []string {
	if prev == nil || prev.RoomID != next.RoomID {
		return nil
	}

	var lines []string
	name := func(id string) string {
		if id == me {
			return "You"
		}
		if p, ok := next.Player(id); ok {
			return p.Name
		}
		if p, ok := prev.Player(id); ok {
			return p.Name
		}
		return "someone"
	}

	for _, p := range next.Players {
		if _, ok := prev.Player(p.ID); !ok {
			lines = append(lines, InfoStyle.Render(p.Name+" joined"))
		}
	}
	for _, p := range prev.Players {
		if _, ok := next.Player(p.ID); !ok {
			lines = append(lines, InfoStyle.Render(p.Name+" left"))
		}
	}
	switch {
	case prev.HostID == next.HostID || next.HostID == "":
	case next.HostID == me:
		lines = append(lines, InfoStyle.Render("You are now the host"))
	default:
		lines = append(lines, InfoStyle.Render(name(next.HostID)+" is now the host"))
	}

	if next.LastRound != nil && (prev.LastRound == nil || prev.LastRound.Number != next.LastRound.Number) {
		lines = append(lines, SuccessStyle.Render(fmt.Sprintf("%s won round %d: %s",
			next.LastRound.WinnerName, next.LastRound.Number, next.LastRound.Text)))
	}

	switch {
	case next.Phase == game.GameOver && prev.Phase != game.GameOver:
		winner := winnerName(next)
		if p, ok := next.Player(next.WinnerID); ok {
			winner = fmt.Sprintf("%s with %d points", p.Name, p.Score)
		}
		lines = append(lines, SuccessStyle.Render("Game over! "+winner))

	case next.Phase == game.Lobby && prev.Phase.InProgress():
		lines = append(lines, WarningStyle.Render("Not enough players, back to the lobby"))

	case next.Phase == game.CollectingSubmissions && (prev.Round != next.Round || prev.Phase != game.CollectingSubmissions):
		lines = append(lines, "", HeaderStyle.Render(fmt.Sprintf(" Round %d ", next.Round)))
		if next.Prompt != nil {
			lines = append(lines, PromptCardStyle.Render(next.Prompt.Text))
		}
		if next.JudgeID == me {
			lines = append(lines, JudgeStyle.Render("You are the judge this round"))
		} else {
			lines = append(lines, name(next.JudgeID)+" is judging. Play "+strconv.Itoa(next.Pick)+" card(s).")
		}

	case next.Phase == game.Judging && prev.Phase != game.Judging:
		lines = append(lines, "All answers are in:")
		for i, s := range next.Submissions {
			lines = append(lines, fmt.Sprintf("%2d. %s", i+1, s.Text))
		}
		if next.JudgeID == me {
			lines = append(lines, JudgeStyle.Render("Pick the winner: pick <n>"))
		}
	}

	return lines
}
