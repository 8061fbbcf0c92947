package tui

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blankcards/internal/game"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func TestTUITestMode(t *testing.T) {
	logger := quietLogger()

	t.Run("test mode captures log entries", func(t *testing.T) {
		tui := NewTUIModelWithOptions(logger, true)

		assert.True(t, tui.IsTestMode())
		assert.Empty(t, tui.GetCapturedLog())

		tui.AddLogEntry("Bob joined")
		tui.AddLogEntries("Round 1", "Alice is judging")

		assert.Equal(t, []string{"Bob joined", "Round 1", "Alice is judging"}, tui.GetCapturedLog())
	})

	t.Run("production mode does not capture logs", func(t *testing.T) {
		tui := NewTUIModel(logger)

		assert.False(t, tui.IsTestMode())
		tui.AddLogEntry("Some log entry")
		assert.Nil(t, tui.GetCapturedLog())
	})

	t.Run("action injection works in test mode", func(t *testing.T) {
		tui := NewTUIModelWithOptions(logger, true)

		require.NoError(t, tui.InjectAction("play", []string{"1", "3"}))

		action, args, cont, err := tui.WaitForAction()
		require.NoError(t, err)
		assert.Equal(t, "play", action)
		assert.Equal(t, []string{"1", "3"}, args)
		assert.True(t, cont)
	})

	t.Run("action injection fails in production mode", func(t *testing.T) {
		tui := NewTUIModel(logger)

		err := tui.InjectAction("start", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "test mode")
	})

	t.Run("typed input is split into command and args", func(t *testing.T) {
		tui := NewTUIModelWithOptions(logger, true)

		tui.processAction("PICK 2")

		action, args, cont, err := tui.WaitForAction()
		require.NoError(t, err)
		assert.Equal(t, "pick", action)
		assert.Equal(t, []string{"2"}, args)
		assert.True(t, cont)
	})
}

func TestRoomState(t *testing.T) {
	tui := NewTUIModelWithOptions(quietLogger(), true)

	var events []string
	tui.SetEventCallback(func(e string) { events = append(events, e) })

	_, _, ok := tui.Room()
	assert.False(t, ok)

	first := game.View{RoomID: "room-1", Name: "Main", Version: 1}
	assert.Nil(t, tui.SetRoomState(first, "alice"))

	second := first
	second.Version = 2
	prev := tui.SetRoomState(second, "alice")
	require.NotNil(t, prev)
	assert.Equal(t, uint64(1), prev.Version)

	v, me, ok := tui.Room()
	require.True(t, ok)
	assert.Equal(t, "alice", me)
	assert.Equal(t, uint64(2), v.Version)
	assert.Equal(t, []string{"room_state", "room_state"}, events)

	tui.ClearRoom()
	_, _, ok = tui.Room()
	assert.False(t, ok)
}

func TestFormatPlayerLine(t *testing.T) {
	tests := []struct {
		name   string
		player game.PlayerView
		me     string
		want   []string
	}{
		{"judge", game.PlayerView{ID: "a", Name: "Alice", Judge: true, Host: true}, "b", []string{"J ", "Alice (host)"}},
		{"submitted", game.PlayerView{ID: "b", Name: "Bob", Submitted: true, Score: 2}, "b", []string{"✓ ", "Bob (you)", " 2"}},
		{"waiting", game.PlayerView{ID: "c", Name: "Cat", Required: true}, "b", []string{"… ", "Cat"}},
		{"lobby", game.PlayerView{ID: "d", Name: "Dan"}, "b", []string{"  Dan"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := formatPlayerLine(tt.player, tt.me)
			for _, want := range tt.want {
				assert.Contains(t, line, want)
			}
		})
	}
}

func TestWinnerName(t *testing.T) {
	v := game.View{
		Players:  []game.PlayerView{{ID: "a", Name: "Alice"}},
		WinnerID: "a",
	}
	assert.Equal(t, "Alice", winnerName(v))

	v.WinnerID = ""
	assert.Equal(t, "nobody", winnerName(v))
}
