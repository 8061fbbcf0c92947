package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/blankcards/internal/deck"
	"github.com/lox/blankcards/internal/game"
)

// TUIModel represents the Bubble Tea model for a blankcards room
type TUIModel struct {
	logger  *log.Logger
	program *tea.Program

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// mu guards everything below; network handlers write from the client's
	// goroutine while Bubble Tea renders from its own.
	mu           sync.Mutex
	gameLog      []string
	actionResult chan ActionResult
	quitSignal   chan bool
	quitting     bool
	focusedPane  int // 0 = log, 1 = input

	// Room state (event-driven, replaced wholesale on every room_state)
	room     *game.View
	playerID string

	// Dimensions
	width       int
	height      int
	initialized bool // Track if viewport has been properly sized

	// Test mode
	testMode      bool
	capturedLog   []string               // For test assertions
	eventCallback func(eventType string) // Callback for test event synchronization
}

// ActionResult represents the result of a user action
type ActionResult struct {
	Action   string
	Args     []string
	Continue bool
	Error    error
}

// QuitMsg is a custom message to signal quit
type QuitMsg struct{}

// refreshMsg asks Bubble Tea to re-render after a network update.
type refreshMsg struct{}

// NewTUIModel creates a new TUI model
func NewTUIModel(logger *log.Logger) *TUIModel {
	return NewTUIModelWithOptions(logger, false)
}

// NewTUIModelWithOptions creates a new TUI model with test mode option
func NewTUIModelWithOptions(logger *log.Logger, testMode bool) *TUIModel {
	// Will be properly sized when WindowSizeMsg arrives
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "Type a command (help for a list)"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &TUIModel{
		logger:       logger.WithPrefix("tui"),
		logViewport:  vp,
		actionInput:  ti,
		gameLog:      []string{},
		actionResult: make(chan ActionResult, 16),
		quitSignal:   make(chan bool, 1),
		focusedPane:  1, // Start with input focused
		testMode:     testMode,
		capturedLog:  []string{},
	}
}

// SetProgram lets network updates trigger a redraw.
func (m *TUIModel) SetProgram(p *tea.Program) {
	m.program = p
}

func (m *TUIModel) refresh() {
	if m.program != nil && !m.testMode {
		go m.program.Send(refreshMsg{})
	}
}

// Init initializes the TUI model
func (m *TUIModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenForQuit())
}

// listenForQuit returns a command that listens for quit signals
func (m *TUIModel) listenForQuit() tea.Cmd {
	return func() tea.Msg {
		<-m.quitSignal
		return QuitMsg{}
	}
}

// Update handles messages in the TUI
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.pushAction(ActionResult{Action: "quit", Continue: false})
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			// Switch focus between log and input
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				m.processAction(strings.TrimSpace(m.actionInput.Value()))
				m.actionInput.SetValue("")
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd

	// Only update input if it's focused
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Always update viewport (for scrolling)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the TUI
func (m *TUIModel) View() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quitting {
		return ""
	}

	// Don't render until we have valid dimensions
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	// Action pane (bottom, full width)
	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.borderColor(1)).
		Width(atLeastOne(m.width - 2)).
		Height(atLeastOne(actionHeight)).
		Render(actionContent)

	// Sidebar pane (right side of log pane, same height as log pane)
	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	paneHeight := atLeastOne(m.height - actionHeight - 4)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	// Log pane (top, fills height minus action pane)
	m.logViewport.SetContent(m.renderLogPane())
	m.logViewport.Width = atLeastOne(m.width - sidebarWidth - 4)
	m.logViewport.Height = paneHeight

	// On first proper sizing, reset to top to avoid starting scrolled down
	if !m.initialized && m.logViewport.Width > 1 && m.logViewport.Height > 1 {
		m.logViewport.GotoTop()
		m.initialized = true
	}

	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.borderColor(0)).
		Width(m.logViewport.Width).
		Height(m.logViewport.Height).
		Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

func (m *TUIModel) borderColor(pane int) lipgloss.Color {
	if m.focusedPane == pane {
		return lipgloss.Color("#04B575")
	}
	return lipgloss.Color("#626262")
}

func atLeastOne(n int) int {
	return max(n, 1)
}

// renderLogPane renders the game log pane content
func (m *TUIModel) renderLogPane() string {
	return strings.Join(m.gameLog, "\n")
}

// renderSidebarPane lists the room, its players and their scores
func (m *TUIModel) renderSidebarPane() string {
	if m.room == nil {
		return InfoStyle.Render("Not in a room.\n\nrooms, create <name>,\njoin <room id>")
	}

	var content strings.Builder
	v := m.room

	content.WriteString(HeaderStyle.Render(" " + v.Name + " "))
	content.WriteString("\n")
	content.WriteString(InfoStyle.Render(v.RoomID))
	content.WriteString("\n\n")

	status := v.Phase.String()
	if v.Phase.InProgress() {
		status = fmt.Sprintf("Round %d • %s", v.Round, status)
	}
	content.WriteString(WarningStyle.Render(status))
	content.WriteString("\n")
	content.WriteString(InfoStyle.Render(fmt.Sprintf("First to %d points", v.Config.ScoreLimit)))
	content.WriteString("\n\n")

	content.WriteString(InfoStyle.Render(fmt.Sprintf("Players (%d/%d):", len(v.Players), v.Config.MaxPlayers)))
	content.WriteString("\n")
	for _, p := range v.Players {
		content.WriteString(formatPlayerLine(p, m.playerID))
		content.WriteString("\n")
	}

	return content.String()
}

// formatPlayerLine renders one sidebar row: markers, name and score.
func formatPlayerLine(p game.PlayerView, me string) string {
	marker := "  "
	switch {
	case p.Judge:
		marker = "J "
	case p.Submitted:
		marker = "✓ "
	case p.Required:
		marker = "… "
	}

	name := p.Name
	if p.Host {
		name += " (host)"
	}
	if p.ID == me {
		name += " (you)"
	}

	line := fmt.Sprintf("%s%-22s %2d", marker, name, p.Score)
	if p.Judge {
		return JudgeStyle.Render(line)
	}
	return PlayerInfoStyle.Render(line)
}

// renderActionPane renders the prompt, the player's hand and the input
func (m *TUIModel) renderActionPane() string {
	var content strings.Builder
	v := m.room

	switch {
	case v == nil:
		content.WriteString(HandInfoStyle.Render("Waiting to join a room..."))
	case v.Phase == game.Lobby:
		waiting := "Waiting for the host to start"
		if v.HostID == m.playerID {
			waiting = "You are the host: type start when everyone is here"
		}
		content.WriteString(HandInfoStyle.Render(waiting))
	case v.Phase == game.GameOver:
		content.WriteString(SuccessStyle.Render("Game over: " + winnerName(*v) + " wins"))
	default:
		if v.Prompt != nil {
			content.WriteString(PromptCardStyle.Render(v.Prompt.Text))
			content.WriteString("\n")
		}
		content.WriteString(m.renderTurn(*v))
	}
	content.WriteString("\n")

	m.actionInput.Placeholder = m.placeholder()
	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	if m.focusedPane == 0 {
		content.WriteString(InfoStyle.Render("Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input"))
	} else {
		content.WriteString(InfoStyle.Render("Tab to scroll log • Enter to submit • Ctrl+C to quit"))
	}

	return content.String()
}

// renderTurn shows what the player can do this phase.
func (m *TUIModel) renderTurn(v game.View) string {
	var b strings.Builder
	judging := v.JudgeID == m.playerID

	switch v.Phase {
	case game.CollectingSubmissions:
		switch {
		case judging:
			b.WriteString(ActionsStyle.Render("You are judging. Waiting for answers..."))
		case len(v.Submitted) > 0:
			b.WriteString(SuccessStyle.Render("Submitted: " + joinCardText(v.Submitted)))
			b.WriteString(InfoStyle.Render("  (play again to change)"))
		default:
			b.WriteString(ActionsStyle.Render(fmt.Sprintf("Play %d card(s): play <n...>", v.Pick)))
		}
		b.WriteString("\n")
		b.WriteString(formatHand(v.Hand))

	case game.Judging:
		if judging {
			b.WriteString(ActionsStyle.Render("Pick the winner: pick <n>"))
		} else {
			b.WriteString(HandInfoStyle.Render("The judge is choosing..."))
		}
		b.WriteString("\n")
		for i, s := range v.Submissions {
			b.WriteString(fmt.Sprintf("%2d. %s\n", i+1, s.Text))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m *TUIModel) placeholder() string {
	v := m.room
	switch {
	case v == nil:
		return "rooms, create <name> [limit], join <room id>, quit"
	case v.Phase == game.CollectingSubmissions && v.JudgeID != m.playerID:
		return "play <n...>"
	case v.Phase == game.Judging && v.JudgeID == m.playerID:
		return "pick <n>"
	case v.Phase == game.Lobby && v.HostID == m.playerID:
		return "start"
	default:
		return "Type a command (help for a list)"
	}
}

// formatHand lists response cards numbered from 1.
func formatHand(hand []deck.Card) string {
	var lines []string
	for i, c := range hand {
		lines = append(lines, fmt.Sprintf("%2d. %s", i+1, ResponseCardStyle.Render(c.Text)))
	}
	return strings.Join(lines, "\n")
}

func joinCardText(cards []deck.Card) string {
	texts := make([]string, len(cards))
	for i, c := range cards {
		texts[i] = c.Text
	}
	return strings.Join(texts, " / ")
}

// AddLogEntry adds an entry to the game log
func (m *TUIModel) AddLogEntry(entry string) {
	m.mu.Lock()
	m.addLogEntry(entry)
	m.mu.Unlock()
	m.refresh()
}

func (m *TUIModel) addLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)

	// In test mode, also capture the log entry
	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
		return
	}

	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// AddLogEntries adds several entries at once
func (m *TUIModel) AddLogEntries(entries ...string) {
	if len(entries) == 0 {
		return
	}
	m.mu.Lock()
	for _, e := range entries {
		m.addLogEntry(e)
	}
	m.mu.Unlock()
	m.refresh()
}

// ClearLog clears the game log
func (m *TUIModel) ClearLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameLog = []string{}
	m.logViewport.SetContent("")
}

// SetRoomState replaces the room shown in the sidebar and action pane and
// returns the previous one, nil if there was none.
func (m *TUIModel) SetRoomState(view game.View, playerID string) *game.View {
	m.mu.Lock()
	prev := m.room
	m.room = &view
	m.playerID = playerID
	m.mu.Unlock()

	m.refresh()
	m.notifyEventCallback("room_state")
	return prev
}

// ClearRoom forgets the current room.
func (m *TUIModel) ClearRoom() {
	m.mu.Lock()
	m.room = nil
	m.playerID = ""
	m.mu.Unlock()
	m.refresh()
}

// Room returns a copy of the current room view, if any.
func (m *TUIModel) Room() (game.View, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room == nil {
		return game.View{}, "", false
	}
	return *m.room, m.playerID, true
}

// processAction splits input into a command and its arguments
func (m *TUIModel) processAction(input string) {
	parts := strings.Fields(input)

	var action string
	var args []string
	if len(parts) > 0 {
		action = strings.ToLower(parts[0])
		args = parts[1:]
	}

	m.pushAction(ActionResult{
		Action:   action,
		Args:     args,
		Continue: true, // Let the command handler decide whether to continue
	})
}

func (m *TUIModel) pushAction(result ActionResult) {
	select {
	case m.actionResult <- result:
	default:
		m.logger.Warn("Dropping input, command handler is busy", "action", result.Action)
	}
}

// WaitForAction waits for user input (for use by the command loop)
func (m *TUIModel) WaitForAction() (string, []string, bool, error) {
	result := <-m.actionResult
	return result.Action, result.Args, result.Continue, result.Error
}

// SendQuitSignal signals the TUI to quit gracefully
func (m *TUIModel) SendQuitSignal() {
	select {
	case m.quitSignal <- true:
	default:
		// Channel is full, quit signal already sent
	}
}

// GetCapturedLog returns the captured log entries (test mode only)
func (m *TUIModel) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.capturedLog))
	copy(result, m.capturedLog)
	return result
}

// InjectAction programmatically injects an action (test mode only)
func (m *TUIModel) InjectAction(action string, args []string) error {
	if !m.testMode {
		return fmt.Errorf("action injection only available in test mode")
	}

	select {
	case m.actionResult <- ActionResult{
		Action:   action,
		Args:     args,
		Continue: true,
	}:
		return nil
	default:
		return fmt.Errorf("action channel full")
	}
}

// IsTestMode returns whether the TUI is in test mode
func (m *TUIModel) IsTestMode() bool {
	return m.testMode
}

// SetEventCallback sets a callback function for test event synchronization
func (m *TUIModel) SetEventCallback(callback func(eventType string)) {
	if m.testMode {
		m.eventCallback = callback
	}
}

// notifyEventCallback calls the event callback if in test mode
func (m *TUIModel) notifyEventCallback(eventType string) {
	if m.testMode && m.eventCallback != nil {
		m.eventCallback(eventType)
	}
}

func winnerName(v game.View) string {
	if p, ok := v.Player(v.WinnerID); ok {
		return p.Name
	}
	return "nobody"
}
