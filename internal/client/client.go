package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/blankcards/internal/server" // Reuse message types
)

// Client is a WebSocket client for a blankcards server
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *server.Message
	receive   chan *server.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
	closeOnce sync.Once
	requests  atomic.Uint64

	// Session established by the last joined message
	roomID   string
	playerID string
	token    string

	// Event handlers
	eventHandlers map[server.MessageType][]EventHandler
	waiters       map[server.MessageType][]chan *server.Message
}

// EventHandler is a function that handles incoming events
type EventHandler func(*server.Message)

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		serverURL:     serverURL,
		send:          make(chan *server.Message, 256),
		receive:       make(chan *server.Message, 256),
		logger:        logger.WithPrefix("client"),
		ctx:           ctx,
		cancel:        cancel,
		eventHandlers: make(map[server.MessageType][]EventHandler),
		waiters:       make(map[server.MessageType][]chan *server.Message),
	}
	c.AddEventHandler(server.MessageTypeJoined, c.trackJoined)
	c.AddEventHandler(server.MessageTypeLeft, c.trackLeft)
	return c
}

// WebSocketURL converts a server URL into its /ws endpoint.
func WebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to server", "url", c.serverURL)

	wsURL, err := WebSocketURL(c.serverURL)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	_ = resp.Body.Close()

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	go c.eventProcessor()

	c.logger.Info("Connected to server")
	return nil
}

// Disconnect closes the WebSocket connection
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.cancel()
		if c.conn != nil {
			_ = c.conn.Close()
			c.connected = false
		}
		close(c.send)

		c.logger.Info("Disconnected from server")
	})
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendMessage queues a message for the server
func (c *Client) SendMessage(msg *server.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.cancel()
	}()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type, "request", msg.RequestID)

		select {
		case c.receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second) // Ping interval
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// eventProcessor dispatches incoming messages in arrival order
func (c *Client) eventProcessor() {
	for {
		select {
		case msg := <-c.receive:
			c.handleMessage(msg)
		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches messages to registered handlers and waiters
func (c *Client) handleMessage(msg *server.Message) {
	c.mu.Lock()
	handlers := append([]EventHandler(nil), c.eventHandlers[msg.Type]...)
	waiters := c.waiters[msg.Type]
	delete(c.waiters, msg.Type)
	c.mu.Unlock()

	for _, w := range waiters {
		w <- msg
	}

	if len(handlers) == 0 && len(waiters) == 0 {
		c.logger.Debug("No handler for message type", "type", msg.Type)
	}
	for _, handler := range handlers {
		handler(msg)
	}
}

// AddEventHandler adds an event handler for a specific message type.
// Handlers run one at a time, in the order messages arrive.
func (c *Client) AddEventHandler(messageType server.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eventHandlers[messageType] = append(c.eventHandlers[messageType], handler)
}

// WaitForMessage waits for the next message of a type. Register with
// Expect before sending when the reply could race the call.
func (c *Client) WaitForMessage(messageType server.MessageType, timeout time.Duration) (*server.Message, error) {
	return c.Expect(messageType)(timeout)
}

// Expect registers interest in the next message of any of the given types
// and returns a function that waits for it.
func (c *Client) Expect(types ...server.MessageType) func(timeout time.Duration) (*server.Message, error) {
	ch := make(chan *server.Message, len(types))

	c.mu.Lock()
	for _, t := range types {
		c.waiters[t] = append(c.waiters[t], ch)
	}
	c.mu.Unlock()

	return func(timeout time.Duration) (*server.Message, error) {
		defer c.removeWaiter(ch, types...)

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case msg := <-ch:
			return msg, nil
		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for %v", types)
		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		}
	}
}

func (c *Client) removeWaiter(ch chan *server.Message, types ...server.MessageType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range types {
		waiters := c.waiters[t]
		for i, w := range waiters {
			if w == ch {
				c.waiters[t] = append(waiters[:i:i], waiters[i+1:]...)
				break
			}
		}
	}
}

// request sends a message and returns its request id.
func (c *Client) request(messageType server.MessageType, data any) (string, error) {
	msg, err := server.NewMessage(messageType, data, time.Now())
	if err != nil {
		return "", err
	}
	msg.RequestID = "req-" + strconv.FormatUint(c.requests.Add(1), 10)
	return msg.RequestID, c.SendMessage(msg)
}

// CreateRoom asks the server for a new room. A zero score limit uses the
// server default.
func (c *Client) CreateRoom(name string, scoreLimit int) error {
	data := server.CreateRoomData{Name: name}
	if scoreLimit != 0 {
		data.ScoreLimit = &scoreLimit
	}
	_, err := c.request(server.MessageTypeCreateRoom, data)
	return err
}

// JoinRoom joins a room under a display name
func (c *Client) JoinRoom(roomID, name string) error {
	_, err := c.request(server.MessageTypeJoinRoom, server.JoinRoomData{
		RoomID: roomID,
		Name:   name,
	})
	return err
}

// LeaveRoom leaves the current room
func (c *Client) LeaveRoom() error {
	_, err := c.request(server.MessageTypeLeaveRoom, struct{}{})
	return err
}

// StartGame starts the game in the current room (host only)
func (c *Client) StartGame() error {
	_, err := c.request(server.MessageTypeStartGame, struct{}{})
	return err
}

// SubmitCards plays response cards for the current prompt
func (c *Client) SubmitCards(cardIDs ...string) error {
	_, err := c.request(server.MessageTypeSubmitCards, server.SubmitCardsData{CardIDs: cardIDs})
	return err
}

// PickWinner awards the round to a player (judge only)
func (c *Client) PickWinner(playerID string) error {
	_, err := c.request(server.MessageTypePickWinner, server.PickWinnerData{PlayerID: playerID})
	return err
}

// GetState requests the current room state. An empty roomID means the
// room this client sits in.
func (c *Client) GetState(roomID string) error {
	_, err := c.request(server.MessageTypeGetState, server.JoinRoomData{RoomID: roomID})
	return err
}

// ListRooms requests a list of open rooms
func (c *Client) ListRooms() error {
	_, err := c.request(server.MessageTypeListRooms, struct{}{})
	return err
}

func (c *Client) trackJoined(msg *server.Message) {
	var data server.JoinedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.logger.Warn("Malformed joined message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = data.RoomID
	c.playerID = data.PlayerID
	c.token = data.Token
}

func (c *Client) trackLeft(*server.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.playerID, c.token = "", "", ""
}

// Session returns the room and player this client is seated as, and the
// token the server issued for it.
func (c *Client) Session() (roomID, playerID, token string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.playerID, c.token
}

// PlayerID returns the player id of the current seat, if any
func (c *Client) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}
