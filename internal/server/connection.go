package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lox/blankcards/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Sustained client messages per second, and the burst above it.
	messageRate  = 5
	messageBurst = 10
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	limiter   *rate.Limiter
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	closeOnce sync.Once

	roomID   string
	playerID string
	// version of the last room_state sent; older snapshots are dropped.
	version uint64
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server) *Connection {
	ctx, cancel := context.WithCancel(server.ctx)

	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		server:  server,
		limiter: rate.NewLimiter(messageRate, messageBurst),
		logger:  server.logger.WithPrefix("conn"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.cancel()
		close(c.send)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. A client that falls a full
// buffer behind is disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueue(msg)
}

// enqueue must be called with c.mu held.
func (c *Connection) enqueue(msg *Message) error {
	if c.ctx.Err() != nil {
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection", "player", c.playerID)
		go func() { _ = c.Close() }()
		return ErrConnectionClosed
	}
}

// Seat returns the room and player this connection plays as, if any.
func (c *Connection) Seat() (roomID, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.playerID
}

func (c *Connection) clearSeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = ""
	c.playerID = ""
	c.version = 0
}

// takeSeat seats the connection unless it has already closed. Close cancels
// under c.mu, so either the unregister loop sees the seat or the caller is
// told to give it up.
func (c *Connection) takeSeat(roomID, playerID string, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return false
	}
	c.roomID = roomID
	c.playerID = playerID
	c.version = version
	return true
}

// pushState sends the player's view of room unless the connection is not
// seated there or has already seen a newer version.
func (c *Connection) pushState(room *game.Room) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roomID != room.ID() || room.Version() <= c.version {
		return false
	}

	msg, err := NewMessage(MessageTypeRoomState, room.View(c.playerID), c.server.now())
	if err != nil {
		c.logger.Error("Failed to encode room state", "room", room.ID(), "error", err)
		return false
	}
	if err := c.enqueue(msg); err != nil {
		return false
	}
	c.version = room.Version()
	return true
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := c.server.clock.NewTicker(pingPeriod, "conn", "ping")
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	roomID, playerID := c.Seat()
	c.logger.Debug("Received message", "type", msg.Type, "player", playerID)

	if !c.limiter.Allow() {
		c.sendError(msg.RequestID, ErrorData{Code: codeRateLimited, Message: "too many messages"})
		return
	}

	switch msg.Type {
	case MessageTypeCreateRoom:
		var data CreateRoomData
		if !c.decode(msg, &data) {
			return
		}
		c.handleCreateRoom(msg.RequestID, data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if !c.decode(msg, &data) {
			return
		}
		c.handleJoinRoom(msg.RequestID, data)

	case MessageTypeListRooms:
		c.reply(msg.RequestID, MessageTypeRoomList, RoomListData{Rooms: c.server.dispatcher.ListRooms()})

	case MessageTypeGetState:
		var data JoinRoomData
		if len(msg.Data) > 0 && !c.decode(msg, &data) {
			return
		}
		if data.RoomID == "" {
			data.RoomID = roomID
		}
		c.handleGetState(msg.RequestID, data.RoomID, playerID)

	case MessageTypeLeaveRoom:
		if !c.seated(msg.RequestID, roomID) {
			return
		}
		if err := c.server.dispatcher.LeaveRoom(roomID, playerID); err != nil && game.KindOf(err) != game.KindNotFound {
			c.sendGameError(msg.RequestID, err)
			return
		}
		c.clearSeat()
		c.reply(msg.RequestID, MessageTypeLeft, LeftData{RoomID: roomID})

	case MessageTypeStartGame:
		if !c.seated(msg.RequestID, roomID) {
			return
		}
		if err := c.server.dispatcher.StartGame(roomID, playerID); err != nil {
			c.sendGameError(msg.RequestID, err)
		}

	case MessageTypeSubmitCards:
		var data SubmitCardsData
		if !c.seated(msg.RequestID, roomID) || !c.decode(msg, &data) {
			return
		}
		if err := c.server.dispatcher.SubmitCards(roomID, playerID, data.CardIDs...); err != nil {
			c.sendGameError(msg.RequestID, err)
		}

	case MessageTypePickWinner:
		var data PickWinnerData
		if !c.seated(msg.RequestID, roomID) || !c.decode(msg, &data) {
			return
		}
		scores, err := c.server.dispatcher.PickWinner(roomID, playerID, data.PlayerID)
		if err != nil {
			c.sendGameError(msg.RequestID, err)
			return
		}
		c.reply(msg.RequestID, MessageTypeScores, WinnerData{Scores: scores})

	default:
		c.sendError(msg.RequestID, ErrorData{Code: codeUnknownMessage, Message: "Unknown message type: " + msg.Type.String()})
	}
}

func (c *Connection) handleCreateRoom(requestID string, data CreateRoomData) {
	id, err := c.server.dispatcher.CreateRoom(data.Name, data.RoomOptions()...)
	if err != nil {
		c.sendGameError(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeRoomCreated, RoomCreatedData{RoomID: id})
}

func (c *Connection) handleJoinRoom(requestID string, data JoinRoomData) {
	if roomID, _ := c.Seat(); roomID != "" {
		c.sendError(requestID, ErrorData{Code: codeAlreadyInRoom, Message: "already seated in room " + roomID})
		return
	}

	playerID, view, err := c.server.dispatcher.JoinRoom(data.RoomID, data.Name)
	if err != nil {
		c.sendGameError(requestID, err)
		return
	}

	token, err := c.server.issuer.Issue(data.RoomID, playerID)
	if err != nil {
		c.logger.Error("Failed to issue token", "room", data.RoomID, "player", playerID, "error", err)
		_ = c.server.dispatcher.LeaveRoom(data.RoomID, playerID)
		c.sendGameError(requestID, err)
		return
	}

	if !c.takeSeat(data.RoomID, playerID, view.Version) {
		c.logger.Info("Connection closed while joining, removing player", "room", data.RoomID, "player", playerID)
		if err := c.server.dispatcher.LeaveRoom(data.RoomID, playerID); err != nil && game.KindOf(err) != game.KindNotFound {
			c.logger.Warn("Failed to remove player", "room", data.RoomID, "player", playerID, "error", err)
		}
		return
	}
	c.logger.Info("Player seated", "room", data.RoomID, "player", playerID, "name", data.Name)
	c.reply(requestID, MessageTypeJoined, JoinedData{
		RoomID:   data.RoomID,
		PlayerID: playerID,
		Token:    token,
		State:    view,
	})

	// Commits between the join and setSeat were not pushed to us.
	if room, ok := c.server.dispatcher.Registry().Room(data.RoomID); ok {
		c.pushState(room)
	}
}

func (c *Connection) handleGetState(requestID, roomID, playerID string) {
	if roomID == "" {
		c.sendError(requestID, ErrorData{Code: codeNotInRoom, Message: "no room given"})
		return
	}
	seatRoom, _ := c.Seat()
	if seatRoom != roomID {
		playerID = ""
	}

	view, err := c.server.dispatcher.RoomState(roomID, playerID)
	if err != nil {
		c.sendGameError(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeRoomState, view)
}

func (c *Connection) seated(requestID, roomID string) bool {
	if roomID == "" {
		c.sendError(requestID, ErrorData{Code: codeNotInRoom, Message: "join a room first"})
		return false
	}
	return true
}

func (c *Connection) decode(msg *Message, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.sendError(msg.RequestID, ErrorData{Code: codeInvalidMessage, Message: "Failed to parse " + msg.Type.String() + " data"})
		return false
	}
	return true
}

func (c *Connection) reply(requestID string, t MessageType, data any) {
	msg, err := NewMessage(t, data, c.server.now())
	if err != nil {
		c.logger.Error("Failed to create message", "type", t, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

func (c *Connection) sendGameError(requestID string, err error) {
	c.logger.Debug("Request failed", "error", err)
	c.sendError(requestID, errorData(err))
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID string, data ErrorData) {
	c.reply(requestID, MessageTypeError, data)
}
