package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lox/blankcards/internal/auth"
	"github.com/lox/blankcards/internal/engine"
	"github.com/lox/blankcards/internal/game"
)

// Server serves the REST API and the WebSocket endpoint, and pushes room
// state to connected players as the dispatcher commits changes.
type Server struct {
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	clock       quartz.Clock
	issuer      *auth.Issuer
	dispatcher  *engine.Dispatcher
	router      *gin.Engine
	httpServer  *http.Server
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	runDone     chan struct{}
}

// NewServer creates a server and starts its connection loop. Call
// SetDispatcher before serving requests.
func NewServer(issuer *auth.Issuer, logger *log.Logger, clock quartz.Clock) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		upgrader: websocket.Upgrader{
			// Browser clients are served from anywhere; tokens do the gating.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		clock:       clock,
		issuer:      issuer,
		ctx:         ctx,
		cancel:      cancel,
		runDone:     make(chan struct{}),
	}
	s.router = s.routes()

	go s.run()
	return s
}

// SetDispatcher sets the dispatcher requests are applied through. The
// dispatcher is built with the server as its notifier, hence the setter.
func (s *Server) SetDispatcher(d *engine.Dispatcher) {
	s.dispatcher = d
}

// Handler returns the HTTP handler for the API and WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every connection and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	select {
	case <-s.runDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
		delete(s.connections, conn)
	}
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// run handles connection lifecycle
func (s *Server) run() {
	defer close(s.runDone)

	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Debug("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			delete(s.connections, conn)
			total := len(s.connections)
			s.mu.Unlock()
			if !ok {
				continue
			}

			// Leaving notifies, and the notifier takes s.mu.
			if roomID, playerID := conn.Seat(); roomID != "" && s.dispatcher != nil {
				s.logger.Info("Cleaning up disconnected player", "player", playerID, "room", roomID)
				if err := s.dispatcher.LeaveRoom(roomID, playerID); err != nil && game.KindOf(err) != game.KindNotFound {
					s.logger.Warn("Failed to remove disconnected player", "player", playerID, "room", roomID, "error", err)
				}
			}
			_ = conn.Close()
			s.logger.Debug("Client disconnected", "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// RoomUpdated pushes the committed room to every connection seated in it,
// each seeing its own hand.
func (s *Server) RoomUpdated(room *game.Room) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if conn.pushState(room) {
			count++
		}
	}
	if count > 0 {
		s.logger.Debug("Pushed room state", "room", room.ID(), "version", room.Version(), "recipients", count)
	}
}

// RoomClosed detaches any connection still pointing at a destroyed room.
func (s *Server) RoomClosed(roomID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for conn := range s.connections {
		if id, _ := conn.Seat(); id == roomID {
			conn.clearSeat()
		}
	}
	s.logger.Debug("Room closed", "room", roomID)
}

// ConnectionCount returns the number of open WebSocket connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) now() time.Time {
	return s.clock.Now()
}
