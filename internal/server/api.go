package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lox/blankcards/internal/auth"
	"github.com/lox/blankcards/internal/engine"
)

const identityKey = "identity"

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/stats", s.handleStats)
	r.GET("/ws", func(c *gin.Context) {
		s.handleWebSocket(c.Writer, c.Request)
	})

	rooms := r.Group("/rooms")
	rooms.GET("", s.listRooms)
	rooms.POST("", s.createRoom)
	rooms.GET("/:id", s.roomState)
	rooms.POST("/:id/players", s.joinRoom)

	seated := rooms.Group("/:id", s.requireSeat)
	seated.DELETE("/players/me", s.leaveRoom)
	seated.POST("/start", s.startGame)
	seated.POST("/submissions", s.submitCards)
	seated.POST("/winner", s.pickWinner)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// bearer returns the token from an Authorization header, if any.
func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSeat admits requests carrying a token for the room in the path.
func (s *Server) requireSeat(c *gin.Context) {
	token := bearer(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorData{Code: codeInvalidToken, Message: "missing bearer token"})
		return
	}

	identity, err := s.issuer.Validate(c.Request.Context(), token)
	if err != nil {
		s.abort(c, err)
		return
	}
	if identity.RoomID != c.Param("id") {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorData{Code: codeTokenRoomMismatch, Message: "token is for another room"})
		return
	}

	c.Set(identityKey, identity)
	c.Next()
}

func seat(c *gin.Context) *auth.Identity {
	return c.MustGet(identityKey).(*auth.Identity)
}

func (s *Server) abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), errorData(err))
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorData{Code: codeInvalidMessage, Message: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	engine.Stats
	Connections int `json:"connections"`
}

// Stats returns the dispatcher counters and the open connection count.
func (s *Server) Stats() StatsResponse {
	return StatsResponse{
		Stats:       s.dispatcher.Stats(),
		Connections: s.ConnectionCount(),
	}
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Stats())
}

func (s *Server) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, RoomListData{Rooms: s.dispatcher.ListRooms()})
}

func (s *Server) createRoom(c *gin.Context) {
	var data CreateRoomData
	if !s.bind(c, &data) {
		return
	}

	id, err := s.dispatcher.CreateRoom(data.Name, data.RoomOptions()...)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, RoomCreatedData{RoomID: id})
}

// roomState shows a player's view when a token for the room is supplied and
// the spectator view otherwise.
func (s *Server) roomState(c *gin.Context) {
	roomID := c.Param("id")
	viewer := ""
	if token := bearer(c); token != "" {
		identity, err := s.issuer.Validate(c.Request.Context(), token)
		if err != nil {
			s.abort(c, err)
			return
		}
		if identity.RoomID == roomID {
			viewer = identity.PlayerID
		}
	}

	view, err := s.dispatcher.RoomState(roomID, viewer)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) joinRoom(c *gin.Context) {
	var data JoinRoomData
	if !s.bind(c, &data) {
		return
	}
	roomID := c.Param("id")

	playerID, view, err := s.dispatcher.JoinRoom(roomID, data.Name)
	if err != nil {
		s.abort(c, err)
		return
	}

	token, err := s.issuer.Issue(roomID, playerID)
	if err != nil {
		s.logger.Error("Failed to issue token", "room", roomID, "player", playerID, "error", err)
		_ = s.dispatcher.LeaveRoom(roomID, playerID)
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, JoinedData{
		RoomID:   roomID,
		PlayerID: playerID,
		Token:    token,
		State:    view,
	})
}

func (s *Server) leaveRoom(c *gin.Context) {
	id := seat(c)
	if err := s.dispatcher.LeaveRoom(id.RoomID, id.PlayerID); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) startGame(c *gin.Context) {
	id := seat(c)
	if err := s.dispatcher.StartGame(id.RoomID, id.PlayerID); err != nil {
		s.abort(c, err)
		return
	}
	s.respondState(c, id)
}

func (s *Server) submitCards(c *gin.Context) {
	var data SubmitCardsData
	if !s.bind(c, &data) {
		return
	}
	id := seat(c)
	if err := s.dispatcher.SubmitCards(id.RoomID, id.PlayerID, data.CardIDs...); err != nil {
		s.abort(c, err)
		return
	}
	s.respondState(c, id)
}

func (s *Server) pickWinner(c *gin.Context) {
	var data PickWinnerData
	if !s.bind(c, &data) {
		return
	}
	id := seat(c)
	scores, err := s.dispatcher.PickWinner(id.RoomID, id.PlayerID, data.PlayerID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, WinnerData{Scores: scores})
}

// respondState replies with the caller's view after an action.
func (s *Server) respondState(c *gin.Context, id *auth.Identity) {
	view, err := s.dispatcher.RoomState(id.RoomID, id.PlayerID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
