package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lox/blankcards/internal/auth"
	"github.com/lox/blankcards/internal/deck"
	"github.com/lox/blankcards/internal/engine"
	"github.com/lox/blankcards/internal/game"
	"github.com/lox/blankcards/internal/randutil"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.DebugLevel})
}

type testEnv struct {
	server     *Server
	dispatcher *engine.Dispatcher
	http       *httptest.Server
	clock      *quartz.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := quartz.NewMock(t)
	issuer, err := auth.NewIssuer("test-secret", time.Hour, clock)
	require.NoError(t, err)

	catalog, err := deck.Default()
	require.NoError(t, err)

	srv := NewServer(issuer, testLogger(), clock)
	seed := int64(0)
	d := engine.New(engine.NewRegistry(), catalog,
		engine.WithClock(clock),
		engine.WithNotifier(srv),
		engine.WithRandSource(func() randutil.Source {
			seed++
			return randutil.NewLocked(seed)
		}),
	)
	srv.SetDispatcher(d)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	return &testEnv{server: srv, dispatcher: d, http: ts, clock: clock}
}

// do sends a JSON request and decodes a JSON reply into out when given.
func (e *testEnv) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = strings.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(out), "body: %s", data)
	}
	return resp.StatusCode
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType MessageType, data any, requestID string) {
	t.Helper()

	msg, err := NewMessage(msgType, data, time.Now())
	require.NoError(t, err)
	msg.RequestID = requestID
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

// receiveUntil reads until a message of msgType arrives and matches, if
// given, and decodes it into out.
func receiveUntil(t *testing.T, conn *websocket.Conn, msgType MessageType, out any, match func() bool) *Message {
	t.Helper()

	for {
		msg := receive(t, conn)
		if msg.Type != msgType {
			continue
		}
		if out != nil {
			v := reflect.ValueOf(out).Elem()
			v.Set(reflect.Zero(v.Type()))
			require.NoError(t, json.Unmarshal(msg.Data, out))
		}
		if match == nil || match() {
			return msg
		}
	}
}

// answerFor picks the first cards in hand the current prompt needs.
func answerFor(v game.View) []string {
	var ids []string
	for _, c := range v.Hand[:v.Pick] {
		ids = append(ids, c.ID)
	}
	return ids
}
