package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/guahanweb/mcp-server-platform/kernel"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/telemetry"
)

// welcomeMessage is sent once, immediately after a connection is
// accepted: "{type:"welcome", connectionId, timestamp}".
type welcomeMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	// closeCodeOverCapacity and closeCodeGoingAway are the WebSocket
	// close codes this server sends for a rejected connection and for a
	// graceful shutdown, respectively.
	closeCodeOverCapacity = 1013
	closeCodeGoingAway    = 1001
)

// WebSocketServer upgrades HTTP connections to WebSocket and dispatches
// one JSON-RPC message per frame through the kernel, with a
// ping/pong heartbeat and a bounded connection count.
type WebSocketServer struct {
	dispatcher Dispatcher
	logger     telemetry.Logger
	upgrader   websocket.Upgrader
	maxConns   int
	pingEvery  time.Duration

	mu    sync.Mutex
	conns map[string]*wsConn
}

// WebSocketOption configures a WebSocketServer.
type WebSocketOption func(*WebSocketServer)

// WithHeartbeatInterval overrides how often each connection is pinged.
// A connection that fails to pong across two heartbeats is terminated
// by its read deadline.
func WithHeartbeatInterval(interval time.Duration) WebSocketOption {
	return func(s *WebSocketServer) {
		if interval > 0 {
			s.pingEvery = interval
		}
	}
}

// pongWait is how long a connection may go without ponging before its
// reads time out: two heartbeat periods.
func (s *WebSocketServer) pongWait() time.Duration { return 2 * s.pingEvery }

type wsConn struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	sessionID string
	userID    string
}

// NewWebSocketServer builds a WebSocketServer accepting up to maxConns
// concurrent connections (0 means unlimited).
func NewWebSocketServer(d Dispatcher, logger telemetry.Logger, maxConns int, opts ...WebSocketOption) *WebSocketServer {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	s := &WebSocketServer{
		dispatcher: d,
		logger:     logger,
		upgrader:   websocket.Upgrader{},
		maxConns:   maxConns,
		pingEvery:  wsPingPeriod,
		conns:      make(map[string]*wsConn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request to a WebSocket connection and serves
// it until the client disconnects or the server shuts down.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(r.Context(), "websocket: upgrade failed", "err", err)
		return
	}

	connID := uuid.NewString()
	wc := &wsConn{
		id:        connID,
		conn:      conn,
		sessionID: r.Header.Get("x-session-id"),
		userID:    r.Header.Get("x-user-id"),
	}

	if s.maxConns > 0 {
		s.mu.Lock()
		full := len(s.conns) >= s.maxConns
		if !full {
			s.conns[connID] = wc
		}
		s.mu.Unlock()
		if full {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeCodeOverCapacity, "max connections reached"),
				time.Now().Add(wsWriteWait))
			_ = conn.Close()
			return
		}
	} else {
		s.mu.Lock()
		s.conns[connID] = wc
		s.mu.Unlock()
	}

	defer func() {
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	if err := wc.writeJSON(welcomeMessage{Type: "welcome", ConnectionID: connID, Timestamp: time.Now().UnixMilli()}); err != nil {
		s.logger.Error(r.Context(), "websocket: welcome write failed", "connection", connID, "err", err)
		return
	}

	s.serveConn(r.Context(), wc)
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (s *WebSocketServer) serveConn(ctx context.Context, wc *wsConn) {
	conn := wc.conn
	conn.SetReadDeadline(time.Now().Add(s.pongWait()))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongWait()))
		return nil
	})

	done := make(chan struct{})
	go s.heartbeat(wc, done)
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn(ctx, "websocket: unexpected close", "connection", wc.id, "err", err)
			}
			return
		}

		reqCtx := kernel.WithRequestContext(ctx, plugin.RequestContext{
			SessionID: wc.sessionID,
			UserID:    wc.userID,
			Timestamp: time.Now().UnixMilli(),
			Metadata:  map[string]any{"connectionId": wc.id},
		})
		resp := HandleMessage(reqCtx, s.dispatcher, raw)

		if err := wc.writeJSON(resp); err != nil {
			s.logger.Error(ctx, "websocket: write failed", "connection", wc.id, "err", err)
			return
		}
	}
}

func (s *WebSocketServer) heartbeat(wc *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			wc.writeMu.Lock()
			wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := wc.conn.WriteMessage(websocket.PingMessage, nil)
			wc.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send broadcasts data as a raw JSON frame (no JSON-RPC id) to every
// open connection for which filter returns true. A nil filter
// broadcasts to every connection.
func (s *WebSocketServer) Send(data any, filter func(connectionID string) bool) error {
	s.mu.Lock()
	targets := make([]*wsConn, 0, len(s.conns))
	for id, c := range s.conns {
		if filter == nil || filter(id) {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	var firstErr error
	for _, c := range targets {
		if err := c.writeJSON(data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ConnectionCount reports the number of currently open connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown sends a going-away close frame to every open connection.
func (s *WebSocketServer) Shutdown(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCodeGoingAway, "server shutting down"),
			time.Now().Add(wsWriteWait))
		_ = c.conn.Close()
	}
	s.conns = make(map[string]*wsConn)
}
