// Package ws provides the chat gateway's WebSocket endpoint.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/chat"
	"github.com/pessini/superpod-blog/internal/config"
	"github.com/pessini/superpod-blog/internal/hub"
	"github.com/pessini/superpod-blog/internal/protocol"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.ChatConfig
	hub      *hub.Hub
	gateway  *chat.Gateway
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu     sync.Mutex
	states map[string]*chatState

	replies sync.WaitGroup
}

// chatState is shared by every connection bound to one chat session.
type chatState struct {
	mu       sync.Mutex
	userID   string
	session  *chat.Session
	profiles []chat.Profile
	busy     bool
	lastSeen time.Time
}

func (st *chatState) touch() {
	st.mu.Lock()
	st.lastSeen = time.Now()
	st.mu.Unlock()
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.ChatConfig, h *hub.Hub, gateway *chat.Gateway, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		hub:     h,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(zap.String("component", "ws")),
		states: make(map[string]*chatState),
	}
}

// RegisterRoutes mounts the WebSocket endpoint and a health check.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
	e.GET("/health", s.handleHealth)
}

func (s *Server) handleHealth(c echo.Context) error {
	connections, sessions := s.hub.Stats()
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": connections,
		"sessions":    sessions,
	})
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// Wait blocks until all in-flight replies finished.
func (s *Server) Wait() {
	s.replies.Wait()
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
		if state := s.state(conn.SessionID); state != nil {
			state.touch()
		}
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout()))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout()))
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}
		conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout()))
		s.handleMessage(conn, message)
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			deadline := time.Now().Add(s.cfg.WriteTimeout())
			if !ok {
				// hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{}, deadline)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message, deadline); err != nil {
				s.logger.Debug("failed to write message", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout())); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypePing:
		s.send(conn, protocol.BaseMessage{Type: protocol.TypePong, Ts: now(), RequestID: base.RequestID})
	case protocol.TypeSelectProfile:
		s.handleSelectProfile(conn, data)
	case protocol.TypeUserMessage:
		s.handleUserMessage(conn, data)
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleHello checks the credentials, binds the connection to a chat session
// and answers with the available profiles. A known session_id resumes that
// session.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}
	if !s.authorized(msg.Username, msg.Password) {
		s.logger.Info("rejected login", zap.String("username", msg.Username))
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnauthorized, "invalid username or password")
		return
	}
	conn.UserID = msg.Username

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ClientTimeout())
	defer cancel()

	sessionID := msg.SessionID
	state := s.state(sessionID)
	if state != nil && state.userID != msg.Username {
		s.logger.Warn("rejected resume of foreign chat", zap.String("session_id", sessionID), zap.String("username", msg.Username))
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnauthorized, "session belongs to another user")
		return
	}
	if state == nil {
		sessionID = "chat_" + uuid.New().String()[:8]
		state = &chatState{userID: msg.Username, session: s.gateway.NewSession(msg.Username), lastSeen: time.Now()}
		state.profiles = s.gateway.Profiles(ctx)
		notice := state.session.Select(ctx, state.profiles[0].Name)
		defer s.noticeIfAny(conn, sessionID, state.session.Profile(), notice)
	}
	s.hub.BindSession(conn, sessionID)
	// stored after binding so a concurrent sweep cannot drop a resumed chat
	s.mu.Lock()
	s.states[sessionID] = state
	s.mu.Unlock()

	state.mu.Lock()
	state.lastSeen = time.Now()
	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        now(),
			RequestID: msg.RequestID,
			SessionID: sessionID,
		},
		UserID:   msg.Username,
		Profiles: toProtocol(state.profiles),
		Profile:  state.session.Profile(),
	}
	state.mu.Unlock()
	s.send(conn, ack)
	s.logger.Info("hello handshake completed", zap.String("session_id", sessionID), zap.String("user_id", msg.Username))
}

func (s *Server) noticeIfAny(conn *hub.Connection, sessionID, profile, notice string) {
	if notice == "" {
		return
	}
	s.send(conn, protocol.ProfileSelectedMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeProfileSelected, Ts: now(), SessionID: sessionID},
		Profile:     profile,
		Notice:      notice,
	})
}

func (s *Server) authorized(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	return userOK && passOK
}

func (s *Server) handleSelectProfile(conn *hub.Connection, data []byte) {
	var msg protocol.SelectProfileMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid select_profile message")
		return
	}
	state := s.state(conn.SessionID)
	if state == nil {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.busy {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeBusy, "a reply is still streaming")
		return
	}
	if _, err := chat.Find(state.profiles, msg.Profile); err != nil {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnknownProfile, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ClientTimeout())
	defer cancel()
	notice := state.session.Select(ctx, msg.Profile)

	reply := protocol.ProfileSelectedMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeProfileSelected,
			Ts:        now(),
			RequestID: msg.RequestID,
			SessionID: conn.SessionID,
		},
		Profile: state.session.Profile(),
		Notice:  notice,
	}
	if err := s.hub.BroadcastJSON(conn.SessionID, reply); err != nil {
		s.logger.Error("failed to broadcast", zap.Error(err))
	}
}

// handleUserMessage streams the reply to every connection of the session.
// One reply per session runs at a time.
func (s *Server) handleUserMessage(conn *hub.Connection, data []byte) {
	var msg protocol.UserMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid user_message message")
		return
	}
	state := s.state(conn.SessionID)
	if state == nil {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "content is required")
		return
	}

	state.mu.Lock()
	if state.busy {
		state.mu.Unlock()
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeBusy, "a reply is still streaming")
		return
	}
	state.busy = true
	state.lastSeen = time.Now()
	state.mu.Unlock()

	sessionID := conn.SessionID
	base := protocol.BaseMessage{RequestID: msg.RequestID, SessionID: sessionID}

	s.replies.Add(1)
	go func() {
		defer s.replies.Done()
		defer func() {
			state.mu.Lock()
			state.busy = false
			state.lastSeen = time.Now()
			state.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReplyTimeout())
		defer cancel()

		reply, err := state.session.Send(ctx, msg.Content, func(chunk string) {
			delta := protocol.DeltaMessage{BaseMessage: base, Text: chunk}
			delta.Type, delta.Ts = protocol.TypeDelta, now()
			s.broadcast(sessionID, delta)
		})
		if err != nil {
			s.logger.Warn("reply aborted", zap.String("session_id", sessionID), zap.Error(err))
			errMsg := protocol.ErrorMessage{BaseMessage: base, Code: protocol.ErrorCodeInternalError, Message: err.Error()}
			errMsg.Type, errMsg.Ts = protocol.TypeError, now()
			s.broadcast(sessionID, errMsg)
			return
		}
		done := protocol.DoneMessage{BaseMessage: base, Content: reply}
		done.Type, done.Ts = protocol.TypeDone, now()
		s.broadcast(sessionID, done)
	}()
}

// RunSweeper drops idle chats every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.sweepIdle(t); n > 0 {
				s.logger.Info("dropped idle chats", zap.Int("count", n))
			}
		}
	}
}

// sweepIdle forgets chats that have no connection, no reply in flight and
// were last used before now minus the idle timeout.
func (s *Server) sweepIdle(now time.Time) int {
	cutoff := now.Add(-s.cfg.IdleChatTimeout())
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, state := range s.states {
		if s.hub.HasActiveConnections(id) {
			continue
		}
		state.mu.Lock()
		idle := !state.busy && state.lastSeen.Before(cutoff)
		state.mu.Unlock()
		if idle {
			delete(s.states, id)
			dropped++
		}
	}
	return dropped
}

// chats reports the number of chats held in memory.
func (s *Server) chats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func (s *Server) state(sessionID string) *chatState {
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[sessionID]
}

func (s *Server) broadcast(sessionID string, v any) {
	if err := s.hub.BroadcastJSON(sessionID, v); err != nil {
		s.logger.Error("failed to broadcast", zap.Error(err))
	}
}

func (s *Server) send(conn *hub.Connection, v any) {
	if err := s.hub.SendJSONToConnection(conn, v); err != nil {
		s.logger.Debug("failed to queue message", zap.String("conn_id", conn.ID), zap.Error(err))
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	s.send(conn, protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        now(),
			RequestID: requestID,
			SessionID: conn.SessionID,
		},
		Code:    code,
		Message: message,
	})
}

func toProtocol(profiles []chat.Profile) []protocol.Profile {
	out := make([]protocol.Profile, len(profiles))
	for i, p := range profiles {
		out[i] = protocol.Profile{Name: p.Name, DisplayName: p.DisplayName, Description: p.Description}
		if p.Entity != nil {
			out[i].EntityType = string(p.Entity.Type)
		}
	}
	return out
}

func now() int64 { return time.Now().UnixMilli() }
