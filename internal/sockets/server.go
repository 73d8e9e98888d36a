// Package sockets serves the authenticated WebSocket endpoint.
package sockets

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"resthub/internal/common"
	"resthub/internal/models"
)

// Events exchanged with clients.
const (
	EventWelcome      = "welcome"
	EventSubscribe    = "subscribe"
	EventSubscribed   = "subscribed"
	EventUnsubscribe  = "unsubscribe"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
)

// Message is the JSON frame used in both directions.
type Message struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// UserResolver resolves the user behind an access token. Failures must be
// *common.AppError values.
type UserResolver interface {
	GetUserFromAccessToken(ctx context.Context, accessToken string) (*models.User, error)
}

type Server struct {
	users          UserResolver
	logger         *slog.Logger
	originPatterns []string

	mu       sync.Mutex
	sessions map[*session]struct{}
}

type session struct {
	conn     *websocket.Conn
	user     *models.User
	channels map[string]bool
}

func NewServer(users UserResolver, logger *slog.Logger, originPatterns ...string) *Server {
	return &Server{
		users:          users,
		logger:         logger.With("component", "sockets"),
		originPatterns: originPatterns,
		sessions:       make(map[*session]struct{}),
	}
}

// ServeHTTP authenticates before upgrading. A rejected handshake gets the
// regular JSON error envelope.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserFromAccessToken(r.Context(), accessToken(r))
	if err != nil {
		appErr := common.AsAppError(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErr.Status)
		if encErr := json.NewEncoder(w).Encode(appErr.Response()); encErr != nil {
			s.logger.Error("writing handshake rejection", "error", encErr)
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	sess := &session{conn: conn, user: user, channels: map[string]bool{}}
	s.track(sess)
	defer s.untrack(sess)

	s.logger.Debug("socket connected", "user_id", user.ID)
	s.serve(r.Context(), sess)
}

func (s *Server) serve(ctx context.Context, sess *session) {
	welcome := Message{Event: EventWelcome, Data: map[string]string{
		"firstName": sess.user.FirstName,
		"lastName":  sess.user.LastName,
	}}
	if err := wsjson.Write(ctx, sess.conn, welcome); err != nil {
		sess.conn.Close(websocket.StatusInternalError, "welcome failed")
		return
	}

	for {
		var msg Message
		if err := wsjson.Read(ctx, sess.conn, &msg); err != nil {
			s.logClose(sess, err)
			sess.conn.CloseNow()
			return
		}

		if err := wsjson.Write(ctx, sess.conn, s.handle(sess, msg)); err != nil {
			s.logClose(sess, err)
			sess.conn.CloseNow()
			return
		}
	}
}

func (s *Server) handle(sess *session, msg Message) Message {
	switch msg.Event {
	case EventSubscribe, EventUnsubscribe:
		if msg.Channel == "" {
			return Message{Event: EventError, Data: "channel is required"}
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if msg.Event == EventSubscribe {
			sess.channels[msg.Channel] = true
			return Message{Event: EventSubscribed, Channel: msg.Channel}
		}
		delete(sess.channels, msg.Channel)
		return Message{Event: EventUnsubscribed, Channel: msg.Channel}
	}
	return Message{Event: EventError, Data: "unknown event " + msg.Event}
}

func (s *Server) logClose(sess *session, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		s.logger.Debug("socket disconnected", "user_id", sess.user.ID)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Warn("socket closed with error", "user_id", sess.user.ID, "error", err)
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

// Connections is the number of open sockets.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes every open socket with StatusGoingAway.
func (s *Server) Shutdown() {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// accessToken reads the access_token query parameter, then a bearer header.
func accessToken(r *http.Request) string {
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
