package sockets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resthub/internal/common"
	"resthub/internal/models"
)

type fakeResolver struct {
	users map[string]*models.User
}

func (f *fakeResolver) GetUserFromAccessToken(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, common.NewUnauthorized("Unauthorized request: no authentication given")
	}
	user, ok := f.users[accessToken]
	if !ok {
		return nil, common.NewUnauthorized("Invalid token: access token is invalid")
	}
	return user, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	resolver := &fakeResolver{users: map[string]*models.User{
		"good": {ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace"},
	}}
	srv := NewServer(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/sockets" + query
}

func TestHandshake_RejectsMissingOrInvalidToken(t *testing.T) {
	_, ts := newTestServer(t)

	for _, query := range []string{"", "?access_token=bad"} {
		resp, err := http.Get(ts.URL + "/sockets" + query)
		require.NoError(t, err)

		var body common.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, common.CodeUnauthorized, body.Code)
	}
}

func TestSession_WelcomeAndSubscriptions(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(ts, "?access_token=good"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, EventWelcome, msg.Event)
	assert.Equal(t, map[string]any{"firstName": "Ada", "lastName": "Lovelace"}, msg.Data)
	assert.Equal(t, 1, srv.Connections())

	require.NoError(t, wsjson.Write(ctx, conn, Message{Event: EventSubscribe, Channel: "notifications"}))
	msg = Message{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, Message{Event: EventSubscribed, Channel: "notifications"}, msg)

	require.NoError(t, wsjson.Write(ctx, conn, Message{Event: EventUnsubscribe, Channel: "notifications"}))
	msg = Message{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, Message{Event: EventUnsubscribed, Channel: "notifications"}, msg)

	require.NoError(t, wsjson.Write(ctx, conn, Message{Event: "dance"}))
	msg = Message{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, EventError, msg.Event)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return srv.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSession_BearerHeaderAndShutdown(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(ts, ""), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer good"}},
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, EventWelcome, msg.Event)

	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(done)
	}()

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	<-done
}
