package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
)

// roomServer upgrades each request and registers it in chat 1 as the user from ?uid.
func roomServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		uid := 1
		if r.URL.Query().Get("uid") == "2" {
			uid = 2
		}
		hub.AddClient(1, conn, ConnInfo{ConnID: newConnID(), UserID: uid})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubAddAndRemoveClient(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)

	hub.AddClient(1, nil, ConnInfo{UserID: 7})
	assert.Equal(t, 1, hub.RoomSize(1))
	assert.Equal(t, 1, hub.UserConnections(7))

	remaining := hub.RemoveClient(1, nil)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, hub.RoomSize(1))
	assert.Empty(t, hub.rooms)
}

func TestHubRemoveClientReportsRemainingUserConnections(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	a, b := &websocket.Conn{}, &websocket.Conn{}

	hub.AddClient(1, a, ConnInfo{UserID: 7})
	hub.AddClient(2, b, ConnInfo{UserID: 7})

	assert.Equal(t, 1, hub.RemoveClient(1, a))
	assert.Equal(t, 0, hub.RemoveClient(2, b))
}

func TestHubBroadcastDeliversEvent(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	srv := roomServer(t, hub)

	conn := dial(t, srv, "uid=1")
	require.Eventually(t, func() bool { return hub.RoomSize(1) == 1 }, time.Second, 10*time.Millisecond)

	content := "hi"
	hub.Broadcast(1, models.ChatEvent{
		Type:    "message",
		Message: &models.MessageWithAuthor{Message: models.Message{ID: 3, ChatID: 1, Content: &content}},
	})

	var event models.ChatEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "message", event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, "hi", *event.Message.Content)
}

func TestHubDisconnectUsersOnlyClosesTargets(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	srv := roomServer(t, hub)

	first := dial(t, srv, "uid=1")
	second := dial(t, srv, "uid=2")
	require.Eventually(t, func() bool { return hub.RoomSize(1) == 2 }, time.Second, 10*time.Millisecond)

	hub.DisconnectUsers(1, []int{2})

	require.NoError(t, second.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := second.ReadMessage()
	assert.Error(t, err)

	hub.Broadcast(1, models.ChatEvent{Type: "read", UserID: 1})
	require.NoError(t, first.SetReadDeadline(time.Now().Add(time.Second)))
	var event models.ChatEvent
	require.NoError(t, first.ReadJSON(&event))
	assert.Equal(t, "read", event.Type)
}
