package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, m *Manager, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = m.HandleConnection(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return m.IsOnline(userID) }, time.Second, 10*time.Millisecond)
	return conn
}

func TestSendToUserDeliversMessage(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	defer m.Close()
	conn := dial(t, m, "user-1")

	err := m.SendToUser("user-1", Message{Type: TypeNotification, Data: map[string]any{"title": "hello"}, Timestamp: time.Now()})
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeNotification, got.Type)
	assert.Equal(t, "hello", got.Data["title"])
}

func TestSendToUserNotConnected(t *testing.T) {
	m := NewManager(nil, zap.NewNop())

	err := m.SendToUser("nobody", Message{Type: TypeNotification})

	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPresenceIsAcknowledged(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	defer m.Close()
	conn := dial(t, m, "user-2")

	require.NoError(t, conn.WriteJSON(Message{Type: TypePresence}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeStatus, got.Type)
	assert.Equal(t, "connected", got.Data["status"])
}

func TestClientDisconnectUnregisters(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	conn := dial(t, m, "user-3")

	conn.Close()

	assert.Eventually(t, func() bool { return !m.IsOnline("user-3") }, 2*time.Second, 10*time.Millisecond)
}
