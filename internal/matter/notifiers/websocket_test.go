package notifiers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniacca/mattercore/internal/matter"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) matter.ContainmentEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev matter.ContainmentEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestWebSocketNotifier_Broadcasts(t *testing.T) {
	n := NewWebSocketNotifier("ws", nil)
	defer n.Close()
	srv := httptest.NewServer(n)
	defer srv.Close()

	all := dial(t, srv, "")
	labOnly := dial(t, srv, "?world=lab")
	require.Eventually(t, func() bool { return n.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, matter.ContainmentEvent{ID: "other", WorldID: "garage", Type: matter.EventAdded}))
	require.NoError(t, n.Notify(ctx, matter.ContainmentEvent{ID: "mine", WorldID: "lab", Type: matter.EventRemoved}))

	assert.Equal(t, "other", readEvent(t, all).ID)
	assert.Equal(t, "mine", readEvent(t, all).ID)

	ev := readEvent(t, labOnly)
	assert.Equal(t, "mine", ev.ID, "events of other worlds are filtered out")
	assert.Equal(t, matter.EventRemoved, ev.Type)
}

func TestWebSocketNotifier_DropsDisconnectedClients(t *testing.T) {
	n := NewWebSocketNotifier("ws", nil)
	defer n.Close()
	srv := httptest.NewServer(n)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return n.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return n.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketNotifier_Close(t *testing.T) {
	n := NewWebSocketNotifier("ws", nil)
	srv := httptest.NewServer(n)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return n.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.Zero(t, n.ClientCount())
	assert.Error(t, n.Notify(context.Background(), matter.ContainmentEvent{ID: "late"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "the server side closed the connection")
}
