package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
)

func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Registration runs asynchronously after the upgrade.
	time.Sleep(100 * time.Millisecond)
	return conn
}

func TestBroadcastReachesObserver(t *testing.T) {
	h := New(zap.NewNop())
	go h.Run()

	conn := dialTestHub(t, h)

	h.Publish(board.Event{
		Type: board.EventCardUpdated,
		Card: &board.Card{TripID: "T1", CurrentBucket: board.BucketPending},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt board.Event
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, board.EventCardUpdated, evt.Type)
	require.NotNil(t, evt.Card)
	assert.Equal(t, "T1", evt.Card.TripID)
}

func TestClearCompletedEventHasNoPayload(t *testing.T) {
	h := New(zap.NewNop())
	go h.Run()

	conn := dialTestHub(t, h)

	h.Publish(board.Event{Type: board.EventClearCompleted})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"clear-completed"}`, string(raw))
}

func TestPublishNeverBlocks(t *testing.T) {
	h := New(zap.NewNop())
	// Run is deliberately not started: the queue fills and overflow drops.

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Publish(board.Event{Type: board.EventCardUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}
