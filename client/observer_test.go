package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
)

func findCard(t *testing.T, o *Observer, tripID string) board.Card {
	t.Helper()
	card, ok := o.Card(tripID)
	require.True(t, ok, "expected card %s in mirror", tripID)
	return card
}

func TestApplyEventUpsertsCards(t *testing.T) {
	o := NewObserver("http://localhost:3000", nil, zap.NewNop())

	o.ApplyEvent(board.Event{
		Type: board.EventCardUpdated,
		Card: &board.Card{TripID: "T1", CurrentBucket: board.BucketPending},
	})
	assert.Equal(t, board.BucketPending, findCard(t, o, "T1").CurrentBucket)

	// Replaying the same event converges on the same state.
	o.ApplyEvent(board.Event{
		Type: board.EventCardUpdated,
		Card: &board.Card{TripID: "T1", CurrentBucket: board.BucketPending},
	})
	assert.Len(t, o.Cards(), 1)

	o.ApplyEvent(board.Event{
		Type: board.EventCardRestored,
		Card: &board.Card{TripID: "T2", CurrentBucket: board.BucketLabeled},
	})
	assert.Equal(t, board.BucketLabeled, findCard(t, o, "T2").CurrentBucket)
}

func TestApplyEventClearCompleted(t *testing.T) {
	o := NewObserver("http://localhost:3000", nil, zap.NewNop())
	o.ApplyEvent(board.Event{Type: board.EventCardUpdated, Card: &board.Card{TripID: "T1", CurrentBucket: board.BucketCompleted}})
	o.ApplyEvent(board.Event{Type: board.EventCardUpdated, Card: &board.Card{TripID: "T2", CurrentBucket: board.BucketPending}})

	o.ApplyEvent(board.Event{Type: board.EventClearCompleted})

	_, ok := o.Card("T1")
	assert.False(t, ok, "completed cards are dropped locally")
	_, ok = o.Card("T2")
	assert.True(t, ok)
}

func TestApplyEventIgnoresMalformedEvents(t *testing.T) {
	o := NewObserver("http://localhost:3000", nil, zap.NewNop())

	o.ApplyEvent(board.Event{Type: board.EventCardUpdated, Card: nil})
	o.ApplyEvent(board.Event{Type: "card-exploded", Card: &board.Card{TripID: "T1"}})

	assert.Empty(t, o.Cards())
}

func TestResyncReplacesMirror(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/cards", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"cards": map[string]board.Card{
				"T2": {TripID: "T2", CurrentBucket: board.BucketBundling},
			},
		})
	}))
	defer srv.Close()

	o := NewObserver(srv.URL, nil, zap.NewNop())
	o.ApplyEvent(board.Event{Type: board.EventCardUpdated, Card: &board.Card{TripID: "T1"}})

	var changes int
	o.OnChange = func() { changes++ }
	require.NoError(t, o.Resync(context.Background()))

	_, ok := o.Card("T1")
	assert.False(t, ok, "resync replaces the mirror wholesale")
	assert.Equal(t, board.BucketBundling, findCard(t, o, "T2").CurrentBucket)
	assert.Equal(t, 1, changes)
}

func TestUploadCSVAppliesOptimisticallyAndSubmits(t *testing.T) {
	var posted struct {
		Rows []map[string]any `json:"rows"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/uploadCsv", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		json.NewEncoder(w).Encode(map[string]any{"success": true, "count": 1, "warnings": []string{}})
	}))
	defer srv.Close()

	o := NewObserver(srv.URL, nil, zap.NewNop())

	csv := "Trip ID,Traveler,Items Accepted,Items Ready to process,Trip Verification Status\n" +
		"T1,Ana,5,9,TX Approved\n"
	report, err := o.UploadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Count)

	// The raw rows go to the server; normalization happens on both sides.
	require.Len(t, posted.Rows, 1)
	assert.Equal(t, "T1", posted.Rows[0]["Trip ID"])

	// The mirror already reflects the merge the server will announce.
	card := findCard(t, o, "T1")
	assert.Equal(t, 5, card.ItemsReadyToProcess)
	assert.Equal(t, board.BucketReadyForBundle, card.CurrentBucket)
}

func TestUploadCSVPreservesLocalOverrides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "count": 1, "warnings": []string{}})
	}))
	defer srv.Close()

	o := NewObserver(srv.URL, nil, zap.NewNop())
	assignee := "Greg"
	o.ApplyEvent(board.Event{Type: board.EventCardUpdated, Card: &board.Card{
		TripID:        "T1",
		AssignedTo:    &assignee,
		CurrentBucket: board.BucketBundling,
		ManuallyMoved: true,
	}})

	csv := "Trip ID,Trip Verification Status,Items Accepted,Items Ready to process\n" +
		"T1,TX Approved,5,5\n"
	_, err := o.UploadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	card := findCard(t, o, "T1")
	assert.Equal(t, board.BucketBundling, card.CurrentBucket, "optimistic merge honors manual placement")
	assert.Equal(t, &assignee, card.AssignedTo)
	assert.Equal(t, 5, card.ItemsAccepted)
}

func TestClearCompletedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/clearCompleted", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "removed": 3})
	}))
	defer srv.Close()

	o := NewObserver(srv.URL, nil, zap.NewNop())
	removed, err := o.ClearCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestWSURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:3000/ws", NewObserver("http://localhost:3000", nil, zap.NewNop()).wsURL())
	assert.Equal(t, "wss://board.example.com/ws", NewObserver("https://board.example.com/", nil, zap.NewNop()).wsURL())
}
