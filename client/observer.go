// Package client is the observer side of the board: a local card cache kept
// in sync with the authoritative server through full resyncs and the
// websocket event stream.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
	"github.com/shappi-app/warehouse-bundles-dashboard/tabular"
)

const reconnectDelay = 3 * time.Second

// Observer mirrors the board locally. Events are applied as they arrive and a
// full resync replaces the mirror wholesale, so a dropped or redundant event
// is corrected at the next reconnect.
type Observer struct {
	mu     sync.RWMutex
	cards  map[string]board.Card
	api    *HTTPClient
	cache  *Cache
	logger *zap.Logger

	// OnChange, when set, runs after every applied change with the lock
	// released. Used by the watch command to redraw its summary.
	OnChange func()
}

// NewObserver creates an observer for the server at baseURL. cache may be nil
// to run purely in memory.
func NewObserver(baseURL string, cache *Cache, logger *zap.Logger) *Observer {
	return &Observer{
		cards:  make(map[string]board.Card),
		api:    NewHTTPClient(strings.TrimRight(baseURL, "/")),
		cache:  cache,
		logger: logger,
	}
}

// LoadCache pre-populates the mirror from the local cache so cards are
// visible before the first resync completes.
func (o *Observer) LoadCache() error {
	if o.cache == nil {
		return nil
	}
	cards, err := o.cache.LoadAll()
	if err != nil {
		return fmt.Errorf("loading card cache: %w", err)
	}

	o.mu.Lock()
	o.cards = cards
	o.mu.Unlock()

	o.logger.Info("Loaded cached cards", zap.Int("cards", len(cards)))
	return nil
}

type cardsResponse struct {
	Cards map[string]board.Card `json:"cards"`
}

// Resync fetches the full snapshot and replaces the mirror and cache with it.
func (o *Observer) Resync(ctx context.Context) error {
	resp, err := o.api.GET("/api/cards", &RequestOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("fetching card snapshot: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching card snapshot: unexpected status %d", resp.StatusCode)
	}

	var body cardsResponse
	if err := UnmarshalBody(resp, &body); err != nil {
		return err
	}
	if body.Cards == nil {
		body.Cards = make(map[string]board.Card)
	}

	o.mu.Lock()
	o.cards = body.Cards
	o.mu.Unlock()

	if o.cache != nil {
		if err := o.cache.ReplaceAll(body.Cards); err != nil {
			o.logger.Warn("Failed to rewrite card cache", zap.Error(err))
		}
	}

	o.logger.Info("Resynced with server", zap.Int("cards", len(body.Cards)))
	o.notify()
	return nil
}

// wsURL derives the websocket endpoint from the API base URL.
func (o *Observer) wsURL() string {
	url := o.api.BaseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}

// Listen connects to the event stream and applies events until ctx is
// cancelled, resyncing after every (re)connect so no window of missed events
// survives. Connection failures back off and retry.
func (o *Observer) Listen(ctx context.Context) error {
	for {
		if err := o.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("Event stream dropped, reconnecting",
				zap.Error(err), zap.Duration("delay", reconnectDelay))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (o *Observer) listenOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, o.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dialing event stream: %w", err)
	}
	defer conn.Close()

	// Close the connection on cancel so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := o.Resync(ctx); err != nil {
		return err
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var evt board.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			o.logger.Warn("Dropping undecodable event", zap.Error(err))
			continue
		}
		o.ApplyEvent(evt)
	}
}

// ApplyEvent folds one server event into the mirror. Events are idempotent:
// replaying one the observer already saw lands on the same state.
func (o *Observer) ApplyEvent(evt board.Event) {
	switch evt.Type {
	case board.EventCardUpdated, board.EventCardRestored:
		if evt.Card == nil || evt.Card.TripID == "" {
			return
		}
		o.mu.Lock()
		o.cards[evt.Card.TripID] = *evt.Card
		o.mu.Unlock()
		if o.cache != nil {
			if err := o.cache.Put(*evt.Card); err != nil {
				o.logger.Warn("Failed to cache card", zap.String("tripId", evt.Card.TripID), zap.Error(err))
			}
		}
	case board.EventClearCompleted:
		o.mu.Lock()
		var dropped []string
		for tid, card := range o.cards {
			if card.CurrentBucket == board.BucketCompleted {
				dropped = append(dropped, tid)
				delete(o.cards, tid)
			}
		}
		o.mu.Unlock()
		if o.cache != nil {
			for _, tid := range dropped {
				if err := o.cache.Delete(tid); err != nil {
					o.logger.Warn("Failed to evict cached card", zap.String("tripId", tid), zap.Error(err))
				}
			}
		}
	default:
		o.logger.Warn("Ignoring unknown event", zap.String("event", string(evt.Type)))
		return
	}
	o.notify()
}

func (o *Observer) notify() {
	if o.OnChange != nil {
		o.OnChange()
	}
}

// Cards returns a copy of the current mirror.
func (o *Observer) Cards() []board.Card {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]board.Card, 0, len(o.cards))
	for _, card := range o.cards {
		out = append(out, card)
	}
	return out
}

// Card returns one card by trip ID.
func (o *Observer) Card(tripID string) (board.Card, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	card, ok := o.cards[tripID]
	return card, ok
}

// UploadReport is the server's answer to a CSV upload.
type UploadReport struct {
	Success  bool     `json:"success"`
	Count    int      `json:"count"`
	Warnings []string `json:"warnings"`
}

// UploadCSV reads a CSV export, applies it to the mirror optimistically using
// the same merge rules the server runs, then submits the raw rows. The
// echoed card-updated events confirm the optimistic state; a divergence is
// corrected at the next resync.
func (o *Observer) UploadCSV(ctx context.Context, r io.Reader) (*UploadReport, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}

	updates, rowErrs := tabular.ProjectRows(rows)
	for _, re := range rowErrs {
		o.logger.Warn("Skipping invalid row", zap.Int("row", re.Row), zap.String("reason", re.Reason))
	}

	o.mu.Lock()
	for _, u := range updates {
		var prev *board.Card
		if existing, ok := o.cards[u.TripID]; ok {
			prior := existing
			prev = &prior
		}
		o.cards[u.TripID] = board.ApplyUpdate(prev, u)
	}
	o.mu.Unlock()
	o.notify()

	resp, err := o.api.POST("/api/uploadCsv", map[string]any{"rows": rows}, &RequestOptions{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("submitting rows: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submitting rows: unexpected status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var report UploadReport
	if err := UnmarshalBody(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SaveCard submits a direct card edit or creation.
func (o *Observer) SaveCard(ctx context.Context, card board.Card) error {
	return o.postCard(ctx, "/api/card", card)
}

// RestoreCard reinserts a previously archived card.
func (o *Observer) RestoreCard(ctx context.Context, card board.Card) error {
	return o.postCard(ctx, "/api/restoreCard", card)
}

func (o *Observer) postCard(ctx context.Context, endpoint string, card board.Card) error {
	resp, err := o.api.POST(endpoint, map[string]any{"card": card}, &RequestOptions{Context: ctx})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("saving card %s: unexpected status %d: %s", card.TripID, resp.StatusCode, string(resp.Body))
	}
	return nil
}

// ClearCompleted asks the server to drop every completed card and returns the
// removed count. The mirror catches up through the clear-completed event.
func (o *Observer) ClearCompleted(ctx context.Context) (int, error) {
	resp, err := o.api.POST("/api/clearCompleted", nil, &RequestOptions{Context: ctx})
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("clearing completed cards: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Removed int `json:"removed"`
	}
	if err := UnmarshalBody(resp, &body); err != nil {
		return 0, err
	}
	return body.Removed, nil
}
