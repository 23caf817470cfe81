package board

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store error codes
const (
	ErrCodeNotFound    = "ENTITY_NOT_FOUND"
	ErrCodeInvalidCard = "INVALID_CARD"
	ErrCodePersist     = "PERSIST_FAILED"
)

// StoreError represents an error in the store layer.
type StoreError struct {
	Code    string
	Message string
	Detail  string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
}

// Store is the authoritative mapping of trip ID to card. Every mutating
// operation runs as a critical section: the new state is written to disk
// before it is committed in memory and broadcast, so acknowledged state and
// persisted state never diverge. A failed write rolls the mutation back and
// emits nothing.
type Store struct {
	mu     sync.Mutex
	cards  map[string]*Card
	path   string
	logger *zap.Logger
	sink   EventSink
}

// MergeReport summarizes one applied batch.
type MergeReport struct {
	Created int
	Updated int
}

// ManualEdit names the fields a direct user edit may overwrite. Nil Bucket
// leaves the stage alone. Assignee is applied only when SetAssignee is true,
// so "assign to nobody" and "leave assignment untouched" stay distinct.
type ManualEdit struct {
	Bucket      *Bucket
	Assignee    *string
	SetAssignee bool
}

// Open loads the persisted card mapping from path. A missing or malformed
// snapshot is logged and treated as an empty board; it never fails startup.
func Open(path string, logger *zap.Logger, sink EventSink) (*Store, error) {
	if sink == nil {
		sink = NopSink{}
	}
	s := &Store{
		cards:  make(map[string]*Card),
		path:   path,
		logger: logger,
		sink:   sink,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading card snapshot: %w", err)
		}
		logger.Info("No card snapshot found, starting empty", zap.String("path", path))
		return s, nil
	}

	if err := json.Unmarshal(raw, &s.cards); err != nil {
		logger.Warn("Card snapshot is malformed, starting empty",
			zap.String("path", path), zap.Error(err))
		s.cards = make(map[string]*Card)
		return s, nil
	}

	logger.Info("Loaded card snapshot", zap.String("path", path), zap.Int("cards", len(s.cards)))
	return s, nil
}

// Close flushes the current state to disk one last time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// persist writes the whole card mapping as one JSON object, atomically via
// temp file and rename. Caller must hold the mutex.
func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.cards, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func persistError(err error) *StoreError {
	return &StoreError{
		Code:    ErrCodePersist,
		Message: "Failed to persist card snapshot",
		Detail:  err.Error(),
	}
}

// MergeBatch upserts every update by trip ID. New cards start unassigned with
// a classified bucket; existing cards get their descriptive fields refreshed
// and are re-classified only while ManuallyMoved is false. One card-updated
// event per update, in input order. Applying the same batch twice converges
// on the same state and re-emits the same events.
func (s *Store) MergeBatch(updates []TripUpdate) (MergeReport, *StoreError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report MergeReport
	undo := make(map[string]*Card, len(updates))
	events := make([]Event, 0, len(updates))

	for _, u := range updates {
		prev, exists := s.cards[u.TripID]
		if _, staged := undo[u.TripID]; !staged {
			if exists {
				prior := *prev
				undo[u.TripID] = &prior
			} else {
				undo[u.TripID] = nil
			}
		}

		merged := ApplyUpdate(prev, u)
		s.cards[u.TripID] = &merged
		if exists {
			report.Updated++
		} else {
			report.Created++
		}

		snapshot := merged
		events = append(events, Event{Type: EventCardUpdated, Card: &snapshot})
	}

	if err := s.persist(); err != nil {
		s.rollback(undo)
		return MergeReport{}, persistError(err)
	}

	for _, evt := range events {
		s.sink.Publish(evt)
	}
	return report, nil
}

// ApplyManualEdit overwrites the named fields of an existing card and marks it
// manually moved, pinning its bucket against future merges.
func (s *Store) ApplyManualEdit(tripID string, edit ManualEdit) (*Card, *StoreError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[tripID]
	if !ok {
		return nil, &StoreError{
			Code:    ErrCodeNotFound,
			Message: "Card does not exist",
			Detail:  fmt.Sprintf("Card with trip ID %s does not exist", tripID),
		}
	}

	prior := *card
	if edit.Bucket != nil {
		card.CurrentBucket = *edit.Bucket
	}
	if edit.SetAssignee {
		card.AssignedTo = edit.Assignee
	}
	card.ManuallyMoved = true

	if err := s.persist(); err != nil {
		*card = prior
		return nil, persistError(err)
	}

	snapshot := *card
	s.sink.Publish(Event{Type: EventCardUpdated, Card: &snapshot})
	return &snapshot, nil
}

// PutCard stores a full card as given, creating or replacing the record. This
// backs the direct upsert endpoint; an empty bucket is classified from the
// card's own status and counts.
func (s *Store) PutCard(c Card) (*Card, *StoreError) {
	if c.TripID == "" {
		return nil, &StoreError{
			Code:    ErrCodeInvalidCard,
			Message: "Card is missing a trip ID",
			Detail:  "tripId must be a non-empty string",
		}
	}
	if c.CurrentBucket == "" {
		c.CurrentBucket = Classify(c.TripVerificationStatus, c.ItemsAccepted, c.ItemsReadyToProcess)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.cards[c.TripID]
	var prior Card
	if existed {
		prior = *prev
	}
	stored := c
	s.cards[c.TripID] = &stored

	if err := s.persist(); err != nil {
		if existed {
			s.cards[c.TripID] = &prior
		} else {
			delete(s.cards, c.TripID)
		}
		return nil, persistError(err)
	}

	snapshot := stored
	s.sink.Publish(Event{Type: EventCardUpdated, Card: &snapshot})
	return &snapshot, nil
}

// RestoreCard reinserts a card from outside the normal import path, for
// example from an observer's archive, and announces it as card-restored.
func (s *Store) RestoreCard(c Card) (*Card, *StoreError) {
	if c.TripID == "" {
		return nil, &StoreError{
			Code:    ErrCodeInvalidCard,
			Message: "Card is missing a trip ID",
			Detail:  "tripId must be a non-empty string",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.cards[c.TripID]
	var prior Card
	if existed {
		prior = *prev
	}
	stored := c
	s.cards[c.TripID] = &stored

	if err := s.persist(); err != nil {
		if existed {
			s.cards[c.TripID] = &prior
		} else {
			delete(s.cards, c.TripID)
		}
		return nil, persistError(err)
	}

	snapshot := stored
	s.sink.Publish(Event{Type: EventCardRestored, Card: &snapshot})
	return &snapshot, nil
}

// ClearCompleted deletes every card in the Bundle Completed stage and emits a
// single payload-free clear-completed event. Observers drop matching cards
// from their own caches.
func (s *Store) ClearCompleted() (int, *StoreError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]*Card)
	for tid, card := range s.cards {
		if card.CurrentBucket == BucketCompleted {
			removed[tid] = card
			delete(s.cards, tid)
		}
	}

	if err := s.persist(); err != nil {
		for tid, card := range removed {
			s.cards[tid] = card
		}
		return 0, persistError(err)
	}

	s.sink.Publish(Event{Type: EventClearCompleted})
	return len(removed), nil
}

// ListAll returns a copy of every card. Order is not meaningful; consumers
// sort by ship date for display.
func (s *Store) ListAll() []Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Card, 0, len(s.cards))
	for _, card := range s.cards {
		out = append(out, *card)
	}
	return out
}

// Snapshot returns a copy of the full mapping, keyed by trip ID.
func (s *Store) Snapshot() map[string]Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Card, len(s.cards))
	for tid, card := range s.cards {
		out[tid] = *card
	}
	return out
}

// rollback restores previously staged entries after a failed persist. Caller
// must hold the mutex.
func (s *Store) rollback(undo map[string]*Card) {
	for tid, prior := range undo {
		if prior == nil {
			delete(s.cards, tid)
		} else {
			restored := *prior
			s.cards[tid] = &restored
		}
	}
}
