package board

// EventType names the push-channel notifications emitted by the store.
type EventType string

const (
	EventCardUpdated    EventType = "card-updated"
	EventClearCompleted EventType = "clear-completed"
	EventCardRestored   EventType = "card-restored"
)

// Event is one change notification. Card is nil for clear-completed, which
// carries no payload; observers re-filter their own cache by bucket.
type Event struct {
	Type EventType `json:"event"`
	Card *Card     `json:"card,omitempty"`
}

// EventSink receives change notifications after a mutation has been persisted.
// Delivery beyond the sink is best-effort; the store never waits on it.
type EventSink interface {
	Publish(Event)
}

// NopSink discards every event. Useful for tests and offline tooling.
type NopSink struct{}

func (NopSink) Publish(Event) {}
