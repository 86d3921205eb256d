package events

import (
	"encoding/json"
	"sync"
	"time"

	"petsitting/internal/models"
)

const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingRejected  = "booking_rejected"
	EventBookingCancelled = "booking_cancelled"
)

// TypeForStatus maps the status a booking moved to onto its event type.
func TypeForStatus(status models.Status) (string, bool) {
	switch status {
	case models.StatusConfirmed:
		return EventBookingConfirmed, true
	case models.StatusRejected:
		return EventBookingRejected, true
	case models.StatusCancelled:
		return EventBookingCancelled, true
	default:
		return "", false
	}
}

// StatusChangedPayload describes a booking status change for event consumers.
type StatusChangedPayload struct {
	BookingID      int64         `json:"booking_id"`
	Status         models.Status `json:"status"`
	PreviousStatus models.Status `json:"previous_status"`
	ActorRole      models.Role   `json:"actor_role"`
	ServiceTitle   string        `json:"service_title"`
	PetName        string        `json:"pet_name"`
	OwnerName      string        `json:"owner_name"`
	SitterName     string        `json:"sitter_name"`
	NotifiedName   string        `json:"notified_name,omitempty"`
	ChangedAt      time.Time     `json:"changed_at"`
}

// NewStatusChangedPayload builds the payload for a canonical booking returned after a
// transition requested by actor.
func NewStatusChangedPayload(booking models.Booking, previous models.Status, actor models.Role) StatusChangedPayload {
	return StatusChangedPayload{
		BookingID:      booking.ID,
		Status:         booking.Status,
		PreviousStatus: previous,
		ActorRole:      actor,
		ServiceTitle:   booking.ServiceTitle,
		PetName:        booking.PetName,
		OwnerName:      booking.OwnerName,
		SitterName:     booking.SitterName,
		NotifiedName:   booking.Counterpart(actor),
		ChangedAt:      time.Now(),
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the event payload into out.
func (e *Event) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type and returns the first handler error.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var firstErr error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
