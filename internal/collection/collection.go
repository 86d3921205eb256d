// Package collection keeps the list of bookings a viewer sees in one role and reconciles it
// with the backend's answers to status changes.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"petsitting/internal/domain"
	"petsitting/internal/events"
	"petsitting/internal/gateway"
	"petsitting/internal/lifecycle"
	"petsitting/internal/logging"
	"petsitting/internal/metrics"
	"petsitting/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrBookingNotFound    = errors.New("booking is not in the list")
	ErrTransitionInFlight = errors.New("transition already in progress for this booking")
)

// View is a point-in-time copy of a collection's state, safe to render while the
// collection keeps changing.
type View struct {
	Role         models.Role
	Bookings     []models.Booking
	Loading      bool
	Loaded       bool
	Err          error // page-level load failure
	ActionErr    error // last failed transition
	Notification string
	InFlight     map[int64]bool
}

// Collection owns the bookings of one session in one role. It never shares its list.
type Collection struct {
	role    models.Role
	session models.Session
	gateway domain.BookingGateway
	events  domain.EventPublisher
	logger  *zerolog.Logger

	mu           sync.Mutex
	bookings     []models.Booking
	loading      bool
	loaded       bool
	loadSeq      uint64
	loadErr      error
	actionErr    error
	notification string
	inFlight     map[int64]struct{}
}

// Option configures a Collection.
type Option func(*Collection)

// WithEvents publishes a lifecycle event after every applied transition.
func WithEvents(publisher domain.EventPublisher) Option {
	return func(c *Collection) { c.events = publisher }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Collection) { c.logger = logger }
}

// New creates an empty collection for role. session is attached to every backend call.
func New(role models.Role, session models.Session, gw domain.BookingGateway, opts ...Option) *Collection {
	c := &Collection{
		role:     role,
		session:  session,
		gateway:  gw,
		inFlight: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		nop := zerolog.Nop()
		c.logger = &nop
	}
	return c
}

// Role returns the role the collection was created for.
func (c *Collection) Role() models.Role {
	return c.role
}

// Load replaces the list with the backend's bookings for the collection's role.
// On failure the previous list is dropped and the error is kept as the page state.
// When loads overlap only the most recently started one is applied.
func (c *Collection) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.loadSeq++
	seq := c.loadSeq
	c.mu.Unlock()

	bookings, err := c.gateway.ListBookings(ctx, c.session, c.role)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.loadSeq {
		logging.FromContext(ctx, c.logger).Debug().Str("role", c.role.String()).Msg("stale bookings response dropped")
		return err
	}
	c.loading = false
	c.loaded = true
	if err != nil {
		if !errors.Is(err, gateway.ErrUnauthenticated) && !errors.Is(err, gateway.ErrFetchFailure) {
			err = fmt.Errorf("%w: %w", gateway.ErrFetchFailure, err)
		}
		c.bookings = nil
		c.loadErr = err
		logging.FromContext(ctx, c.logger).Warn().Err(err).Str("role", c.role.String()).Msg("load bookings failed")
		return err
	}

	for i := range bookings {
		if verr := bookings[i].Validate(); verr != nil {
			logging.FromContext(ctx, c.logger).Warn().Err(verr).Msg("backend returned inconsistent booking")
		}
	}
	c.bookings = append([]models.Booking(nil), bookings...)
	c.loadErr = nil
	c.actionErr = nil
	return nil
}

// RequestTransition asks the backend to move booking id to target. Only one request per
// booking may be outstanding; requests for different bookings run independently.
func (c *Collection) RequestTransition(ctx context.Context, id int64, target models.Status) error {
	log := logging.FromContext(ctx, c.logger)

	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	if _, busy := c.inFlight[id]; busy {
		c.mu.Unlock()
		return fmt.Errorf("booking %d: %w", id, ErrTransitionInFlight)
	}
	previous := c.bookings[idx].Status
	if err := lifecycle.ValidateTransition(previous, target, c.role); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("booking %d: %w", id, err)
	}
	c.inFlight[id] = struct{}{}
	c.mu.Unlock()

	updated, err := c.gateway.UpdateStatus(ctx, c.session, id, target)
	if err == nil && updated == nil {
		err = fmt.Errorf("booking %d: %w: empty response", id, gateway.ErrTransitionRejected)
	}

	c.mu.Lock()
	delete(c.inFlight, id)
	if err != nil {
		c.actionErr = err
		c.notification = ""
		c.mu.Unlock()
		log.Warn().Err(err).Int64("booking_id", id).Str("target", target.String()).Msg("transition failed")
		return err
	}

	applied := *updated
	if idx = c.indexOf(id); idx >= 0 {
		c.bookings[idx] = applied
	}
	c.actionErr = nil
	c.notification = notificationText(applied, c.role)
	c.mu.Unlock()

	metrics.IncTransition(c.role.String(), applied.Status.String())
	log.Info().
		Int64("booking_id", id).
		Str("role", c.role.String()).
		Str("from", previous.String()).
		Str("to", applied.Status.String()).
		Msg("booking status changed")

	if eventType, ok := events.TypeForStatus(applied.Status); ok && c.events != nil {
		payload := events.NewStatusChangedPayload(applied, previous, c.role)
		if perr := c.events.PublishJSON(eventType, payload); perr != nil {
			log.Warn().Err(perr).Str("event", eventType).Msg("publish event failed")
		}
	}
	return nil
}

// Find returns a copy of the booking with id.
func (c *Collection) Find(id int64) (models.Booking, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(id); idx >= 0 {
		return c.bookings[idx], true
	}
	return models.Booking{}, false
}

// IsInFlight reports whether a transition for id is outstanding.
func (c *Collection) IsInFlight(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[id]
	return ok
}

// Snapshot copies the current state.
func (c *Collection) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Role:         c.role,
		Bookings:     append([]models.Booking(nil), c.bookings...),
		Loading:      c.loading,
		Loaded:       c.loaded,
		Err:          c.loadErr,
		ActionErr:    c.actionErr,
		Notification: c.notification,
		InFlight:     make(map[int64]bool, len(c.inFlight)),
	}
	for id := range c.inFlight {
		v.InFlight[id] = true
	}
	return v
}

// DismissNotification clears the transient notification and the last transition error.
func (c *Collection) DismissNotification() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notification = ""
	c.actionErr = nil
}

// caller holds c.mu
func (c *Collection) indexOf(id int64) int {
	for i := range c.bookings {
		if c.bookings[i].ID == id {
			return i
		}
	}
	return -1
}

func notificationText(b models.Booking, actor models.Role) string {
	other := b.Counterpart(actor)
	if other == "" {
		return fmt.Sprintf("The booking status has been changed to %q.", b.Status)
	}
	return fmt.Sprintf("The booking status has been changed to %q and the notification has been sent to %s.", b.Status, other)
}
