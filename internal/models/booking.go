package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
)

// Booking is a reservation between a pet owner and a sitter as the backend returns it.
// Only Status ever changes during the lifetime of a booking.
type Booking struct {
	ID           int64           `json:"id"`
	Status       Status          `json:"status"`
	ServiceTitle string          `json:"serviceTitle"`
	PetName      string          `json:"petName"`
	Price        decimal.Decimal `json:"price"`
	StartDate    Date            `json:"startDate"`
	EndDate      Date            `json:"endDate"`
	OwnerID      int64           `json:"ownerId"`
	SitterID     int64           `json:"sitterId"`
	OwnerName    string          `json:"ownerName"`
	SitterName   string          `json:"sitterName"`
}

var (
	ErrInvalidDateRange = errors.New("start date is after end date")
	ErrSameParticipant  = errors.New("owner and sitter must be different accounts")
	ErrNegativePrice    = errors.New("price must not be negative")
	ErrUnknownStatus    = errors.New("unknown booking status")
	ErrUnknownRole      = errors.New("unknown role")
)

// Validate checks the record invariants the client relies on.
func (b *Booking) Validate() error {
	if !b.Status.Valid() {
		return fmt.Errorf("booking %d: %w: %q", b.ID, ErrUnknownStatus, b.Status)
	}
	if !b.StartDate.IsZero() && !b.EndDate.IsZero() && b.StartDate.After(b.EndDate.Time) {
		return fmt.Errorf("booking %d: %w", b.ID, ErrInvalidDateRange)
	}
	if b.OwnerID == b.SitterID {
		return fmt.Errorf("booking %d: %w", b.ID, ErrSameParticipant)
	}
	if b.Price.IsNegative() {
		return fmt.Errorf("booking %d: %w", b.ID, ErrNegativePrice)
	}
	return nil
}

// Counterpart returns the display name of the participant on the other side of role.
func (b *Booking) Counterpart(role Role) string {
	switch role {
	case RoleOwner:
		return b.SitterName
	case RoleSitter:
		return b.OwnerName
	default:
		return ""
	}
}

// Muted reports whether the booking is closed without taking place.
func (b *Booking) Muted() bool {
	return b.Status == StatusCancelled || b.Status == StatusRejected
}

// ReviewAvailable reports whether the stay is over and the booking was not called off.
func (b *Booking) ReviewAvailable(at time.Time) bool {
	if b.Muted() || b.EndDate.IsZero() {
		return false
	}
	// Календарный день окончания сравниваем в часовом поясе at
	y, m, d := b.EndDate.Date()
	lastDay := time.Date(y, m, d, 0, 0, 0, 0, at.Location())
	return lastDay.Before(now.With(at).BeginningOfDay())
}
