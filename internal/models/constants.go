package models

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every known status, initial state first.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusRejected, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is offered from s.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Role is the side an account takes in a specific booking.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleSitter Role = "sitter"
)

var Roles = []Role{RoleOwner, RoleSitter}

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleSitter
}

// Counterpart returns the opposite role.
func (r Role) Counterpart() Role {
	if r == RoleOwner {
		return RoleSitter
	}
	return RoleOwner
}

func (r Role) String() string { return string(r) }

func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return r, nil
}

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultSessionTTL время жизни сессии в хранилище
	DefaultSessionTTL = 7 * 24 * 60 * 60 // 7 дней в секундах

	// DefaultPaginationSize размер страницы списка заявок
	DefaultPaginationSize = 5

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// DefaultBackendTimeout таймаут запросов к бэкенду
	DefaultBackendTimeout = 10 // секунд

	// DateLayout формат календарной даты в API
	DateLayout = "2006-01-02"
)
