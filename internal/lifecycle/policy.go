// Package lifecycle holds the booking state machine: which status each party may move a
// booking to. Every surface that offers status actions must ask this package.
package lifecycle

import (
	"errors"
	"fmt"

	"petsitting/internal/models"
)

// ErrIllegalTransition marks a status change the table does not allow.
var ErrIllegalTransition = errors.New("transition not allowed")

// transitions maps role -> current status -> allowed targets. Statuses without an entry
// are terminal for that role.
var transitions = map[models.Role]map[models.Status][]models.Status{
	models.RoleOwner: {
		models.StatusPending: {models.StatusCancelled},
	},
	models.RoleSitter: {
		models.StatusPending: {models.StatusConfirmed, models.StatusRejected},
	},
}

// LegalTransitions returns the statuses role may request for a booking in status.
// The result is a fresh slice; it is empty for terminal or unknown input.
func LegalTransitions(status models.Status, role models.Role) []models.Status {
	allowed := transitions[role][status]
	out := make([]models.Status, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether role may move a booking from status to target.
func CanTransition(status, target models.Status, role models.Role) bool {
	for _, s := range transitions[role][status] {
		if s == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error wrapping ErrIllegalTransition if role may not move a
// booking from status to target.
func ValidateTransition(status, target models.Status, role models.Role) error {
	if !CanTransition(status, target, role) {
		return fmt.Errorf("%w: %s cannot move %s booking to %s", ErrIllegalTransition, role, status, target)
	}
	return nil
}
