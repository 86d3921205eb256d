package bot

import (
	"errors"

	"petsitting/internal/collection"
	"petsitting/internal/gateway"
	"petsitting/internal/lifecycle"
	"petsitting/internal/models"
	"petsitting/internal/service"
)

// errorMessage maps an operation error to the text shown next to the list.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, gateway.ErrUnauthenticated):
		return "🔒 Your session is missing or has expired. Send /login <token> to sign in again."
	case errors.Is(err, collection.ErrTransitionInFlight):
		return "⏳ This booking is already being updated. Please wait."
	case errors.Is(err, collection.ErrBookingNotFound):
		return "⚠️ This booking is no longer in the list. Press Refresh to reload it."
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return "⚠️ This action is not available for the booking any more."
	case errors.Is(err, gateway.ErrTransitionRejected):
		return "⚠️ The booking status could not be changed. It may have been updated by the other participant."
	case errors.Is(err, gateway.ErrNetworkFailure):
		return "📡 Could not reach the booking service. Please try again."
	case errors.Is(err, gateway.ErrFetchFailure):
		return "⚠️ Failed to load bookings. Press Refresh to try again."
	case errors.Is(err, service.ErrEmptyToken):
		return "Usage: /login <token>"
	case errors.Is(err, service.ErrTokenExpired):
		return "🔒 This token has already expired. Please get a new one."
	case errors.Is(err, models.ErrUnknownRole):
		return "⚠️ Unknown list."
	}

	// Default error message
	return "❌ Something went wrong while processing your request. Please try again later."
}
