// Package controls renders the status actions a viewer may take on one booking.
// It holds no state: every call derives the action set from the booking's current status.
package controls

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"petsitting/internal/lifecycle"
	"petsitting/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Control is one action button.
type Control struct {
	Label  string
	Target models.Status
}

// TransitionFunc is called when a control is activated.
type TransitionFunc func(ctx context.Context, bookingID int64, target models.Status) error

// ErrNoSuchControl is returned by Activate for a target that has no rendered control.
var ErrNoSuchControl = errors.New("control is not offered for this booking")

var actionLabels = map[models.Status]string{
	models.StatusCancelled: "Cancel",
	models.StatusConfirmed: "Confirm",
	models.StatusRejected:  "Reject",
}

// ActionLabel returns the verb shown on the button that requests target.
func ActionLabel(target models.Status) string {
	if label, ok := actionLabels[target]; ok {
		return label
	}
	return string(target)
}

// Controls returns exactly one control per legal transition, in policy order.
func Controls(booking models.Booking, role models.Role) []Control {
	targets := lifecycle.LegalTransitions(booking.Status, role)
	out := make([]Control, 0, len(targets))
	for _, target := range targets {
		out = append(out, Control{Label: ActionLabel(target), Target: target})
	}
	return out
}

// Activate forwards a click on the target control to fn. Targets that are not rendered for
// this booking are refused without calling fn.
func Activate(ctx context.Context, booking models.Booking, role models.Role, target models.Status, fn TransitionFunc) error {
	for _, c := range Controls(booking, role) {
		if c.Target == target {
			return fn(ctx, booking.ID, target)
		}
	}
	return fmt.Errorf("%w: %s on booking %d", ErrNoSuchControl, target, booking.ID)
}

const transitionPrefix = "tr:"

// Action is a decoded control click.
type Action struct {
	Role      models.Role
	BookingID int64
	Target    models.Status
}

// CallbackData encodes a control click as Telegram callback data: tr:<role>:<id>:<status>.
func CallbackData(role models.Role, bookingID int64, target models.Status) string {
	return fmt.Sprintf("%s%s:%d:%s", transitionPrefix, role, bookingID, target)
}

// IsTransitionCallback reports whether data came from a status control button.
func IsTransitionCallback(data string) bool {
	return strings.HasPrefix(data, transitionPrefix)
}

// ParseCallback decodes data produced by CallbackData.
func ParseCallback(data string) (Action, error) {
	if !IsTransitionCallback(data) {
		return Action{}, fmt.Errorf("not a transition callback: %q", data)
	}
	parts := strings.Split(strings.TrimPrefix(data, transitionPrefix), ":")
	if len(parts) != 3 {
		return Action{}, fmt.Errorf("malformed transition callback: %q", data)
	}

	role, err := models.ParseRole(parts[0])
	if err != nil {
		return Action{}, err
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Action{}, fmt.Errorf("invalid booking id in callback %q: %w", data, err)
	}
	target, err := models.ParseStatus(parts[2])
	if err != nil {
		return Action{}, err
	}

	return Action{Role: role, BookingID: id, Target: target}, nil
}

// KeyboardRow returns the inline buttons for booking, or nil when no action is legal.
func KeyboardRow(booking models.Booking, role models.Role) []tgbotapi.InlineKeyboardButton {
	cs := Controls(booking, role)
	if len(cs) == 0 {
		return nil
	}
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(cs))
	for _, c := range cs {
		label := fmt.Sprintf("%s #%d", c.Label, booking.ID)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, CallbackData(role, booking.ID, c.Target)))
	}
	return row
}

// Keyboard wraps KeyboardRow in a markup. Nil when there is nothing to render.
func Keyboard(booking models.Booking, role models.Role) *tgbotapi.InlineKeyboardMarkup {
	row := KeyboardRow(booking, role)
	if row == nil {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(row)
	return &markup
}
