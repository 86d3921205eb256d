package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"petsitting/internal/domain"
	"petsitting/internal/models"
)

// Dashboard is the tabbed view over both roles of one account. The two collections are
// independent: a change made through one tab shows up in the other only after it reloads.
type Dashboard struct {
	mu     sync.Mutex
	active models.Role
	tabs   map[models.Role]*Collection
}

// NewDashboard builds owner and sitter collections for session. The owner tab is active.
func NewDashboard(session models.Session, gw domain.BookingGateway, opts ...Option) *Dashboard {
	d := &Dashboard{
		active: models.RoleOwner,
		tabs:   make(map[models.Role]*Collection, len(models.Roles)),
	}
	for _, role := range models.Roles {
		d.tabs[role] = New(role, session, gw, opts...)
	}
	return d
}

// SwitchTab makes role the active tab.
func (d *Dashboard) SwitchTab(role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownRole, role)
	}
	d.mu.Lock()
	d.active = role
	d.mu.Unlock()
	return nil
}

// Active returns the role of the active tab.
func (d *Dashboard) Active() models.Role {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Collection returns the collection behind role, or nil for an unknown role.
func (d *Dashboard) Collection(role models.Role) *Collection {
	return d.tabs[role]
}

// LoadAll loads every tab. A failing tab keeps its own error state and does not stop the
// others from loading.
func (d *Dashboard) LoadAll(ctx context.Context) error {
	var errs []error
	for _, role := range models.Roles {
		if err := d.tabs[role].Load(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", role, err))
		}
	}
	return errors.Join(errs...)
}

// RequestTransition forwards to the collection of role.
func (d *Dashboard) RequestTransition(ctx context.Context, role models.Role, id int64, target models.Status) error {
	c := d.Collection(role)
	if c == nil {
		return fmt.Errorf("%w: %q", models.ErrUnknownRole, role)
	}
	return c.RequestTransition(ctx, id, target)
}
