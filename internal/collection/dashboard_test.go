package collection

import (
	"context"
	"errors"
	"testing"

	"petsitting/internal/gateway"
	"petsitting/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDashboardTabsAreIndependent(t *testing.T) {
	gw := new(mockGateway)
	shared := booking(1, models.StatusPending)
	gw.On("ListBookings", mock.Anything, testSession, models.RoleOwner).
		Return([]models.Booking{shared}, nil).Once()
	gw.On("ListBookings", mock.Anything, testSession, models.RoleSitter).
		Return([]models.Booking{shared}, nil).Once()

	d := NewDashboard(testSession, gw)
	require.NoError(t, d.LoadAll(context.Background()))
	assert.Equal(t, models.RoleOwner, d.Active())

	cancelled := booking(1, models.StatusCancelled)
	gw.On("UpdateStatus", mock.Anything, testSession, int64(1), models.StatusCancelled).
		Return(&cancelled, nil).Once()
	require.NoError(t, d.RequestTransition(context.Background(), models.RoleOwner, 1, models.StatusCancelled))

	owner := d.Collection(models.RoleOwner).Snapshot()
	sitter := d.Collection(models.RoleSitter).Snapshot()
	assert.Equal(t, models.StatusCancelled, owner.Bookings[0].Status)
	assert.Equal(t, models.StatusPending, sitter.Bookings[0].Status)
}

func TestDashboardSwitchTab(t *testing.T) {
	d := NewDashboard(testSession, new(mockGateway))

	require.NoError(t, d.SwitchTab(models.RoleSitter))
	assert.Equal(t, models.RoleSitter, d.Active())

	err := d.SwitchTab(models.Role("admin"))
	assert.ErrorIs(t, err, models.ErrUnknownRole)
	assert.Equal(t, models.RoleSitter, d.Active())
	assert.Nil(t, d.Collection(models.Role("admin")))
}

func TestDashboardLoadAllPartialFailure(t *testing.T) {
	gw := new(mockGateway)
	gw.On("ListBookings", mock.Anything, testSession, models.RoleOwner).
		Return(nil, errors.New("timeout")).Once()
	gw.On("ListBookings", mock.Anything, testSession, models.RoleSitter).
		Return([]models.Booking{booking(2, models.StatusPending)}, nil).Once()

	d := NewDashboard(testSession, gw)
	err := d.LoadAll(context.Background())
	assert.ErrorIs(t, err, gateway.ErrFetchFailure)

	assert.Error(t, d.Collection(models.RoleOwner).Snapshot().Err)
	sitter := d.Collection(models.RoleSitter).Snapshot()
	assert.NoError(t, sitter.Err)
	assert.Len(t, sitter.Bookings, 1)
}

func TestDashboardUnknownRoleTransition(t *testing.T) {
	d := NewDashboard(testSession, new(mockGateway))
	err := d.RequestTransition(context.Background(), models.Role("admin"), 1, models.StatusConfirmed)
	assert.ErrorIs(t, err, models.ErrUnknownRole)
}
