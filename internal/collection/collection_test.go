package collection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"petsitting/internal/events"
	"petsitting/internal/gateway"
	"petsitting/internal/lifecycle"
	"petsitting/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ListBookings(ctx context.Context, s models.Session, role models.Role) ([]models.Booking, error) {
	args := m.Called(ctx, s, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockGateway) GetBooking(ctx context.Context, s models.Session, id int64) (*models.Booking, error) {
	args := m.Called(ctx, s, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockGateway) UpdateStatus(ctx context.Context, s models.Session, id int64, target models.Status) (*models.Booking, error) {
	args := m.Called(ctx, s, id, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	last   events.StatusChangedPayload
}

func (p *recordingPublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.last = payload.(events.StatusChangedPayload)
	return nil
}

var testSession = models.Session{ChatID: 42, Token: "token"}

func booking(id int64, status models.Status) models.Booking {
	return models.Booking{
		ID:           id,
		Status:       status,
		ServiceTitle: "Overnight stay",
		PetName:      "Rex",
		Price:        decimal.RequireFromString("40.00"),
		StartDate:    models.NewDate(2025, 6, 1),
		EndDate:      models.NewDate(2025, 6, 2),
		OwnerID:      10,
		SitterID:     20,
		OwnerName:    "Olga",
		SitterName:   "Sam",
	}
}

func loaded(t *testing.T, role models.Role, gw *mockGateway, list []models.Booking, opts ...Option) *Collection {
	t.Helper()
	gw.On("ListBookings", mock.Anything, testSession, role).Return(list, nil).Once()
	c := New(role, testSession, gw, opts...)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestLoad(t *testing.T) {
	gw := new(mockGateway)
	list := []models.Booking{booking(1, models.StatusPending), booking(2, models.StatusConfirmed)}
	c := loaded(t, models.RoleSitter, gw, list)

	view := c.Snapshot()
	assert.False(t, view.Loading)
	assert.True(t, view.Loaded)
	assert.NoError(t, view.Err)
	assert.Equal(t, list, view.Bookings)
	assert.Equal(t, models.RoleSitter, view.Role)
	gw.AssertExpectations(t)
}

func TestLoadFailure(t *testing.T) {
	gw := new(mockGateway)
	gw.On("ListBookings", mock.Anything, testSession, models.RoleOwner).
		Return(nil, errors.New("connection reset")).Once()

	c := New(models.RoleOwner, testSession, gw)
	err := c.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrFetchFailure)

	view := c.Snapshot()
	assert.False(t, view.Loading)
	assert.ErrorIs(t, view.Err, gateway.ErrFetchFailure)
	assert.Empty(t, view.Bookings)
}

func TestLoadUnauthenticatedKeepsKind(t *testing.T) {
	gw := new(mockGateway)
	gw.On("ListBookings", mock.Anything, testSession, models.RoleOwner).
		Return(nil, gateway.ErrUnauthenticated).Once()

	c := New(models.RoleOwner, testSession, gw)
	err := c.Load(context.Background())
	assert.ErrorIs(t, err, gateway.ErrUnauthenticated)
	assert.NotErrorIs(t, err, gateway.ErrFetchFailure)
}

func TestLoadingFlagDuringFetch(t *testing.T) {
	gw := new(mockGateway)
	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("ListBookings", mock.Anything, testSession, models.RoleOwner).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]models.Booking{}, nil).Once()

	c := New(models.RoleOwner, testSession, gw)
	done := make(chan error)
	go func() { done <- c.Load(context.Background()) }()

	<-started
	assert.True(t, c.Snapshot().Loading)
	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Snapshot().Loading)
}

func TestOverlappingLoadsKeepNewest(t *testing.T) {
	gw := new(mockGateway)
	started := make(chan struct{})
	release := make(chan struct{})
	older := []models.Booking{booking(1, models.StatusPending)}
	newer := []models.Booking{booking(1, models.StatusConfirmed), booking(2, models.StatusPending)}

	gw.On("ListBookings", mock.Anything, testSession, models.RoleSitter).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(older, nil).Once()
	gw.On("ListBookings", mock.Anything, testSession, models.RoleSitter).
		Return(newer, nil).Once()

	c := New(models.RoleSitter, testSession, gw)
	done := make(chan error)
	go func() { done <- c.Load(context.Background()) }()
	<-started

	require.NoError(t, c.Load(context.Background()))
	close(release)
	require.NoError(t, <-done)

	view := c.Snapshot()
	assert.False(t, view.Loading)
	assert.Equal(t, newer, view.Bookings)
	gw.AssertExpectations(t)
}

func TestWithoutLoggerDoesNotPanic(t *testing.T) {
	gw := new(mockGateway)
	gw.On("ListBookings", mock.Anything, testSession, models.RoleSitter).
		Return(nil, errors.New("connection reset")).Once()
	gw.On("ListBookings", mock.Anything, testSession, models.RoleSitter).
		Return([]models.Booking{booking(1, models.StatusPending), booking(2, models.StatusPending)}, nil).Once()

	confirmed := booking(1, models.StatusConfirmed)
	gw.On("UpdateStatus", mock.Anything, testSession, int64(1), models.StatusConfirmed).
		Return(&confirmed, nil).Once()
	gw.On("UpdateStatus", mock.Anything, testSession, int64(2), models.StatusRejected).
		Return(nil, gateway.ErrTransitionRejected).Once()

	c := New(models.RoleSitter, testSession, gw)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		assert.Error(t, c.Load(ctx))
		assert.NoError(t, c.Load(ctx))
		assert.NoError(t, c.RequestTransition(ctx, 1, models.StatusConfirmed))
		assert.ErrorIs(t, c.RequestTransition(ctx, 2, models.StatusRejected), gateway.ErrTransitionRejected)
	})
	gw.AssertExpectations(t)
}

func TestConfirmRoundTrip(t *testing.T) {
	gw := new(mockGateway)
	pub := &recordingPublisher{}
	c := loaded(t, models.RoleSitter, gw, []models.Booking{
		booking(1, models.StatusPending),
		booking(5, models.StatusPending),
	}, WithEvents(pub))

	canonical := booking(1, models.StatusConfirmed)
	canonical.Price = decimal.RequireFromString("45.00")
	gw.On("UpdateStatus", mock.Anything, testSession, int64(1), models.StatusConfirmed).
		Return(&canonical, nil).Once()

	require.NoError(t, c.RequestTransition(context.Background(), 1, models.StatusConfirmed))

	view := c.Snapshot()
	require.Len(t, view.Bookings, 2)
	assert.Equal(t, canonical, view.Bookings[0])
	assert.Equal(t, booking(5, models.StatusPending), view.Bookings[1])
	assert.Empty(t, view.InFlight)
	assert.NoError(t, view.ActionErr)
	assert.Contains(t, view.Notification, `"confirmed"`)
	assert.Contains(t, view.Notification, "Olga")

	assert.Equal(t, []string{events.EventBookingConfirmed}, pub.events)
	assert.Equal(t, models.StatusPending, pub.last.PreviousStatus)
	assert.Equal(t, models.RoleSitter, pub.last.ActorRole)

	assert.Empty(t, lifecycle.LegalTransitions(view.Bookings[0].Status, models.RoleSitter))
	gw.AssertExpectations(t)
}

func TestOwnerCancelNotifiesSitter(t *testing.T) {
	gw := new(mockGateway)
	c := loaded(t, models.RoleOwner, gw, []models.Booking{booking(4, models.StatusPending)})

	cancelled := booking(4, models.StatusCancelled)
	gw.On("UpdateStatus", mock.Anything, testSession, int64(4), models.StatusCancelled).
		Return(&cancelled, nil).Once()

	require.NoError(t, c.RequestTransition(context.Background(), 4, models.StatusCancelled))
	assert.Contains(t, c.Snapshot().Notification, "Sam")

	c.DismissNotification()
	assert.Empty(t, c.Snapshot().Notification)
}

func TestIllegalTransitionMakesNoCall(t *testing.T) {
	tests := []struct {
		name   string
		role   models.Role
		status models.Status
		target models.Status
	}{
		{"owner confirms", models.RoleOwner, models.StatusPending, models.StatusConfirmed},
		{"sitter cancels", models.RoleSitter, models.StatusPending, models.StatusCancelled},
		{"owner cancels confirmed", models.RoleOwner, models.StatusConfirmed, models.StatusCancelled},
		{"sitter rejects confirmed", models.RoleSitter, models.StatusConfirmed, models.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockGateway)
			c := loaded(t, tt.role, gw, []models.Booking{booking(2, tt.status)})

			err := c.RequestTransition(context.Background(), 2, tt.target)
			assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
			gw.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, tt.status, c.Snapshot().Bookings[0].Status)
		})
	}
}

func TestUnknownBooking(t *testing.T) {
	gw := new(mockGateway)
	c := loaded(t, models.RoleSitter, gw, []models.Booking{booking(1, models.StatusPending)})

	err := c.RequestTransition(context.Background(), 99, models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	gw.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConflictLeavesListUnchanged(t *testing.T) {
	gw := new(mockGateway)
	original := booking(3, models.StatusPending)
	c := loaded(t, models.RoleOwner, gw, []models.Booking{original})

	conflict := &gateway.StatusError{Code: 409, Body: "booking already confirmed"}
	rejected := errors.Join(gateway.ErrTransitionRejected, conflict)
	gw.On("UpdateStatus", mock.Anything, testSession, int64(3), models.StatusCancelled).
		Return(nil, rejected).Twice()

	err := c.RequestTransition(context.Background(), 3, models.StatusCancelled)
	assert.ErrorIs(t, err, gateway.ErrTransitionRejected)

	view := c.Snapshot()
	assert.Equal(t, []models.Booking{original}, view.Bookings)
	assert.ErrorIs(t, view.ActionErr, gateway.ErrTransitionRejected)
	assert.Empty(t, view.Notification)
	assert.False(t, c.IsInFlight(3))

	// the control stays actionable
	err = c.RequestTransition(context.Background(), 3, models.StatusCancelled)
	assert.ErrorIs(t, err, gateway.ErrTransitionRejected)
	gw.AssertNumberOfCalls(t, "UpdateStatus", 2)
}

func TestDoubleSubmitIssuesOneCall(t *testing.T) {
	gw := new(mockGateway)
	c := loaded(t, models.RoleSitter, gw, []models.Booking{booking(1, models.StatusPending)})

	started := make(chan struct{})
	release := make(chan struct{})
	confirmed := booking(1, models.StatusConfirmed)
	gw.On("UpdateStatus", mock.Anything, testSession, int64(1), models.StatusConfirmed).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&confirmed, nil).Once()

	first := make(chan error)
	go func() { first <- c.RequestTransition(context.Background(), 1, models.StatusConfirmed) }()

	<-started
	assert.True(t, c.IsInFlight(1))
	assert.True(t, c.Snapshot().InFlight[1])

	err := c.RequestTransition(context.Background(), 1, models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	close(release)
	require.NoError(t, <-first)
	gw.AssertNumberOfCalls(t, "UpdateStatus", 1)
	assert.False(t, c.IsInFlight(1))
}

func TestIndependentBookingsRunConcurrently(t *testing.T) {
	gw := new(mockGateway)
	c := loaded(t, models.RoleSitter, gw, []models.Booking{
		booking(1, models.StatusPending),
		booking(2, models.StatusPending),
	})

	started := make(chan struct{})
	release := make(chan struct{})
	confirmed := booking(1, models.StatusConfirmed)
	rejected := booking(2, models.StatusRejected)
	gw.On("UpdateStatus", mock.Anything, testSession, int64(1), models.StatusConfirmed).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&confirmed, nil).Once()
	gw.On("UpdateStatus", mock.Anything, testSession, int64(2), models.StatusRejected).
		Return(&rejected, nil).Once()

	first := make(chan error)
	go func() { first <- c.RequestTransition(context.Background(), 1, models.StatusConfirmed) }()
	<-started

	require.NoError(t, c.RequestTransition(context.Background(), 2, models.StatusRejected))
	got, ok := c.Find(2)
	require.True(t, ok)
	assert.Equal(t, models.StatusRejected, got.Status)

	close(release)
	require.NoError(t, <-first)
	got, _ = c.Find(1)
	assert.Equal(t, models.StatusConfirmed, got.Status)
}

func TestResultAppliedAfterReload(t *testing.T) {
	gw := new(mockGateway)
	c := loaded(t, models.RoleSitter, gw, []models.Booking{booking(1, models.StatusPending)})

	started := make(chan struct{})
	release := make(chan struct{})
	confirmed := booking(1, models.StatusConfirmed)
	gw.On("UpdateStatus", mock.Anything, testSession, int64(1), models.StatusConfirmed).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&confirmed, nil).Once()

	first := make(chan error)
	go func() { first <- c.RequestTransition(context.Background(), 1, models.StatusConfirmed) }()
	<-started

	// the booking disappeared from the list while the request was outstanding
	gw.On("ListBookings", mock.Anything, testSession, models.RoleSitter).
		Return([]models.Booking{booking(7, models.StatusPending)}, nil).Once()
	require.NoError(t, c.Load(context.Background()))

	close(release)
	require.NoError(t, <-first)

	view := c.Snapshot()
	require.Len(t, view.Bookings, 1)
	assert.Equal(t, int64(7), view.Bookings[0].ID)
}
