package repository

import (
	"context"
	"sync"
	"time"

	"petsitting/internal/domain"
	"petsitting/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSessionRepository serves from primary and switches to fallback when primary errors.
// While down, primary is probed again after delays taken from the retry policy.
type FailoverSessionRepository struct {
	primary  domain.SessionRepository
	fallback domain.SessionRepository
	logger   *zerolog.Logger
	policy   RetryPolicy
	now      func() time.Time

	mu        sync.Mutex
	down      bool
	attempts  int
	nextProbe time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		policy:   DefaultRecoveryPolicy,
		now:      time.Now,
	}
}

// WithRecoveryPolicy overrides the probe spacing.
func (r *FailoverSessionRepository) WithRecoveryPolicy(p RetryPolicy) *FailoverSessionRepository {
	r.policy = p
	return r
}

// Degraded reports whether calls are currently served by the fallback.
func (r *FailoverSessionRepository) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.down
}

func (r *FailoverSessionRepository) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.down || !r.now().Before(r.nextProbe)
}

func (r *FailoverSessionRepository) primaryFailed(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.down {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary session repository failed, falling back to memory")
		r.down = true
		r.attempts = 0
	}
	r.attempts++
	r.nextProbe = r.now().Add(r.policy.NextDelay(r.attempts))
}

func (r *FailoverSessionRepository) primaryOK() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		r.logger.Info().Int("attempts", r.attempts).Msg("Primary session repository recovered")
	}
	r.down = false
	r.attempts = 0
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, chatID)
		if err == nil {
			r.primaryOK()
			return session, nil
		}
		r.primaryFailed("get_session", err)
	}
	return r.fallback.GetSession(ctx, chatID)
}

func (r *FailoverSessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.SetSession(ctx, session)
		if err == nil {
			r.primaryOK()
			return nil
		}
		r.primaryFailed("set_session", err)
	}
	return r.fallback.SetSession(ctx, session)
}

func (r *FailoverSessionRepository) ClearSession(ctx context.Context, chatID int64) error {
	// Чистим оба хранилища, чтобы сессия не ожила после восстановления Redis
	_ = r.fallback.ClearSession(ctx, chatID)
	if r.usePrimary() {
		err := r.primary.ClearSession(ctx, chatID)
		if err == nil {
			r.primaryOK()
			return nil
		}
		r.primaryFailed("clear_session", err)
	}
	return nil
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, chatID, limit, window)
		if err == nil {
			r.primaryOK()
			return allowed, nil
		}
		r.primaryFailed("rate_limit", err)
	}
	return r.fallback.CheckRateLimit(ctx, chatID, limit, window)
}
