package repository

import (
	"context"
	"sync"
	"time"

	"petsitting/internal/models"
)

// MemorySessionRepository is the in-process fallback for RedisSessionRepository.
type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
	now        func() time.Time

	mu sync.Mutex // serialises rate limit updates
}

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time // zero means no expiry
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	val, ok := r.sessions.Load(chatID)
	if !ok {
		return nil, nil
	}
	entry := val.(sessionEntry)
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		r.sessions.Delete(chatID)
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (r *MemorySessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	now := r.now()
	ttl := sessionTTL(session, r.ttl, now)
	if ttl < 0 {
		r.sessions.Delete(session.ChatID)
		return nil
	}

	entry := sessionEntry{session: *session}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	r.sessions.Store(session.ChatID, entry)
	return nil
}

func (r *MemorySessionRepository) ClearSession(ctx context.Context, chatID int64) error {
	r.sessions.Delete(chatID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	val, ok := r.rateLimits.Load(chatID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(chatID, entry)
	return entry.count <= limit, nil
}
