package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"petsitting/internal/domain"
	"petsitting/internal/gateway"
	"petsitting/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var (
	ErrEmptyToken   = errors.New("token is empty")
	ErrTokenExpired = errors.New("token has already expired")
)

// SessionService is the single place that reads and writes the credential a chat acts with.
// The token itself is issued and verified by the backend; only its expiry is read here.
type SessionService struct {
	repo   domain.SessionRepository
	logger *zerolog.Logger
	parser *jwt.Parser
	now    func() time.Time
}

func NewSessionService(repo domain.SessionRepository, logger *zerolog.Logger) *SessionService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SessionService{
		repo:   repo,
		logger: logger,
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

// Login stores token as the chat's session.
func (s *SessionService) Login(ctx context.Context, chatID int64, token string) (*models.Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrEmptyToken
	}

	now := s.now()
	session := &models.Session{
		ChatID:    chatID,
		Token:     token,
		ExpiresAt: s.tokenExpiry(token),
		CreatedAt: now,
	}
	if !session.Valid(now) {
		return nil, ErrTokenExpired
	}

	if err := s.repo.SetSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to store session")
		return nil, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Opaque tokens and tokens
// without exp have no client-side expiry.
func (s *SessionService) tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := s.parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}

// Current returns the chat's session or an error wrapping gateway.ErrUnauthenticated when
// there is none or it has expired.
func (s *SessionService) Current(ctx context.Context, chatID int64) (models.Session, error) {
	session, err := s.repo.GetSession(ctx, chatID)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to get session")
		return models.Session{}, err
	}
	if session == nil {
		return models.Session{}, fmt.Errorf("%w: not logged in", gateway.ErrUnauthenticated)
	}
	if !session.Valid(s.now()) {
		if err := s.repo.ClearSession(ctx, chatID); err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to clear expired session")
		}
		return models.Session{}, fmt.Errorf("%w: session expired", gateway.ErrUnauthenticated)
	}
	return *session, nil
}

func (s *SessionService) Logout(ctx context.Context, chatID int64) error {
	return s.repo.ClearSession(ctx, chatID)
}

func (s *SessionService) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	return s.repo.CheckRateLimit(ctx, chatID, limit, window)
}
