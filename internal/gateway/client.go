package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"petsitting/internal/config"
	"petsitting/internal/metrics"
	"petsitting/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	opListOwner    = "list_as_owner"
	opListSitter   = "list_as_sitter"
	opGetBooking   = "get_booking"
	opUpdateStatus = "update_status"

	maxErrorBody = 512
)

// Client talks to the pet-sitting REST backend on behalf of one session per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zerolog.Logger
	now        func() time.Time
}

// NewClient constructs a client from backend settings. The http.Client timeout is the only
// deadline applied to a request besides the caller's context.
func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = models.DefaultBackendTimeout * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 5
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}
	return c
}

// UseHTTPClient replaces the underlying HTTP client.
func (c *Client) UseHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

type statusRequest struct {
	Status models.Status `json:"status"`
}

// ListBookings fetches every booking where the session's account has the given role,
// in backend order.
func (c *Client) ListBookings(ctx context.Context, session models.Session, role models.Role) ([]models.Booking, error) {
	var path, op string
	switch role {
	case models.RoleOwner:
		path, op = "/api/bookings/as-owner", opListOwner
	case models.RoleSitter:
		path, op = "/api/bookings/as-sitter", opListSitter
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownRole, role)
	}

	var bookings []models.Booking
	if err := c.doJSON(ctx, op, session, http.MethodGet, path, nil, &bookings); err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// GetBooking fetches a single booking.
func (c *Client) GetBooking(ctx context.Context, session models.Session, id int64) (*models.Booking, error) {
	var booking models.Booking
	path := fmt.Sprintf("/api/bookings/%d", id)
	if err := c.doJSON(ctx, opGetBooking, session, http.MethodGet, path, nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateStatus asks the backend to move a booking to target and returns the canonical record.
func (c *Client) UpdateStatus(ctx context.Context, session models.Session, id int64, target models.Status) (*models.Booking, error) {
	var booking models.Booking
	path := fmt.Sprintf("/api/bookings/%d", id)
	body := statusRequest{Status: target}
	if err := c.doJSON(ctx, opUpdateStatus, session, http.MethodPatch, path, body, &booking); err != nil {
		return nil, err
	}
	if booking.ID != id {
		return nil, fmt.Errorf("%w: backend returned booking %d for %d", ErrTransitionRejected, booking.ID, id)
	}
	return &booking, nil
}

func (c *Client) doJSON(ctx context.Context, op string, session models.Session, method, path string, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveGateway(op, outcome(err), time.Since(start))
	}()

	if !session.Valid(c.now()) {
		return fmt.Errorf("%s: %w: no valid session", op, ErrUnauthenticated)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrNetworkFailure, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := uuid.NewString()
	c.addHeaders(req, session, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.With().Str("op", op).Str("request_id", requestID).Logger()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("backend request failed")
		return fmt.Errorf("%s: %w: %w", op, ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Warn().Int("status", resp.StatusCode).Msg("backend returned error status")
		return fmt.Errorf("%s: %w", op, classify(resp.StatusCode, strings.TrimSpace(string(snippet)), method != http.MethodGet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Warn().Err(err).Msg("decode backend response")
		kind := ErrFetchFailure
		if method != http.MethodGet {
			kind = ErrNetworkFailure
		}
		return fmt.Errorf("%s: %w: decode response: %w", op, kind, err)
	}

	log.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("backend request")
	return nil
}

func (c *Client) addHeaders(req *http.Request, session models.Session, requestID string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("X-Request-ID", requestID)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrTransitionRejected):
		return "rejected"
	case errors.Is(err, ErrNetworkFailure):
		return "network"
	default:
		return "error"
	}
}
