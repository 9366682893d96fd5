package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/logging"
)

var (
	// ErrUnauthenticated means there is no session or the users service
	// rejected it.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Resolver turns a session token into an identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// Authorizer decides whether an identity may use the admin surface.
type Authorizer interface {
	IsAdmin(id *Identity) bool
}

// OwnerAuthorizer grants admin to a single configured email.
type OwnerAuthorizer struct {
	Email string
}

func (a OwnerAuthorizer) IsAdmin(id *Identity) bool {
	owner := strings.TrimSpace(a.Email)
	return id != nil && owner != "" && strings.EqualFold(strings.TrimSpace(id.Email), owner)
}

// UsersService resolves sessions against the external users service.
type UsersService struct {
	baseURL    string
	cookieName string
	client     *http.Client
	logger     *zap.Logger
}

func NewUsersService(baseURL, cookieName string, client *http.Client, logger *zap.Logger) *UsersService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &UsersService{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		cookieName: cookieName,
		client:     client,
		logger:     logging.OrNop(logger),
	}
}

func (s *UsersService) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build users service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if s.cookieName != "" {
		req.AddCookie(&http.Cookie{Name: s.cookieName, Value: token})
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("users service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("users service error", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, fmt.Errorf("users service returned %d", resp.StatusCode)
	}

	var raw struct {
		ID    json.RawMessage `json:"id"`
		Email string          `json:"email"`
		Name  string          `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode users service response: %w", err)
	}
	if raw.Email == "" {
		return nil, ErrUnauthenticated
	}

	return &Identity{
		ID:    strings.Trim(string(raw.ID), `"`),
		Email: raw.Email,
		Name:  raw.Name,
	}, nil
}

// Static resolves every non-empty token to one identity. It backs local
// development when no users service is configured.
type Static struct {
	Identity Identity
}

func (s Static) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" || s.Identity.Email == "" {
		return nil, ErrUnauthenticated
	}
	id := s.Identity
	return &id, nil
}
