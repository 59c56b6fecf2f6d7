package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SAP-F-2025/course-player/internal/models"
)

// Claims are read from the access token. The LMS signs the token; this client
// only decodes it to learn who is logged in.
type Claims struct {
	UserID    uint
	Username  string
	Email     string
	Name      string
	FirstName string
	LastName  string
	Role      string
	ExpiresAt time.Time
}

// AuthSession holds one learner's tokens from Login until Logout, Close or a
// failed refresh.
type AuthSession struct {
	client *Client

	mu      sync.RWMutex
	access  string
	refresh string
	claims  Claims
	closed  bool

	refreshMu sync.Mutex
}

func (c *Client) Login(ctx context.Context, username, password string) (*AuthSession, error) {
	var tokens tokenResponse
	err := c.do(ctx, http.MethodPost, "auth/login/", "", loginRequest{Username: username, Password: password}, &tokens)
	if err != nil {
		return nil, err
	}
	claims, err := parseClaims(tokens.Access)
	if err != nil {
		return nil, err
	}
	return &AuthSession{
		client:  c,
		access:  tokens.Access,
		refresh: tokens.Refresh,
		claims:  claims,
	}, nil
}

func (a *AuthSession) AccessToken() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return "", ErrSessionExpired
	}
	return a.access, nil
}

func (a *AuthSession) Claims() Claims {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.claims
}

func (a *AuthSession) Learner() models.Learner {
	c := a.Claims()
	return models.Learner{
		ID:             c.UserID,
		Username:       c.Username,
		Email:          c.Email,
		Name:           c.Name,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Role:           models.UserRole(c.Role),
		TokenExpiresAt: c.ExpiresAt,
	}
}

func (a *AuthSession) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

// Refresh exchanges the refresh token for a new access token. A rejected
// refresh closes the session.
func (a *AuthSession) Refresh(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	return a.refreshLocked(ctx)
}

// refreshIfStale refreshes only when stale is still the current access token,
// so concurrent 401s trigger a single refresh.
func (a *AuthSession) refreshIfStale(ctx context.Context, stale string) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	current, err := a.AccessToken()
	if err != nil {
		return err
	}
	if current != stale {
		return nil
	}
	return a.refreshLocked(ctx)
}

func (a *AuthSession) refreshLocked(ctx context.Context) error {
	a.mu.RLock()
	refresh, closed := a.refresh, a.closed
	a.mu.RUnlock()
	if closed || refresh == "" {
		return ErrSessionExpired
	}

	var tokens tokenResponse
	if err := a.client.do(ctx, http.MethodPost, "auth/token/refresh/", "", refreshRequest{Refresh: refresh}, &tokens); err != nil {
		if IsUnauthorized(err) {
			a.Close()
			return fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return err
	}
	claims, err := parseClaims(tokens.Access)
	if err != nil {
		a.Close()
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.access = tokens.Access
	if tokens.Refresh != "" {
		a.refresh = tokens.Refresh
	}
	a.claims = claims
	return nil
}

// Logout asks the LMS to revoke the refresh token and closes the session
// whatever the outcome.
func (a *AuthSession) Logout(ctx context.Context) error {
	a.mu.RLock()
	access, refresh, closed := a.access, a.refresh, a.closed
	a.mu.RUnlock()
	if closed {
		return nil
	}
	defer a.Close()
	return a.client.do(ctx, http.MethodPost, "auth/logout/", access, refreshRequest{Refresh: refresh}, nil)
}

func (a *AuthSession) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.access = ""
	a.refresh = ""
}

func parseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("lms: malformed access token: %w", err)
	}

	c := Claims{
		Username:  stringClaim(mc, "username"),
		Email:     stringClaim(mc, "email"),
		Name:      stringClaim(mc, "name"),
		FirstName: stringClaim(mc, "first_name"),
		LastName:  stringClaim(mc, "last_name"),
		Role:      stringClaim(mc, "role"),
	}
	switch v := mc["user_id"].(type) {
	case float64:
		c.UserID = uint(v)
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Claims{}, fmt.Errorf("lms: invalid user_id claim %q", v)
		}
		c.UserID = uint(id)
	default:
		return Claims{}, fmt.Errorf("lms: access token has no user_id")
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

func stringClaim(mc jwt.MapClaims, key string) string {
	s, _ := mc[key].(string)
	return s
}
