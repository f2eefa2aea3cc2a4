package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"appproft-buybox-sync/internal/model"

	"golang.org/x/sync/singleflight"
)

// DefaultMargin is the minimum remaining lifetime a returned token is
// guaranteed to have.
const DefaultMargin = 60 * time.Second

// AuthError indicates the token exchange was rejected. A run cannot
// proceed without a valid token; callers abort and retry next schedule.
type AuthError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return "authentication failed: " + e.Message
}

// CredentialSource loads the long-lived refresh credential.
type CredentialSource interface {
	GetCredential(ctx context.Context, marketplace string) (*model.MarketplaceCredential, error)
}

// Config holds token manager settings.
type Config struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Marketplace  string
	Margin       time.Duration
}

// tokenResponse is the OAuth token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Manager exchanges a refresh credential for short-lived access tokens,
// caching the current token in memory. All callers share one renewal:
// the first caller performs the exchange and the rest await its result.
type Manager struct {
	cfg   Config
	creds CredentialSource
	http  *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewManager creates a token manager. A zero Margin falls back to
// DefaultMargin.
func NewManager(cfg Config, creds CredentialSource) *Manager {
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultMargin
	}
	return &Manager{
		cfg:   cfg,
		creds: creds,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// AccessToken returns a bearer token whose remaining life is at least
// the configured margin, renewing it first when necessary.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	v, err, _ := m.group.Do("renew", func() (interface{}, error) {
		// Another caller may have renewed while we queued.
		if tok, ok := m.cached(); ok {
			return tok, nil
		}
		return m.renew(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, forcing a renewal on the next call.
// Used after an upstream 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

// cached returns the current token if it still has margin left.
func (m *Manager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", false
	}
	if time.Until(m.expiresAt) < m.cfg.Margin {
		return "", false
	}
	return m.token, true
}

// renew performs the refresh-token exchange. On failure nothing is
// cached; the previous token (if any) stays untouched.
func (m *Manager) renew(ctx context.Context) (string, error) {
	cred, err := m.creds.GetCredential(ctx, m.cfg.Marketplace)
	if err != nil {
		return "", &AuthError{Message: fmt.Sprintf("load refresh credential: %v", err)}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", &AuthError{Message: fmt.Sprintf("token exchange request: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &AuthError{Message: fmt.Sprintf("read token response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{Message: fmt.Sprintf("parse token response: %v", err)}
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return "", &AuthError{Message: "token response missing access_token or expires_in"}
	}

	expiresAt := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)

	m.mu.Lock()
	m.token = tr.AccessToken
	m.expiresAt = expiresAt
	m.mu.Unlock()

	log.Printf("[TokenManager] Access token renewed, expires in %ds", tr.ExpiresIn)
	return tr.AccessToken, nil
}
