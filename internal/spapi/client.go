package spapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"appproft-buybox-sync/internal/model"
	"appproft-buybox-sync/internal/ratelimit"

	"github.com/cenkalti/backoff/v5"
)

const (
	// maxResponseSize caps offer payload reads (5MB).
	maxResponseSize = 5 * 1024 * 1024

	// userAgent identifies this service to the pricing API.
	userAgent = "appproft-buybox-sync/1.0"
)

// TokenSource supplies bearer tokens for API calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate()
}

// Config holds offers client settings.
type Config struct {
	Endpoint      string
	MarketplaceID string
	Timeout       time.Duration

	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client fetches competitive offers for tracked ASINs. All calls pass
// through a shared rate limiter; 429 and 5xx responses are retried with
// exponential backoff and jitter within a bounded budget.
type Client struct {
	cfg     Config
	tokens  TokenSource
	limiter ratelimit.Limiter
	http    *http.Client
}

// NewClient creates an offers client.
func NewClient(cfg Config, tokens TokenSource, limiter ratelimit.Limiter) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		limiter: limiter,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// GetItemOffers retrieves the current competing-offer set for one ASIN.
func (c *Client) GetItemOffers(ctx context.Context, asin string) (*model.OfferSnapshot, error) {
	reqURL := fmt.Sprintf("%s/products/pricing/v0/items/%s/offers?%s",
		c.cfg.Endpoint, url.PathEscape(asin), url.Values{
			"MarketplaceId": {c.cfg.MarketplaceID},
			"ItemCondition": {"New"},
			"CustomerType":  {"Consumer"},
		}.Encode())

	attempts := 0
	refreshed := false

	operation := func() (*model.OfferSnapshot, error) {
		attempts++

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(&TransientError{ASIN: asin, Err: err})
		}

		tok, err := c.tokens.AccessToken(ctx)
		if err != nil {
			// Auth failures are not the item's fault; do not burn the
			// retry budget on them.
			return nil, backoff.Permanent(err)
		}

		snap, err := c.doFetch(ctx, reqURL, asin, tok)
		if err == nil {
			return snap, nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) && perm.StatusCode == http.StatusUnauthorized && !refreshed {
			// Token may have been revoked mid-run; refresh once.
			refreshed = true
			c.tokens.Invalidate()
			return nil, &TransientError{ASIN: asin, Err: err}
		}
		if errors.As(err, &perm) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval

	snap, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)))
	if err != nil {
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) {
			return nil, &RateLimitError{ASIN: asin, Attempts: attempts}
		}
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return nil, &RateLimitError{ASIN: asin, Attempts: attempts}
		}
		return nil, err
	}
	return snap, nil
}

// doFetch performs one HTTP attempt and classifies the outcome.
func (c *Client) doFetch(ctx context.Context, reqURL, asin, token string) (*model.OfferSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransientError{ASIN: asin, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-amz-access-token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{ASIN: asin, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransientError{ASIN: asin, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, ok := retryAfterSeconds(resp); ok {
			return nil, backoff.RetryAfter(secs)
		}
		return nil, &RateLimitError{ASIN: asin, Attempts: 1}

	case resp.StatusCode >= 500:
		return nil, &TransientError{ASIN: asin,
			Err: fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)}

	default: // remaining 4xx
		return nil, &PermanentError{ASIN: asin, StatusCode: resp.StatusCode,
			Message: http.StatusText(resp.StatusCode)}
	}

	var parsed offersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &PermanentError{ASIN: asin, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("malformed offers payload: %v", err)}
	}

	collectedAt := time.Now().UTC()
	snap := &model.OfferSnapshot{ASIN: asin, CollectedAt: collectedAt}
	for _, raw := range parsed.Payload.Offers {
		offer, err := decodeOffer(asin, raw, collectedAt)
		if err != nil {
			log.Printf("[OffersClient] Skipping malformed offer for %s: %v", asin, err)
			continue
		}
		snap.Offers = append(snap.Offers, offer)
	}
	return snap, nil
}

// retryAfterSeconds parses the Retry-After header when present.
func retryAfterSeconds(resp *http.Response) (int, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return secs, true
}
