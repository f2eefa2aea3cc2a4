package spapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appproft-buybox-sync/internal/model"
	"appproft-buybox-sync/internal/ratelimit"
	"appproft-buybox-sync/internal/spapi"
)

type fakeTokens struct {
	token       string
	err         error
	issued      atomic.Int64
	invalidated atomic.Int64
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.issued.Add(1)
	return f.token, nil
}

func (f *fakeTokens) Invalidate() {
	f.invalidated.Add(1)
}

const offersBody = `{
	"payload": {
		"ASIN": "B000TEST01",
		"Offers": [
			{
				"SellerId": "SELLER-US",
				"ListingPrice": {"CurrencyCode": "USD", "Amount": 19.99},
				"Shipping": {"CurrencyCode": "USD", "Amount": 0},
				"IsBuyBoxWinner": false,
				"IsFulfilledByAmazon": true,
				"SubCondition": "new",
				"SellerFeedbackRating": {"SellerPositiveFeedbackRating": 98.5, "FeedbackCount": 1204}
			},
			{
				"SellerId": "A2RIVAL",
				"ListingPrice": {"CurrencyCode": "USD", "Amount": 18.75},
				"Shipping": {"CurrencyCode": "USD", "Amount": 3.99},
				"IsBuyBoxWinner": true,
				"IsFulfilledByAmazon": false,
				"SubCondition": "new",
				"PrimeInformation": {"IsPrime": false}
			}
		]
	}
}`

func newClient(t *testing.T, srvURL string, tokens *fakeTokens, maxAttempts int) *spapi.Client {
	t.Helper()
	return spapi.NewClient(spapi.Config{
		Endpoint:        srvURL,
		MarketplaceID:   "ATVPDKIKX0DER",
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, tokens, ratelimit.Unlimited{})
}

func TestClient_GetItemOffers(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/products/pricing/v0/items/B000TEST01/offers", r.URL.Path)
		assert.Equal(t, "ATVPDKIKX0DER", r.URL.Query().Get("MarketplaceId"))
		assert.Equal(t, "bearer-token", r.Header.Get("x-amz-access-token"))
		fmt.Fprint(w, offersBody)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "bearer-token"}
	c := newClient(t, srv.URL, tokens, 4)

	snap, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.NoError(t, err)
	require.Len(t, snap.Offers, 2)
	assert.Equal(t, int64(1), requests.Load())

	ours := snap.Offers[0]
	assert.Equal(t, "SELLER-US", ours.SellerID)
	assert.Equal(t, 19.99, ours.Price)
	assert.Equal(t, model.FulfillmentAmazon, ours.FulfillmentType)
	assert.Equal(t, 98.5, ours.FeedbackRating)
	assert.Equal(t, 1204, ours.FeedbackCount)
	assert.Nil(t, ours.Extra)

	rival := snap.Offers[1]
	assert.True(t, rival.IsBuyBoxWinner)
	assert.Equal(t, 3.99, rival.ShippingCost)
	assert.Equal(t, model.FulfillmentMerchant, rival.FulfillmentType)
	// Unmodeled upstream keys survive in the side channel.
	require.Contains(t, rival.Extra, "PrimeInformation")

	winner := snap.Winner()
	require.NotNil(t, winner)
	assert.Equal(t, "A2RIVAL", winner.SellerID)
}

func TestClient_RetriesThrottling(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, offersBody)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &fakeTokens{token: "tok"}, 4)

	snap, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.NoError(t, err)
	assert.Len(t, snap.Offers, 2)
	assert.Equal(t, int64(3), requests.Load())
}

func TestClient_ThrottledOut(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &fakeTokens{token: "tok"}, 3)

	_, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.Error(t, err)
	assert.True(t, spapi.IsRateLimit(err))
	assert.Equal(t, int64(3), requests.Load())
}

func TestClient_HonorsRetryAfter(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, offersBody)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &fakeTokens{token: "tok"}, 4)

	start := time.Now()
	snap, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.NoError(t, err)
	assert.Len(t, snap.Offers, 2)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_PermanentFailureNotRetried(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &fakeTokens{token: "tok"}, 4)

	_, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.Error(t, err)
	assert.True(t, spapi.IsPermanent(err))
	assert.Equal(t, int64(1), requests.Load(), "4xx must not burn the retry budget")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, offersBody)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &fakeTokens{token: "tok"}, 4)

	snap, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.NoError(t, err)
	assert.Len(t, snap.Offers, 2)
	assert.Equal(t, int64(2), requests.Load())
}

func TestClient_RefreshesTokenOnceOn401(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, offersBody)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "tok"}
	c := newClient(t, srv.URL, tokens, 4)

	snap, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.NoError(t, err)
	assert.Len(t, snap.Offers, 2)
	assert.Equal(t, int64(1), tokens.invalidated.Load())
}

func TestClient_PersistentUnauthorized(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "tok"}
	c := newClient(t, srv.URL, tokens, 4)

	_, err := c.GetItemOffers(context.Background(), "B000TEST01")
	require.Error(t, err)
	assert.True(t, spapi.IsPermanent(err))
	// One refresh attempt, then give up.
	assert.Equal(t, int64(1), tokens.invalidated.Load())
	assert.Equal(t, int64(2), requests.Load())
}
