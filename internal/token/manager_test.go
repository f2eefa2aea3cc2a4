package token_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appproft-buybox-sync/internal/model"
	"appproft-buybox-sync/internal/token"
)

type staticCreds struct {
	err error
}

func (c *staticCreds) GetCredential(_ context.Context, marketplace string) (*model.MarketplaceCredential, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &model.MarketplaceCredential{
		Marketplace:  marketplace,
		SellerID:     "SELLER-US",
		RefreshToken: "refresh-abc",
	}, nil
}

func newTokenServer(t *testing.T, exchanges *atomic.Int64, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		assert.Equal(t, "refresh-abc", r.PostFormValue("refresh_token"))

		n := exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":%d}`, n, expiresIn)
	}))
}

func TestManager_CachesToken(t *testing.T) {
	t.Parallel()

	var exchanges atomic.Int64
	srv := newTokenServer(t, &exchanges, 3600)
	defer srv.Close()

	m := token.NewManager(token.Config{
		Endpoint:    srv.URL,
		ClientID:    "client",
		Marketplace: "ATVPDKIKX0DER",
	}, &staticCreds{})

	ctx := context.Background()
	first, err := m.AccessToken(ctx)
	require.NoError(t, err)
	second, err := m.AccessToken(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), exchanges.Load())
}

func TestManager_ConcurrentCallersShareOneRenewal(t *testing.T) {
	t.Parallel()

	var exchanges atomic.Int64
	srv := newTokenServer(t, &exchanges, 3600)
	defer srv.Close()

	m := token.NewManager(token.Config{
		Endpoint:    srv.URL,
		Marketplace: "ATVPDKIKX0DER",
	}, &staticCreds{})

	const callers = 10
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.AccessToken(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), exchanges.Load(), "concurrent callers must share one exchange")
	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
}

func TestManager_RenewsWhenMarginExhausted(t *testing.T) {
	t.Parallel()

	var exchanges atomic.Int64
	// Token expires in 30s while the margin demands 60s, so every call
	// renews.
	srv := newTokenServer(t, &exchanges, 30)
	defer srv.Close()

	m := token.NewManager(token.Config{
		Endpoint:    srv.URL,
		Marketplace: "ATVPDKIKX0DER",
		Margin:      60 * time.Second,
	}, &staticCreds{})

	ctx := context.Background()
	first, err := m.AccessToken(ctx)
	require.NoError(t, err)
	second, err := m.AccessToken(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int64(2), exchanges.Load())
}

func TestManager_Invalidate(t *testing.T) {
	t.Parallel()

	var exchanges atomic.Int64
	srv := newTokenServer(t, &exchanges, 3600)
	defer srv.Close()

	m := token.NewManager(token.Config{
		Endpoint:    srv.URL,
		Marketplace: "ATVPDKIKX0DER",
	}, &staticCreds{})

	ctx := context.Background()
	_, err := m.AccessToken(ctx)
	require.NoError(t, err)

	m.Invalidate()

	_, err = m.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), exchanges.Load())
}

func TestManager_RejectedExchange(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	m := token.NewManager(token.Config{
		Endpoint:    srv.URL,
		Marketplace: "ATVPDKIKX0DER",
	}, &staticCreds{})

	_, err := m.AccessToken(context.Background())
	require.Error(t, err)

	var authErr *token.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Message, "invalid_grant")
}

func TestManager_MissingCredential(t *testing.T) {
	t.Parallel()

	m := token.NewManager(token.Config{
		Endpoint:    "http://localhost:0",
		Marketplace: "ATVPDKIKX0DER",
	}, &staticCreds{err: fmt.Errorf("no credential stored")})

	_, err := m.AccessToken(context.Background())

	var authErr *token.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "no credential stored")
}
