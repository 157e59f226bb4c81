package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestCookieRepositoryStaticCookie(t *testing.T) {
	repo := NewCookieRepository(config.Marketplace{Cookie: " a=1 ", CookieTTL: time.Minute}, logger.NewNop())

	assert.Equal(t, "a=1", repo.GetCookie(context.Background(), false))
	assert.Empty(t, repo.LastError())
}

func TestCookieRepositoryProviderIsCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"cookie_string":"session=abc"}`))
	}))
	defer srv.Close()

	repo := NewCookieRepository(config.Marketplace{CookieProviderURL: srv.URL, CookieTTL: time.Minute}, logger.NewNop())

	assert.Equal(t, "session=abc", repo.GetCookie(context.Background(), false))
	assert.Equal(t, "session=abc", repo.GetCookie(context.Background(), false))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.Equal(t, "session=abc", repo.GetCookie(context.Background(), true))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCookieRepositoryFailureKeepsLastKnown(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"cookie_string":"session=old"}`))
	}))
	defer srv.Close()

	repo := NewCookieRepository(config.Marketplace{CookieProviderURL: srv.URL, CookieTTL: time.Minute}, logger.NewNop())
	assert.Equal(t, "session=old", repo.GetCookie(context.Background(), false))

	fail.Store(true)
	assert.Equal(t, "session=old", repo.GetCookie(context.Background(), true))
	assert.Equal(t, "cookie provider status 503", repo.LastError())
}

func TestCookieRepositoryMissingProvider(t *testing.T) {
	repo := NewCookieRepository(config.Marketplace{}, logger.NewNop())

	assert.Empty(t, repo.GetCookie(context.Background(), false))
	assert.Equal(t, "cookie provider url not set", repo.LastError())
}

func TestCookieRepositoryBrowserFallback(t *testing.T) {
	repo := NewCookieRepository(config.Marketplace{}, logger.NewNop()).(*cookieRepository)
	repo.browser = func(ctx context.Context) (string, error) { return "b=2", nil }
	assert.Equal(t, "b=2", repo.GetCookie(context.Background(), false))

	repo.browser = func(ctx context.Context) (string, error) { return "", errors.New("no chrome") }
	assert.Equal(t, "b=2", repo.GetCookie(context.Background(), true))
	assert.Contains(t, repo.LastError(), "no chrome")
}
