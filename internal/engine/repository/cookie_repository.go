package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/pkg/logger"

	"github.com/chromedp/chromedp"
	"github.com/patrickmn/go-cache"
)

const (
	cookieCacheKey = "marketplace_cookie"
	minCookieTTL   = time.Minute
)

// CookieRepository supplies the marketplace session cookie.
type CookieRepository interface {
	// GetCookie returns the freshest cookie available. When a refresh fails
	// the last known cookie is returned and the failure is kept in LastError.
	GetCookie(ctx context.Context, forceRefresh bool) string
	LastError() string
}

// BrowserCookieFunc loads cookies by driving a browser session.
type BrowserCookieFunc func(ctx context.Context) (string, error)

type cookieRepository struct {
	cfg        config.Marketplace
	log        *logger.Logger
	httpClient *http.Client
	cache      *cache.Cache
	browser    BrowserCookieFunc

	mu        sync.Mutex
	lastKnown string
	lastError string
}

// NewCookieRepository creates a new CookieRepository. The configured static
// cookie wins, then the cookie provider URL, then a headless browser when
// browser cookies are enabled.
func NewCookieRepository(cfg config.Marketplace, log *logger.Logger) CookieRepository {
	ttl := cfg.CookieTTL
	if ttl < minCookieTTL {
		ttl = minCookieTTL
	}
	r := &cookieRepository{
		cfg:        cfg,
		log:        log,
		httpClient: &http.Client{Timeout: 8 * time.Second},
		cache:      cache.New(ttl, 2*ttl),
		lastKnown:  strings.TrimSpace(cfg.Cookie),
	}
	if cfg.BrowserCookies {
		r.browser = r.browserCookie
	}
	return r
}

func (r *cookieRepository) GetCookie(ctx context.Context, forceRefresh bool) string {
	if !forceRefresh {
		if cached, ok := r.cache.Get(cookieCacheKey); ok {
			return cached.(string)
		}
		if static := strings.TrimSpace(r.cfg.Cookie); static != "" {
			r.store(static)
			return static
		}
	}

	cookie, err := r.refresh(ctx)
	if err != nil {
		r.mu.Lock()
		r.lastError = err.Error()
		last := r.lastKnown
		r.mu.Unlock()
		r.log.WarnContext(ctx, "Failed to refresh marketplace cookie", logger.ErrorField(err))
		return last
	}

	r.store(cookie)
	return cookie
}

func (r *cookieRepository) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

func (r *cookieRepository) store(cookie string) {
	r.cache.SetDefault(cookieCacheKey, cookie)
	r.mu.Lock()
	r.lastKnown = cookie
	r.lastError = ""
	r.mu.Unlock()
}

func (r *cookieRepository) refresh(ctx context.Context) (string, error) {
	var providerErr error
	if r.cfg.CookieProviderURL != "" {
		cookie, err := r.providerCookie(ctx)
		if err == nil {
			return cookie, nil
		}
		providerErr = err
	}

	if r.browser != nil {
		cookie, err := r.browser(ctx)
		if err != nil {
			return "", fmt.Errorf("browser cookie refresh failed: %w", err)
		}
		if cookie == "" {
			return "", fmt.Errorf("browser returned no cookies")
		}
		return cookie, nil
	}

	if providerErr != nil {
		return "", providerErr
	}
	return "", fmt.Errorf("cookie provider url not set")
}

func (r *cookieRepository) providerCookie(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.CookieProviderURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cookie provider status %d", resp.StatusCode)
	}

	var body struct {
		CookieString string `json:"cookie_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode cookie provider response: %w", err)
	}
	cookie := strings.TrimSpace(body.CookieString)
	if cookie == "" {
		return "", fmt.Errorf("cookie_string missing in provider response")
	}
	return cookie, nil
}

// browserCookie opens the login page headless and reads document.cookie.
// HttpOnly cookies are not visible this way.
func (r *cookieRepository) browserCookie(ctx context.Context) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(mobileUserAgent),
	)
	if r.cfg.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ChromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancelTimeout()

	loginURL := r.cfg.BrowserLoginURL
	if loginURL == "" {
		loginURL = r.cfg.BaseURL
	}

	var cookie string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(loginURL),
		chromedp.Sleep(5*time.Second),
		chromedp.Evaluate(`document.cookie`, &cookie),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cookie), nil
}
