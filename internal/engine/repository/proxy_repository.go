package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang-cardflip-engine/pkg/logger"
)

// ProxyRepository picks an outbound proxy from a proxy pool API.
type ProxyRepository interface {
	// GetProxy returns a proxy URL, or "" when none is available.
	GetProxy(ctx context.Context) string
}

type proxyRepository struct {
	poolURL    string
	log        *logger.Logger
	httpClient *http.Client
}

// NewProxyRepository creates a new ProxyRepository. The pool API answers with
// a JSON list of [ip, port] pairs, best first.
func NewProxyRepository(poolURL string, log *logger.Logger) ProxyRepository {
	return &proxyRepository{
		poolURL:    poolURL,
		log:        log,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *proxyRepository) GetProxy(ctx context.Context) string {
	if r.poolURL == "" {
		return ""
	}
	proxy, err := r.fetch(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to get proxy from pool", logger.ErrorField(err))
		return ""
	}
	return proxy
}

func (r *proxyRepository) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.poolURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proxy pool status %d", resp.StatusCode)
	}

	var pairs [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&pairs); err != nil {
		return "", fmt.Errorf("failed to decode proxy pool response: %w", err)
	}
	if len(pairs) == 0 || len(pairs[0]) < 2 {
		return "", fmt.Errorf("proxy pool returned no usable proxy")
	}

	ip := strings.TrimSpace(stringify(pairs[0][0]))
	port := strings.TrimSpace(stringify(pairs[0][1]))
	if ip == "" || port == "" {
		return "", fmt.Errorf("proxy pool returned no usable proxy")
	}
	return fmt.Sprintf("http://%s:%s", ip, port), nil
}
