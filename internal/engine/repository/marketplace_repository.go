package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	searchPageSize  = 20
)

var (
	bootstrapMarkers = []string{"window.__initData__", "__INIT_DATA__", "__initialState__"}
	itemPaths        = [][]string{{"result", "data", "items"}, {"pageInfo", "items"}, {"data", "items"}}
	htmlTagPattern   = regexp.MustCompile(`<[^>]+>`)
)

// MarketplaceRepository is the scrape source: one search page per call.
type MarketplaceRepository interface {
	Fetch(ctx context.Context, req dto.FetchRequest) ([]dto.RawItem, error)
}

type marketplaceRepository struct {
	cfg            config.Marketplace
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter

	// proxy URL -> *http.Client, one transport per proxy
	proxyClients sync.Map
}

// NewMarketplaceRepository creates a new MarketplaceRepository.
func NewMarketplaceRepository(cfg config.Marketplace, log *logger.Logger) MarketplaceRepository {
	return &marketplaceRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		requestLimiter: perMinuteLimiter(cfg.MaxRequestPerMinute),
	}
}

// Fetch requests one search page. A non-200 answer is returned as *HTTPError.
// Items that cannot be read are skipped.
func (r *marketplaceRepository) Fetch(ctx context.Context, req dto.FetchRequest) ([]dto.RawItem, error) {
	searchURL := strings.TrimRight(r.cfg.BaseURL, "/") + r.cfg.SearchPath
	params := url.Values{}
	params.Set("keywords", req.Keyword)
	params.Set("page", strconv.Itoa(max(req.Page, 1)))
	params.Set("sort", "time")
	params.Set("pageSize", strconv.Itoa(searchPageSize))
	fullURL := searchURL + "?" + params.Encode()

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	httpReq.Header.Set("User-Agent", mobileUserAgent)
	httpReq.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	httpReq.Header.Set("Referer", searchURL+"?"+url.Values{"keywords": {req.Keyword}}.Encode())
	cookie := strings.TrimSpace(req.Cookie)
	if cookie == "" {
		cookie = strings.TrimSpace(r.cfg.Cookie)
	}
	if cookie != "" {
		httpReq.Header.Set("Cookie", cookie)
	}

	client, err := r.clientFor(req.Proxy)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		r.log.WarnContext(ctx, "Marketplace request failed", logger.ErrorField(err), logger.StringField("keyword", req.Keyword))
		return nil, fmt.Errorf("failed to send marketplace request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.WarnContext(ctx, "Received non-OK response from marketplace",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("keyword", req.Keyword),
		)
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: fullURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read marketplace response: %w", err)
	}

	items, err := ParseSearchPage(body)
	if err != nil {
		return nil, err
	}
	r.log.DebugContext(ctx, "Fetched marketplace page",
		logger.StringField("keyword", req.Keyword),
		logger.IntField("page", req.Page),
		logger.IntField("items", len(items)),
	)
	return items, nil
}

func (r *marketplaceRepository) clientFor(proxy string) (*http.Client, error) {
	if proxy == "" {
		return r.httpClient, nil
	}
	if client, ok := r.proxyClients.Load(proxy); ok {
		return client.(*http.Client), nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
	}
	client := &http.Client{
		Timeout:   r.cfg.Timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}
	actual, _ := r.proxyClients.LoadOrStore(proxy, client)
	return actual.(*http.Client), nil
}

// ParseSearchPage reads items from a search response. It accepts a JSON
// body, an HTML page with an embedded bootstrap object, or plain HTML item
// cards.
func ParseSearchPage(body []byte) ([]dto.RawItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var data map[string]interface{}
		if err := json.Unmarshal(trimmed, &data); err != nil {
			return nil, fmt.Errorf("failed to decode marketplace json: %w", err)
		}
		return parseItems(data), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse marketplace html: %w", err)
	}

	var items []dto.RawItem
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		data := extractBootstrap(s.Text())
		if data == nil {
			return true
		}
		items = parseItems(data)
		return len(items) == 0
	})
	if len(items) > 0 {
		return items, nil
	}
	return parseItemCards(doc), nil
}

// extractBootstrap decodes the object assigned to a known bootstrap variable.
// The decoder stops at the end of the object so trailing script is ignored.
func extractBootstrap(script string) map[string]interface{} {
	for _, marker := range bootstrapMarkers {
		idx := strings.Index(script, marker)
		if idx < 0 {
			continue
		}
		rest := script[idx+len(marker):]
		start := strings.Index(rest, "{")
		if start < 0 || strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest[:start]), "=")) != "" {
			continue
		}
		var data map[string]interface{}
		if err := json.NewDecoder(strings.NewReader(rest[start:])).Decode(&data); err != nil {
			continue
		}
		return data
	}
	return nil
}

func parseItems(data map[string]interface{}) []dto.RawItem {
	for _, path := range itemPaths {
		var node interface{} = data
		for _, key := range path {
			m, ok := node.(map[string]interface{})
			if !ok {
				node = nil
				break
			}
			node = m[key]
		}
		list, ok := node.([]interface{})
		if !ok || len(list) == 0 {
			continue
		}
		items := make([]dto.RawItem, 0, len(list))
		for _, raw := range list {
			if m, ok := raw.(map[string]interface{}); ok {
				items = append(items, NormalizeItem(m))
			}
		}
		return items
	}
	return nil
}

// parseItemCards reads server-rendered cards marked with data-item-id.
func parseItemCards(doc *goquery.Document) []dto.RawItem {
	var items []dto.RawItem
	doc.Find("[data-item-id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-item-id")
		priceText, ok := s.Attr("data-price")
		if !ok {
			priceText = s.Find(".price").First().Text()
		}
		title, ok := s.Attr("data-title")
		if !ok {
			title = s.Find(".title").First().Text()
		}
		seller, _ := s.Attr("data-seller-id")
		items = append(items, dto.RawItem{
			ID:          strings.TrimSpace(id),
			Price:       CoercePrice(priceText),
			Title:       strings.TrimSpace(title),
			Description: strings.TrimSpace(s.Find(".desc").First().Text()),
			SellerID:    strings.TrimSpace(seller),
			Raw:         map[string]interface{}{"html": true},
		})
	})
	return items
}

// NormalizeItem maps the marketplace's varying key names onto a RawItem.
func NormalizeItem(item map[string]interface{}) dto.RawItem {
	id := firstValue(item, "itemId", "id", "item_id", "productId")

	price := firstValue(item, "price", "priceText", "price_info", "priceContent", "priceInfo")
	if m, ok := price.(map[string]interface{}); ok {
		price = firstValue(m, "price", "text", "priceText")
	}

	title := stringify(firstValue(item, "title", "richTitle", "itemTitle", "raw_title", "rawTitle"))
	if strings.Contains(title, "<") {
		title = htmlTagPattern.ReplaceAllString(title, "")
	}

	seller := firstValue(item, "sellerId", "userId", "user_id", "uid")
	if !truthy(seller) {
		for _, key := range []string{"seller", "user", "sellerInfo", "userInfo"} {
			if node, ok := item[key].(map[string]interface{}); ok {
				seller = firstValue(node, "userId", "sellerId", "id", "uid")
				if truthy(seller) {
					break
				}
			}
		}
	}

	return dto.RawItem{
		ID:          strings.TrimSpace(stringify(id)),
		Price:       CoercePrice(price),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(stringify(firstValue(item, "description", "desc"))),
		SellerID:    strings.TrimSpace(stringify(seller)),
		Raw:         item,
	}
}

// CoercePrice reads a price from a number, a display string such as
// "¥1,299" or "1.2万", or the text fragments the marketplace splits prices
// into. Unreadable input yields 0.
func CoercePrice(v interface{}) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case []interface{}:
		return CoercePrice(joinTextParts(val))
	case map[string]interface{}:
		if text, ok := val["text"]; ok {
			return CoercePrice(text)
		}
		if p, ok := val["price"]; ok {
			return CoercePrice(p)
		}
		return 0
	}

	raw := strings.TrimSpace(stringify(v))
	if raw == "" {
		return 0
	}
	multiplier := 1.0
	if strings.HasSuffix(raw, "万") {
		multiplier = 10000
		raw = strings.TrimSuffix(raw, "万")
	}
	raw = strings.NewReplacer("楼", "", "¥", "", ",", "").Replace(raw)
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return f * multiplier
}

func joinTextParts(parts []interface{}) string {
	var sb strings.Builder
	for _, part := range parts {
		switch p := part.(type) {
		case map[string]interface{}:
			if text, ok := p["text"]; ok {
				sb.WriteString(stringify(text))
			}
		case string, float64:
			sb.WriteString(stringify(p))
		}
	}
	return sb.String()
}

func firstValue(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case float64:
		return val != 0
	case bool:
		return val
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	}
	return true
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
