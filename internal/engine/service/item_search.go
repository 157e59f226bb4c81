package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/utils"

	"gorm.io/datatypes"
)

// EventPublisher is the part of the event bus the engines publish through.
type EventPublisher interface {
	Publish(p event.Payload) error
}

// ItemSearchService is the fetch path shared by the market monitor and the
// scan scheduler.
type ItemSearchService interface {
	Search(ctx context.Context, keyword string, pages int, useProxy bool) ([]dto.RawItem, error)
	CookieError() string
}

type itemSearchService struct {
	marketplace repository.MarketplaceRepository
	cookies     repository.CookieRepository
	proxies     repository.ProxyRepository
}

// NewItemSearchService creates a new ItemSearchService. cookies and proxies may be nil.
func NewItemSearchService(
	marketplace repository.MarketplaceRepository,
	cookies repository.CookieRepository,
	proxies repository.ProxyRepository,
) ItemSearchService {
	return &itemSearchService{marketplace: marketplace, cookies: cookies, proxies: proxies}
}

// Search fetches pages 1..pages for keyword and stops at the first failure.
func (s *itemSearchService) Search(ctx context.Context, keyword string, pages int, useProxy bool) ([]dto.RawItem, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}

	req := dto.FetchRequest{Keyword: keyword}
	if s.cookies != nil {
		req.Cookie = s.cookies.GetCookie(ctx, false)
	}
	if useProxy && s.proxies != nil {
		req.Proxy = s.proxies.GetProxy(ctx)
	}

	var items []dto.RawItem
	for page := 1; page <= max(pages, 1); page++ {
		req.Page = page
		batch, err := s.marketplace.Fetch(ctx, req)
		if err != nil {
			return items, err
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (s *itemSearchService) CookieError() string {
	if s.cookies == nil {
		return ""
	}
	return s.cookies.LastError()
}

// BuildListing turns a raw item into an open listing. ok is false when the
// price is not positive, exceeds maxPrice, or the title is empty.
func BuildListing(item dto.RawItem, source string, maxPrice float64, now time.Time) (entity.Listing, bool) {
	title := strings.TrimSpace(item.Title)
	if item.Price <= 0 || item.Price > maxPrice || title == "" {
		return entity.Listing{}, false
	}

	listing := entity.Listing{
		Source:      source,
		Title:       title,
		Description: strings.TrimSpace(item.Description),
		Price:       item.Price,
		ListedAt:    now,
		Status:      entity.ListingStatusOpen,
	}
	if id := strings.TrimSpace(item.ID); id != "" {
		listing.ExternalID = utils.ToPointer(id)
	}
	if seller := strings.TrimSpace(item.SellerID); seller != "" {
		listing.SellerID = utils.ToPointer(seller)
	}
	if item.Raw != nil {
		if raw, err := json.Marshal(item.Raw); err == nil {
			listing.RawPayload = datatypes.JSON(raw)
		}
	}
	return listing, true
}
