package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/utils"
)

// memoryStore backs every repository fake with the same tables so services
// that share rows see each other's writes.
type memoryStore struct {
	mu            sync.Mutex
	listings      []entity.Listing
	features      map[string]entity.ItemFeature
	sales         []entity.Sale
	valuations    []entity.Valuation
	opportunities []entity.Opportunity
	trades        []entity.Trade

	// approveErr fails CreateApproved before anything is written.
	approveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{features: map[string]entity.ItemFeature{}}
}

type memoryListingRepo struct{ s *memoryStore }

func (r memoryListingRepo) InsertListings(ctx context.Context, listings []entity.Listing) (int, error) {
	inserted := 0
	for i := range listings {
		ok, err := r.InsertIfAbsent(ctx, &listings[i])
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (r memoryListingRepo) InsertIfAbsent(ctx context.Context, listing *entity.Listing) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if key, ok := listing.DedupKey(); ok {
		for _, l := range r.s.listings {
			if k, ok := l.DedupKey(); ok && k == key {
				return false, nil
			}
		}
	}
	listing.ID = uint(len(r.s.listings) + 1)
	if listing.Status == "" {
		listing.Status = entity.ListingStatusOpen
	}
	r.s.listings = append(r.s.listings, *listing)
	return true, nil
}

func (r memoryListingRepo) GetByID(ctx context.Context, id uint) (*entity.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.listings {
		if l.ID == id {
			l := l
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memoryListingRepo) GetOpenListings(ctx context.Context, limit int) ([]entity.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Listing
	for _, l := range r.s.listings {
		if l.Status == entity.ListingStatusOpen && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r memoryListingRepo) CountSellerOpenListings(ctx context.Context, source, sellerID string, excludeID uint) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, l := range r.s.listings {
		if l.Source == source && utils.Deref(l.SellerID) == sellerID && l.ID != excludeID && l.Status == entity.ListingStatusOpen {
			n++
		}
	}
	return n, nil
}

type memoryFeatureRepo struct{ s *memoryStore }

func (r memoryFeatureRepo) Get(ctx context.Context, refType string, refID uint) (*entity.ItemFeature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.features[featureKey(refType, refID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r memoryFeatureRepo) Save(ctx context.Context, feature *entity.ItemFeature) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.features[featureKey(feature.RefType, feature.RefID)] = *feature
	return nil
}

func featureKey(refType string, refID uint) string {
	return fmt.Sprintf("%s:%d", refType, refID)
}

type memorySaleRepo struct{ s *memoryStore }

func (r memorySaleRepo) GetRecentSales(ctx context.Context, features dto.Features, limit int) ([]entity.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Sale
	for _, s := range r.s.sales {
		if strings.Contains(strings.ToLower(s.CardName), strings.ToLower(features.CardName)) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

type memoryValuationRepo struct{ s *memoryStore }

func (r memoryValuationRepo) Create(ctx context.Context, v *entity.Valuation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v.ID = uint(len(r.s.valuations) + 1)
	v.CreatedAt = time.Now()
	r.s.valuations = append(r.s.valuations, *v)
	return nil
}

func (r memoryValuationRepo) GetLatestByListing(ctx context.Context, listingID uint) (*entity.Valuation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.valuations) - 1; i >= 0; i-- {
		if r.s.valuations[i].ListingID == listingID {
			v := r.s.valuations[i]
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memoryOpportunityRepo struct{ s *memoryStore }

func (r memoryOpportunityRepo) Upsert(ctx context.Context, o *entity.Opportunity) (uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.opportunities {
		if r.s.opportunities[i].ListingID == o.ListingID {
			o.ID = r.s.opportunities[i].ID
			o.ReviewedAt = nil
			r.s.opportunities[i] = *o
			return o.ID, nil
		}
	}
	o.ID = uint(len(r.s.opportunities) + 1)
	r.s.opportunities = append(r.s.opportunities, *o)
	return o.ID, nil
}

// hydrate attaches the listing and latest valuation like the gorm preloads do.
func (r memoryOpportunityRepo) hydrate(o entity.Opportunity) entity.Opportunity {
	for _, l := range r.s.listings {
		if l.ID == o.ListingID {
			l := l
			o.Listing = &l
		}
	}
	for _, v := range r.s.valuations {
		if v.ID == o.ValuationID {
			v := v
			o.Valuation = &v
		}
	}
	return o
}

func (r memoryOpportunityRepo) GetByID(ctx context.Context, id uint) (*entity.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.opportunities {
		if o.ID == id {
			o = r.hydrate(o)
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memoryOpportunityRepo) GetByListingID(ctx context.Context, listingID uint) (*entity.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.opportunities {
		if o.ListingID == listingID {
			o = r.hydrate(o)
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memoryOpportunityRepo) List(ctx context.Context, param dto.ListOpportunitiesParam) ([]entity.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Opportunity
	for _, o := range r.s.opportunities {
		if param.Status != nil && o.Status != *param.Status {
			continue
		}
		out = append(out, r.hydrate(o))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if param.Limit > 0 && len(out) > param.Limit {
		out = out[:param.Limit]
	}
	return out, nil
}

func (r memoryOpportunityRepo) ListBlocked(ctx context.Context, maxRiskScore float64, limit int) ([]entity.Opportunity, error) {
	blocked := entity.OpportunityStatusBlockedRisk
	all, _ := r.List(ctx, dto.ListOpportunitiesParam{Status: &blocked})
	var out []entity.Opportunity
	for _, o := range all {
		if o.RiskScore <= maxRiskScore && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memoryOpportunityRepo) UpdateStatus(ctx context.Context, id uint, status entity.OpportunityStatus, note string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.opportunities {
		if r.s.opportunities[i].ID == id {
			r.s.opportunities[i].Status = status
			r.s.opportunities[i].ReviewNote = note
			r.s.opportunities[i].ReviewedAt = utils.ToPointer(time.Now())
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memoryOpportunityRepo) CountByStatus(ctx context.Context, status entity.OpportunityStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, o := range r.s.opportunities {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

type memoryTradeRepo struct{ s *memoryStore }

func (r memoryTradeRepo) Create(ctx context.Context, t *entity.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = uint(len(r.s.trades) + 1)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	stored := *t
	stored.Opportunity = nil
	r.s.trades = append(r.s.trades, stored)
	return nil
}

func (r memoryTradeRepo) CreateApproved(ctx context.Context, t *entity.Trade, note string) error {
	r.s.mu.Lock()
	if r.s.approveErr != nil {
		r.s.mu.Unlock()
		return r.s.approveErr
	}
	idx := -1
	for i := range r.s.opportunities {
		if r.s.opportunities[i].ID == t.OpportunityID {
			idx = i
		}
	}
	if idx < 0 || r.s.opportunities[idx].Status != entity.OpportunityStatusPendingReview {
		r.s.mu.Unlock()
		return fmt.Errorf("%w: opportunity %d is not pending_review", repository.ErrInvalidTransition, t.OpportunityID)
	}
	r.s.opportunities[idx].Status = entity.OpportunityStatusApprovedForBuy
	r.s.opportunities[idx].ReviewNote = note
	r.s.opportunities[idx].ReviewedAt = utils.ToPointer(time.Now())
	r.s.mu.Unlock()
	return r.Create(ctx, t)
}

func (r memoryTradeRepo) GetByID(ctx context.Context, id uint) (*entity.Trade, error) {
	opps := memoryOpportunityRepo(r)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.trades {
		if t.ID == id {
			for _, o := range r.s.opportunities {
				if o.ID == t.OpportunityID {
					o = opps.hydrate(o)
					t.Opportunity = &o
				}
			}
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memoryTradeRepo) List(ctx context.Context, status *entity.TradeStatus, limit int) ([]entity.Trade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Trade
	for _, t := range r.s.trades {
		if (status == nil || t.Status == *status) && (limit <= 0 || len(out) < limit) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memoryTradeRepo) ListOpen(ctx context.Context, limit int) ([]entity.Trade, error) {
	r.s.mu.Lock()
	var ids []uint
	for _, t := range r.s.trades {
		if t.IsActive() && (limit <= 0 || len(ids) < limit) {
			ids = append(ids, t.ID)
		}
	}
	r.s.mu.Unlock()

	out := make([]entity.Trade, 0, len(ids))
	for _, id := range ids {
		t, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r memoryTradeRepo) CountActive(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.trades {
		if t.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r memoryTradeRepo) update(id uint, fn func(t *entity.Trade)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.trades {
		if r.s.trades[i].ID == id {
			fn(&r.s.trades[i])
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memoryTradeRepo) UpdateTargetPrice(ctx context.Context, id uint, price float64, note string) error {
	return r.update(id, func(t *entity.Trade) {
		t.TargetSellPrice = utils.ToPointer(price)
		t.Note = note
	})
}

func (r memoryTradeRepo) MarkListed(ctx context.Context, id uint, listingURL, note string) error {
	return r.update(id, func(t *entity.Trade) {
		t.Status = entity.TradeStatusListedForSale
		t.ListingURL = listingURL
		t.Note = note
		t.ListedAt = utils.ToPointer(time.Now())
	})
}

func (r memoryTradeRepo) MarkSold(ctx context.Context, id uint, soldPrice float64, note string) error {
	return r.update(id, func(t *entity.Trade) {
		t.Status = entity.TradeStatusSold
		t.SoldPrice = utils.ToPointer(soldPrice)
		t.Note = note
		t.SoldAt = utils.ToPointer(time.Now())
	})
}

func (r memoryTradeRepo) RecentSoldPricesByTitleKeyword(ctx context.Context, keyword string, limit int) ([]float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var prices []float64
	for _, t := range r.s.trades {
		if t.Status != entity.TradeStatusSold || t.SoldPrice == nil {
			continue
		}
		for _, o := range r.s.opportunities {
			if o.ID != t.OpportunityID {
				continue
			}
			for _, l := range r.s.listings {
				if l.ID == o.ListingID && strings.Contains(strings.ToLower(l.Title), keyword) && len(prices) < limit {
					prices = append(prices, *t.SoldPrice)
				}
			}
		}
	}
	return prices, nil
}

func (r memoryTradeRepo) Metrics(ctx context.Context) (*dto.TradeMetrics, error) {
	pending, _ := memoryOpportunityRepo(r).CountByStatus(ctx, entity.OpportunityStatusPendingReview)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := &dto.TradeMetrics{PendingReview: pending}
	for _, t := range r.s.trades {
		switch {
		case t.IsActive():
			m.ActiveTrades++
		case t.Status == entity.TradeStatusSold:
			m.SoldTrades++
			m.GrossProfit += utils.Deref(t.SoldPrice) - t.ApprovedBuyPrice
		}
	}
	return m, nil
}

// recordingPublisher collects published payloads instead of dispatching them.
type recordingPublisher struct {
	mu       sync.Mutex
	payloads []event.Payload
}

func (p *recordingPublisher) Publish(payload event.Payload) error {
	if _, err := event.New(payload); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.payloads))
	for _, payload := range p.payloads {
		out = append(out, payload.EventType())
	}
	return out
}

// scriptedMarketplace returns canned pages or errors per keyword.
type scriptedMarketplace struct {
	mu       sync.Mutex
	items    map[string][]dto.RawItem
	errs     []error
	requests []dto.FetchRequest
}

func (m *scriptedMarketplace) Fetch(ctx context.Context, req dto.FetchRequest) ([]dto.RawItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if req.Page > 1 {
		return nil, nil
	}
	return m.items[req.Keyword], nil
}

func (m *scriptedMarketplace) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// blockingSearch holds every search open until its context ends and reports
// the context error it saw.
type blockingSearch struct {
	started  chan struct{}
	finished chan error
}

func newBlockingSearch() *blockingSearch {
	return &blockingSearch{started: make(chan struct{}, 1), finished: make(chan error, 1)}
}

func (b *blockingSearch) Search(ctx context.Context, keyword string, pages int, useProxy bool) ([]dto.RawItem, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	select {
	case b.finished <- ctx.Err():
	default:
	}
	return nil, ctx.Err()
}

func (b *blockingSearch) CookieError() string { return "" }
