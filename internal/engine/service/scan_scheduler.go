package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/pkg/common"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const (
	minScanInterval    = 10 * time.Second
	scannerStopTimeout = 3 * time.Second
	defaultScanSeenTTL = time.Hour
)

// ScanSchedulerService scans a keyword list on a fixed interval.
type ScanSchedulerService interface {
	Start(ctx context.Context) dto.StartResult
	Stop() dto.StopResult
	ScanOnce(ctx context.Context) dto.ScanResult
	Status() dto.ScannerStatus
	SetKeywords(keywords []string) []string
	AddKeyword(keyword string) []string
	Keywords() []string
}

type scanSchedulerService struct {
	cfg       config.Scanner
	search    ItemSearchService
	listings  repository.ListingRepository
	publisher EventPublisher
	log       *logger.Logger
	seen      *cache.Cache

	scanMu sync.Mutex

	mu           sync.Mutex
	keywords     []string
	running      bool
	cron         *cron.Cron
	runs         int
	lastRunAt    *time.Time
	lastFetched  int
	lastInserted int
	lastError    string
}

// NewScanSchedulerService creates a new ScanSchedulerService.
func NewScanSchedulerService(
	cfg config.Scanner,
	search ItemSearchService,
	listings repository.ListingRepository,
	publisher EventPublisher,
	log *logger.Logger,
) ScanSchedulerService {
	ttl := cfg.SeenTTL
	if ttl <= 0 {
		ttl = defaultScanSeenTTL
	}
	return &scanSchedulerService{
		cfg:       cfg,
		search:    search,
		listings:  listings,
		publisher: publisher,
		log:       log,
		seen:      cache.New(ttl, 2*ttl),
		keywords:  utils.UniqueTrimmed(cfg.Keywords),
	}
}

func (s *scanSchedulerService) interval() time.Duration {
	if s.cfg.Interval < minScanInterval {
		return minScanInterval
	}
	return s.cfg.Interval
}

// Start schedules ScanOnce every interval and runs the first scan immediately.
func (s *scanSchedulerService) Start(ctx context.Context) dto.StartResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return dto.StartResult{Started: false, Message: "already running"}
	}

	// Stop halts the timer only; a running scan finishes or hits RequestTimeout.
	runCtx := context.WithoutCancel(ctx)
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", s.interval())
	if _, err := c.AddFunc(spec, func() { s.ScanOnce(runCtx) }); err != nil {
		return dto.StartResult{Started: false, Message: err.Error()}
	}
	c.Start()

	s.cron = c
	s.running = true

	utils.GoSafe(func() { s.ScanOnce(runCtx) })

	s.log.Info("Scan scheduler started",
		logger.StringField("interval", s.interval().String()),
		logger.IntField("keywords", len(s.keywords)))
	return dto.StartResult{Started: true, Message: "started"}
}

// Stop halts the timer and waits up to three seconds for a running scan.
func (s *scanSchedulerService) Stop() dto.StopResult {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return dto.StopResult{Stopped: false, Message: "not running"}
	}
	c := s.cron
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(scannerStopTimeout):
		s.log.Warn("Scan scheduler did not stop in time", logger.DurationField("timeout", scannerStopTimeout))
	}
	s.log.Info("Scan scheduler stopped")
	return dto.StopResult{Stopped: true, Message: "stopped"}
}

type keywordScan struct {
	fetched  int
	inserted int
	errs     []string
}

// ScanOnce fetches every keyword once. Per-keyword failures are collected and
// do not abort the other keywords.
func (s *scanSchedulerService) ScanOnce(ctx context.Context) dto.ScanResult {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	keywords := s.Keywords()
	results := make([]keywordScan, len(keywords))

	var g errgroup.Group
	g.SetLimit(max(s.cfg.MaxConcurrentKeywords, 1))
	for i, kw := range keywords {
		g.Go(func() error {
			results[i] = s.scanKeyword(ctx, kw)
			return nil
		})
	}
	_ = g.Wait()

	var result dto.ScanResult
	for _, r := range results {
		result.Fetched += r.fetched
		result.Inserted += r.inserted
		result.Errors = append(result.Errors, r.errs...)
	}

	s.mu.Lock()
	s.runs++
	s.lastRunAt = utils.ToPointer(time.Now())
	s.lastFetched = result.Fetched
	s.lastInserted = result.Inserted
	s.lastError = strings.Join(result.Errors, "; ")
	s.mu.Unlock()

	if len(result.Errors) > 0 {
		s.log.Warn("Scan finished with errors",
			logger.IntField("fetched", result.Fetched),
			logger.IntField("inserted", result.Inserted),
			logger.StringField("errors", strings.Join(result.Errors, "; ")))
	} else {
		s.log.Debug("Scan finished",
			logger.IntField("fetched", result.Fetched),
			logger.IntField("inserted", result.Inserted))
	}
	return result
}

func (s *scanSchedulerService) scanKeyword(ctx context.Context, kw string) keywordScan {
	var r keywordScan
	fetchCtx := ctx
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout*time.Duration(max(s.cfg.Pages, 1)))
		defer cancel()
	}
	items, err := s.search.Search(fetchCtx, kw, s.cfg.Pages, s.cfg.UseProxy)
	r.fetched = len(items)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %v", kw, err))
		return r
	}

	now := time.Now()
	for _, item := range items {
		listing, ok := BuildListing(item, common.SourceMarketplaceScan, s.cfg.MaxPrice, now)
		if !ok {
			continue
		}
		key, dedupable := listing.DedupKey()
		if dedupable {
			if _, found := s.seen.Get(key); found {
				continue
			}
		}

		isNew, err := s.listings.InsertIfAbsent(ctx, &listing)
		if err != nil {
			r.errs = append(r.errs, fmt.Sprintf("%s: %v", kw, err))
			return r
		}
		if dedupable {
			s.seen.SetDefault(key, struct{}{})
		}
		if !isNew {
			continue
		}
		r.inserted++
		if s.publisher != nil {
			if err := s.publisher.Publish(event.ItemFound{ListingID: listing.ID, Keyword: kw, Source: common.SourceMarketplaceScan}); err != nil {
				s.log.Error("Failed to publish event", logger.ErrorField(err))
			}
		}
	}
	return r
}

// Status returns a snapshot of the scheduler.
func (s *scanSchedulerService) Status() dto.ScannerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dto.ScannerStatus{
		IsRunning:    s.running,
		Keywords:     append([]string(nil), s.keywords...),
		Interval:     s.interval().String(),
		Pages:        s.cfg.Pages,
		Runs:         s.runs,
		LastRunAt:    s.lastRunAt,
		LastFetched:  s.lastFetched,
		LastInserted: s.lastInserted,
		LastError:    s.lastError,
	}
}

// SetKeywords replaces the keyword list, trimmed and deduplicated in order.
func (s *scanSchedulerService) SetKeywords(keywords []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = utils.UniqueTrimmed(keywords)
	return append([]string(nil), s.keywords...)
}

// AddKeyword appends a keyword unless it is blank or already present.
func (s *scanSchedulerService) AddKeyword(keyword string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = utils.UniqueTrimmed(append(s.keywords, keyword))
	return append([]string(nil), s.keywords...)
}

func (s *scanSchedulerService) Keywords() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keywords...)
}
