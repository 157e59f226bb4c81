package service

import (
	"context"
	"fmt"
	"math"
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
)

const monitorStopTimeout = 5 * time.Second

// AlertSink delivers operator alerts. Delivery is best effort.
type AlertSink interface {
	SendAlert(subject, body string) bool
}

// MarketMonitorService polls one keyword in a supervised loop guarded by a
// circuit breaker.
type MarketMonitorService interface {
	Start(ctx context.Context) dto.StartResult
	Stop() dto.StopResult
	RunOnce(ctx context.Context) (dto.MonitorRunResult, error)
	Status() dto.MonitorStatus
}

type marketMonitorService struct {
	cfg       config.Monitor
	search    ItemSearchService
	listings  repository.ListingRepository
	publisher EventPublisher
	alerts    AlertSink
	delay     *DelaySampler
	log       *logger.Logger
	now       func() time.Time

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	runs         int
	lastRunAt    *time.Time
	lastInserted int
	lastError    string
	errorCount   int
	circuit      dto.CircuitState
}

// NewMarketMonitorService creates a new MarketMonitorService. alerts may be nil.
func NewMarketMonitorService(
	cfg config.Monitor,
	search ItemSearchService,
	listings repository.ListingRepository,
	publisher EventPublisher,
	alerts AlertSink,
	delay *DelaySampler,
	log *logger.Logger,
) MarketMonitorService {
	if delay == nil {
		delay = NewDelaySampler(cfg, nil)
	}
	return &marketMonitorService{
		cfg:       cfg,
		search:    search,
		listings:  listings,
		publisher: publisher,
		alerts:    alerts,
		delay:     delay,
		log:       log,
		now:       time.Now,
	}
}

// Start launches the loop unless it is running or the circuit is cooling down.
func (m *marketMonitorService) Start(ctx context.Context) dto.StartResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return dto.StartResult{Started: false, Message: "already running"}
	}
	if m.circuit.Open && m.circuit.OpenedAt != nil {
		remaining := m.cfg.Cooldown - m.now().Sub(*m.circuit.OpenedAt)
		if remaining > 0 {
			secs := int(math.Ceil(remaining.Seconds()))
			return dto.StartResult{
				Started:                  false,
				Message:                  fmt.Sprintf("circuit cooldown %ds", secs),
				CooldownRemainingSeconds: secs,
			}
		}
	}

	m.resetCircuit()
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	// Stop only closes stopCh; an in-flight fetch runs until RequestTimeout.
	stop, done := m.stopCh, m.doneCh
	loopCtx := context.WithoutCancel(ctx)
	utils.GoSafe(func() {
		m.loop(loopCtx, stop, done)
	})

	m.log.Info("Market monitor started",
		logger.StringField("keyword", m.cfg.Keyword),
		logger.Float64Field("max_price", m.cfg.MaxPrice))
	return dto.StartResult{Started: true, Message: "started"}
}

// Stop signals the loop and waits up to five seconds for it to exit.
func (m *marketMonitorService) Stop() dto.StopResult {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return dto.StopResult{Stopped: false, Message: "not running"}
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(monitorStopTimeout):
		m.log.Warn("Market monitor did not stop in time", logger.DurationField("timeout", monitorStopTimeout))
	}
	m.log.Info("Market monitor stopped")
	return dto.StopResult{Stopped: true, Message: "stopped"}
}

// RunOnce performs one fetch and insert cycle.
func (m *marketMonitorService) RunOnce(ctx context.Context) (dto.MonitorRunResult, error) {
	m.mu.Lock()
	if m.circuit.Open {
		reason := m.circuit.Reason
		m.mu.Unlock()
		return dto.MonitorRunResult{CircuitOpen: true, Reason: reason}, nil
	}
	m.mu.Unlock()

	fetchCtx := ctx
	if m.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, m.cfg.RequestTimeout*time.Duration(max(m.cfg.Pages, 1)))
		defer cancel()
	}

	items, err := m.search.Search(fetchCtx, m.cfg.Keyword, m.cfg.Pages, m.cfg.UseProxy)
	if err != nil {
		return m.fail(ctx, len(items), err)
	}

	inserted := 0
	now := m.now()
	for _, item := range items {
		listing, ok := BuildListing(item, common.SourceMarketplaceMonitor, m.cfg.MaxPrice, now)
		if !ok {
			continue
		}
		isNew, err := m.listings.InsertIfAbsent(ctx, &listing)
		if err != nil {
			return m.storeFailed(len(items), inserted, err)
		}
		if !isNew {
			continue
		}
		inserted++
		m.publish(event.ItemFound{ListingID: listing.ID, Keyword: m.cfg.Keyword, Source: common.SourceMarketplaceMonitor})
	}

	m.mu.Lock()
	m.runs++
	m.lastRunAt = utils.ToPointer(now)
	m.lastInserted = inserted
	m.lastError = ""
	m.circuit.ConsecutiveErrors = 0
	m.circuit.Consecutive403 = 0
	m.mu.Unlock()

	return dto.MonitorRunResult{Fetched: len(items), Inserted: inserted}, nil
}

// Status returns a snapshot of the monitor.
func (m *marketMonitorService) Status() dto.MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return dto.MonitorStatus{
		IsRunning:    m.running,
		Runs:         m.runs,
		LastRunAt:    m.lastRunAt,
		LastInserted: m.lastInserted,
		LastError:    m.lastError,
		Circuit:      m.circuit,
		ErrorCount:   m.errorCount,
		Keyword:      m.cfg.Keyword,
		MaxPrice:     m.cfg.MaxPrice,
		CookieError:  m.search.CookieError(),
	}
}

func (m *marketMonitorService) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		if m.stopCh == stop {
			m.running = false
		}
		m.mu.Unlock()
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		result, err := m.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			m.log.Warn("Market monitor cycle failed",
				logger.StringField("keyword", m.cfg.Keyword),
				logger.ErrorField(err))
		}
		if result.CircuitOpen || m.circuitOpen() {
			return
		}

		wait := m.delay.Next(m.now())
		m.log.Debug("Market monitor sleeping", logger.DurationField("delay", wait))
		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// storeFailed records a persistence error. Only fetch failures count toward the circuit.
func (m *marketMonitorService) storeFailed(fetched, inserted int, err error) (dto.MonitorRunResult, error) {
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
	return dto.MonitorRunResult{Fetched: fetched, Inserted: inserted}, err
}

// fail records a failed fetch. Cancellation by the caller is not counted.
func (m *marketMonitorService) fail(ctx context.Context, fetched int, err error) (dto.MonitorRunResult, error) {
	if ctx.Err() != nil {
		return dto.MonitorRunResult{Fetched: fetched}, err
	}
	m.registerError(err)

	m.mu.Lock()
	result := dto.MonitorRunResult{Fetched: fetched, CircuitOpen: m.circuit.Open, Reason: m.circuit.Reason}
	m.mu.Unlock()
	return result, err
}

func (m *marketMonitorService) registerError(err error) {
	m.mu.Lock()
	m.errorCount++
	m.lastError = err.Error()
	m.circuit.ConsecutiveErrors++
	if repository.IsBlockedError(err) {
		m.circuit.Consecutive403++
	} else {
		m.circuit.Consecutive403 = 0
	}

	tripped := !m.circuit.Open &&
		(m.circuit.ConsecutiveErrors >= m.cfg.MaxErrors || m.circuit.Consecutive403 >= m.cfg.BlockThreshold)
	if tripped {
		m.circuit.Open = true
		m.circuit.Reason = fmt.Sprintf("circuit open after errors=%d, 403=%d", m.circuit.ConsecutiveErrors, m.circuit.Consecutive403)
		m.circuit.OpenedAt = utils.ToPointer(m.now())
	}
	circuit, lastError := m.circuit, m.lastError
	m.mu.Unlock()

	if !tripped {
		return
	}

	m.log.Warn("Market monitor circuit opened",
		logger.StringField("reason", circuit.Reason),
		logger.StringField("keyword", m.cfg.Keyword),
		logger.StringField("last_error", lastError))
	m.publish(event.CircuitOpened{Reason: circuit.Reason, Keyword: m.cfg.Keyword, Circuit: circuit})

	if m.alerts != nil {
		subject, body := FormatCircuitAlert(circuit, m.cfg.Keyword, lastError)
		alerts := m.alerts
		utils.GoSafe(func() {
			alerts.SendAlert(subject, body)
		})
	}
}

func (m *marketMonitorService) resetCircuit() {
	m.circuit = dto.CircuitState{}
	m.errorCount = 0
}

func (m *marketMonitorService) circuitOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.circuit.Open
}

func (m *marketMonitorService) publish(p event.Payload) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(p); err != nil {
		m.log.Error("Failed to publish event",
			logger.StringField("event_type", string(p.EventType())),
			logger.ErrorField(err))
	}
}

// FormatCircuitAlert renders the operator alert sent when the circuit opens.
func FormatCircuitAlert(circuit dto.CircuitState, keyword, lastError string) (subject, body string) {
	subject = "[CardFlip Monitor] Circuit open: " + circuit.Reason
	body = strings.Join([]string{
		"Reason: " + circuit.Reason,
		"Keyword: " + keyword,
		"Last error: " + lastError,
		fmt.Sprintf("Consecutive errors: %d", circuit.ConsecutiveErrors),
		fmt.Sprintf("Consecutive 403: %d", circuit.Consecutive403),
	}, "\n")
	return subject, body
}
