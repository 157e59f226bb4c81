package consumer

import (
	"context"
	"sync"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/pkg/common"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"
)

// RedisConsumer runs the analysis request stream loop and the periodic jobs.
type RedisConsumer struct {
	cfg      *config.Config
	requests service.AnalysisRequestService
	analysis service.AnalysisEngine
	trades   service.TradeService
	logger   *logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer. requests may be nil when
// Redis is disabled; the periodic jobs still run.
func NewRedisConsumer(
	cfg *config.Config,
	requests service.AnalysisRequestService,
	analysis service.AnalysisEngine,
	trades service.TradeService,
	log *logger.Logger,
) *RedisConsumer {
	return &RedisConsumer{
		cfg:      cfg,
		requests: requests,
		analysis: analysis,
		trades:   trades,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Start begins the consumer's task processing loops.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("Redis consumer started")
	if c.requests != nil {
		c.RegisterStreamHandler(ctx, c.requests.ProcessTask, common.RedisStreamAnalysisRequest, c.cfg.Analysis.RequestTimeout+5*time.Second)
		c.RegisterTickerHandler(ctx, c.requests.ProcessRetries, c.cfg.Analysis.RequestRetryInterval, c.cfg.Analysis.RequestTimeout, common.RedisStreamAnalysisRequest+"-retry")
	}
	if c.cfg.Analysis.SweepEnabled {
		c.RegisterTickerHandler(ctx, c.AnalyzeOpen, c.cfg.Analysis.SweepInterval, c.cfg.Analysis.SweepInterval, "analyze-open")
	}
	if c.cfg.Pricing.AutoRepriceEnabled {
		c.RegisterTickerHandler(ctx, c.RepriceOpen, c.cfg.Pricing.AutoRepriceInterval, 5*time.Minute, "reprice-open")
	}
}

func (c *RedisConsumer) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.StringField("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stream handler stopping due to context cancellation", logger.StringField("stream", streamName))
				return
			case <-c.stopChan:
				c.logger.Info("Stream handler stopping", logger.StringField("stream", streamName))
				return
			default:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			}
		}
	})
}

func (c *RedisConsumer) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.StringField("name", name),
		logger.DurationField("interval", interval),
		logger.DurationField("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.StringField("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.StringField("name", name))
				return
			}
		}
	})
}

// AnalyzeOpen is the periodic sweep over open listings.
func (c *RedisConsumer) AnalyzeOpen(ctx context.Context) {
	res, err := c.analysis.AnalyzeOpen(ctx, c.cfg.Analysis.OpenBatchLimit)
	if err != nil {
		c.logger.Error("Periodic analysis failed", logger.ErrorField(err))
		return
	}
	c.logger.Info("Periodic analysis finished",
		logger.IntField("processed", res.Processed),
		logger.IntField("pending_review", res.PendingReview),
		logger.IntField("blocked_risk", res.BlockedRisk),
		logger.IntField("failed", res.Failed))
}

// RepriceOpen applies pricing plans to every open trade in the configured mode.
func (c *RedisConsumer) RepriceOpen(ctx context.Context) {
	mode, ok := dto.ParsePricingMode(c.cfg.Pricing.AutoRepriceMode)
	if !ok {
		c.logger.Warn("Unknown auto reprice mode, using balanced", logger.StringField("mode", c.cfg.Pricing.AutoRepriceMode))
	}
	res, err := c.trades.RepriceOpen(ctx, mode, 0, true)
	if err != nil {
		c.logger.Error("Periodic reprice failed", logger.ErrorField(err))
		return
	}
	c.logger.Info("Periodic reprice finished",
		logger.IntField("planned", len(res.Plans)),
		logger.IntField("applied", res.Applied))
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}
