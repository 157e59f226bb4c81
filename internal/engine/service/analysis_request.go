package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/pkg/common"
	"golang-cardflip-engine/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// AnalysisRequest is the payload carried on the analysis request stream.
type AnalysisRequest struct {
	ListingID   uint   `json:"listing_id"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// AnalysisRequestService moves analysis requests from other processes through
// a Redis stream into the analysis engine.
type AnalysisRequestService interface {
	Enqueue(ctx context.Context, req AnalysisRequest) (string, error)
	ProcessTask(ctx context.Context)
	ProcessRetries(ctx context.Context)
}

type analysisRequestService struct {
	cfg         config.Analysis
	redisClient *redis.Client
	engine      AnalysisEngine
	log         *logger.Logger
}

// NewAnalysisRequestService creates a new AnalysisRequestService.
func NewAnalysisRequestService(cfg config.Analysis, redisClient *redis.Client, engine AnalysisEngine, log *logger.Logger) AnalysisRequestService {
	return &analysisRequestService{cfg: cfg, redisClient: redisClient, engine: engine, log: log}
}

func (s *analysisRequestService) Enqueue(ctx context.Context, req AnalysisRequest) (string, error) {
	if req.ListingID == 0 {
		return "", fmt.Errorf("%w: listing_id is required", repository.ErrInvalidInput)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis request: %w", err)
	}
	id, err := s.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamAnalysisRequest,
		Values: map[string]interface{}{"payload": string(payload)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue analysis request: %w", err)
	}
	return id, nil
}

// ProcessTask reads and handles one new request.
func (s *analysisRequestService) ProcessTask(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamAnalysisRequest, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		// idle timeouts and shutdown are expected
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return
		}
		s.log.Error("Failed to read from stream", logger.ErrorField(err), logger.StringField("stream", common.RedisStreamAnalysisRequest))
		return
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}
	s.handle(ctx, streams[0].Messages[0])
}

// ProcessRetries claims one request that stayed pending longer than the max
// idle time. Requests that exhausted their retries are dropped.
func (s *analysisRequestService) ProcessRetries(ctx context.Context) {
	msgs, _, err := s.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   common.RedisStreamAnalysisRequest,
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer + "-retry",
		MinIdle:  s.cfg.RequestMaxIdle,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.log.Error("Failed to claim analysis request on retry", logger.ErrorField(err))
		return
	}
	if len(msgs) == 0 {
		return
	}
	msg := msgs[0]

	pending, err := s.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: common.RedisStreamAnalysisRequest,
		Group:  common.RedisStreamGroup,
		Start:  msg.ID,
		End:    msg.ID,
		Count:  1,
	}).Result()
	if err != nil {
		s.log.Error("Failed to read pending info", logger.ErrorField(err), logger.StringField("message_id", msg.ID))
		return
	}
	// RetryCount includes the first delivery
	if len(pending) > 0 && s.cfg.RequestMaxRetries > 0 && pending[0].RetryCount > s.cfg.RequestMaxRetries+1 {
		s.log.Warn("Dropping analysis request after max retries",
			logger.StringField("message_id", msg.ID),
			logger.IntField("retries", int(pending[0].RetryCount)))
		s.ackAndDelete(ctx, msg.ID)
		return
	}
	s.handle(ctx, msg)
}

func (s *analysisRequestService) handle(ctx context.Context, msg redis.XMessage) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		s.log.Error("field 'payload' not found or not a string in stream message", logger.StringField("message_id", msg.ID))
		s.ackAndDelete(ctx, msg.ID)
		return
	}
	var req AnalysisRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil || req.ListingID == 0 {
		s.log.Error("Malformed analysis request", logger.StringField("message_id", msg.ID), logger.StringField("payload", raw))
		s.ackAndDelete(ctx, msg.ID)
		return
	}

	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	analysis, err := s.engine.AnalyzeListing(runCtx, req.ListingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("Analysis requested for unknown listing", logger.IntField("listing_id", int(req.ListingID)))
			s.ackAndDelete(ctx, msg.ID)
			return
		}
		// left pending for ProcessRetries
		s.log.Error("Failed to analyze requested listing",
			logger.ErrorField(err),
			logger.IntField("listing_id", int(req.ListingID)),
			logger.StringField("message_id", msg.ID))
		return
	}
	s.ackAndDelete(ctx, msg.ID)
	s.log.Info("Analysis request processed",
		logger.IntField("listing_id", int(req.ListingID)),
		logger.StringField("status", string(analysis.Status)),
		logger.StringField("requested_by", req.RequestedBy))
}

func (s *analysisRequestService) ackAndDelete(ctx context.Context, id string) {
	pipe := s.redisClient.TxPipeline()
	pipe.XAck(ctx, common.RedisStreamAnalysisRequest, common.RedisStreamGroup, id)
	pipe.XDel(ctx, common.RedisStreamAnalysisRequest, id)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("Failed to acknowledge analysis request", logger.ErrorField(err), logger.StringField("message_id", id))
	}
}
