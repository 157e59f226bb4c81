package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/pkg/common"
	"golang-cardflip-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultMaxLen = 10000

// Publisher mirrors every bus event onto a Redis stream so other processes
// can follow the engine. It is registered as a bus observer.
type Publisher struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
	timeout     time.Duration
	log         *logger.Logger
}

// NewPublisher creates a Publisher writing to the engine events stream,
// trimmed to roughly maxLen entries.
func NewPublisher(redisClient *redis.Client, maxLen int64, log *logger.Logger) *Publisher {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Publisher{
		redisClient: redisClient,
		stream:      common.RedisStreamEngineEvents,
		maxLen:      maxLen,
		timeout:     2 * time.Second,
		log:         log,
	}
}

// Encode renders an event as stream entry fields.
func Encode(evt event.Event) (map[string]interface{}, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", evt.Type, err)
	}
	return map[string]interface{}{
		"event_id":  uuid.NewString(),
		"type":      string(evt.Type),
		"timestamp": evt.Timestamp.UTC().Format(time.RFC3339Nano),
		"payload":   string(payload),
	}, nil
}

// Handle is the bus observer. A failed XADD is returned so the bus counts it.
func (p *Publisher) Handle(ctx context.Context, evt event.Event) error {
	values, err := Encode(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", evt.Type, p.stream, err)
	}
	p.log.Debug("Event published to stream",
		logger.StringField("stream", p.stream),
		logger.StringField("event_type", string(evt.Type)),
		logger.StringField("event_id", values["event_id"].(string)))
	return nil
}
