// Package notifysink delivers lifecycle notifications to their destinations:
// a Redis stream for downstream consumers and a fan-out that feeds several
// sinks at once (typically the Mongo inbox plus the stream).
package notifysink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Sink accepts a batch of notifications.
type Sink interface {
	Notify(ctx context.Context, notes []models.Notification) error
}

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "fermehub:notifications"

// RedisStream appends each notification to a Redis stream with XADD.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStream returns a sink writing to stream. maxLen > 0 caps the stream
// length approximately (MAXLEN ~).
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Notify pipelines one XADD per notification.
func (s *RedisStream) Notify(ctx context.Context, notes []models.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, n := range notes {
			values, err := streamValues(n)
			if err != nil {
				return err
			}
			args := &redis.XAddArgs{Stream: s.stream, Values: values}
			if s.maxLen > 0 {
				args.MaxLen = s.maxLen
				args.Approx = true
			}
			p.XAdd(ctx, args)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// streamValues flattens the routing fields so consumers can filter without
// decoding; the full notification travels as JSON in "data".
func streamValues(n models.Notification) (map[string]any, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification %s: %w", n.ID.Hex(), err)
	}
	recipient := ""
	if n.RecipientID != nil {
		recipient = n.RecipientID.Hex()
	}
	return map[string]any{
		"id":             n.ID.Hex(),
		"type":           n.Type,
		"priority":       n.Priority,
		"farm_id":        n.RecipientFarmID.Hex(),
		"recipient_id":   recipient,
		"correlation_id": n.CorrelationID,
		"created_at":     n.CreatedAt.Unix(),
		"data":           string(data),
	}, nil
}

// Fanout hands every batch to each sink in turn. A failing sink does not
// stop the others; the errors are joined.
type Fanout struct {
	sinks []Sink
	log   *zap.Logger
}

// NewFanout skips nil sinks.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{log: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Notify(ctx context.Context, notes []models.Notification) error {
	var errs []error
	for i, s := range f.sinks {
		if err := s.Notify(ctx, notes); err != nil {
			f.log.Warn("notification sink failed",
				zap.Int("sink", i),
				zap.String("sink_type", fmt.Sprintf("%T", s)),
				zap.Int("count", len(notes)),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
