// Package publish fans trade log entries out to a Redis stream so other
// processes can follow a run as it happens.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/idhash"
)

// Default stream settings.
const (
	DefaultStream = "trader:entries"
	DefaultMaxLen = 10000
)

// streamAdder is the subset of the Redis client used by the publisher.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Options configures a StreamPublisher.
type Options struct {
	Stream string
	MaxLen int64 // approximate cap; zero uses DefaultMaxLen
}

// StreamPublisher appends every entry to a Redis stream with XADD.
// It implements the feed sink interface.
type StreamPublisher struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewStreamPublisher creates a publisher over an existing client.
func NewStreamPublisher(client redis.Cmdable, opts Options) *StreamPublisher {
	return newStreamPublisher(client, opts)
}

func newStreamPublisher(client streamAdder, opts Options) *StreamPublisher {
	stream := opts.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// NewClient parses a redis:// URL and returns a client.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Name returns the sink name.
func (p *StreamPublisher) Name() string { return "redis" }

// Write publishes the entry. The message carries the entry key, run id,
// status and the JSON-encoded entry.
func (p *StreamPublisher) Write(ctx context.Context, entry domain.TradeLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"key":    idhash.ComputeEntryKey(entry.RunID, entry.Sequence),
			"run_id": entry.RunID,
			"status": string(entry.Status),
			"entry":  string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
