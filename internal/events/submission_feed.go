package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

// SubmissionFeed broadcasts submission events per block usage over Redis Pub/Sub.
type SubmissionFeed struct {
	rdb *redis.Client
}

// NewSubmissionFeed creates a new SubmissionFeed.
func NewSubmissionFeed(rdb *redis.Client) *SubmissionFeed {
	return &SubmissionFeed{rdb: rdb}
}

// Publish broadcasts ev on the channel of ev.UsageID.
func (f *SubmissionFeed) Publish(ctx context.Context, ev model.SubmissionEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode submission event: %w", err)
	}
	channel := config.CacheKey.SubmissionChannel(ev.UsageID)
	if err := f.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish submission event: %w", err)
	}
	return nil
}

// Subscribe attaches to the channel of usageID. Callers must Close the result.
func (f *SubmissionFeed) Subscribe(ctx context.Context, usageID string) *redis.PubSub {
	return f.rdb.Subscribe(ctx, config.CacheKey.SubmissionChannel(usageID))
}
