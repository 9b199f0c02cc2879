package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

// GradeQueue publishes grade events onto the Redis list drained by the
// grade worker.
type GradeQueue struct {
	rdb *redis.Client
}

// NewGradeQueue creates a new GradeQueue.
func NewGradeQueue(rdb *redis.Client) *GradeQueue {
	return &GradeQueue{rdb: rdb}
}

// Publish enqueues ev. It returns once Redis has accepted the event.
func (q *GradeQueue) Publish(ctx context.Context, ev model.GradeEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode grade event: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PublishGradesQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue grade event: %w", err)
	}
	return nil
}
