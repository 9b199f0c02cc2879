package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

const (
	GradeBatchSize    = 50
	GradeBatchTimeout = 2 * time.Second
	GradePollTimeout  = 1 * time.Second
)

// GradeStore is where drained grade events end up.
type GradeStore interface {
	InsertBatch(ctx context.Context, events []model.GradeEvent) error
	Insert(ctx context.Context, ev model.GradeEvent) error
}

// GradeWorker drains publish_grades_queue into PostgreSQL in batches.
type GradeWorker struct {
	store GradeStore
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewGradeWorker(store GradeStore, rdb *redis.Client, log zerolog.Logger) *GradeWorker {
	return &GradeWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "grade_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds. Call in a goroutine.
func (w *GradeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradeWorker started")

	batch := make([]model.GradeEvent, 0, GradeBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= GradeBatchSize || time.Since(lastFlush) >= GradeBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, GradePollTimeout, config.WorkerKey.PublishGradesQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					// Avoid a hot loop while Redis is unreachable.
					time.Sleep(GradePollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev model.GradeEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid grade payload dropped")
				continue
			}

			batch = append(batch, ev)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-event fallback
// ----------------------------------------------------------------

func (w *GradeWorker) flushSafe(ctx context.Context, batch []model.GradeEvent) {
	if len(batch) == 0 {
		return
	}

	err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("grade batch stored")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("bulk grade insert failed, using fallback")

	for _, ev := range batch {
		if err := w.store.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("grade_id", ev.ID.String()).Msg("grade insert failed, requeueing")
			w.requeue(ctx, ev)
		}
	}
}

func (w *GradeWorker) requeue(ctx context.Context, ev model.GradeEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PublishGradesQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("grade_id", ev.ID.String()).Msg("requeue failed, grade event lost")
	}
}
