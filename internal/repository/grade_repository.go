package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

// GradeRepository stores published grade events.
type GradeRepository struct {
	pool *pgxpool.Pool
}

// NewGradeRepository creates a new GradeRepository.
func NewGradeRepository(pool *pgxpool.Pool) *GradeRepository {
	return &GradeRepository{pool: pool}
}

// InsertBatch writes events with a single UNNEST insert. Events already
// stored (same id) are skipped, so re-queued events are harmless.
func (r *GradeRepository) InsertBatch(ctx context.Context, events []model.GradeEvent) error {
	n := len(events)
	if n == 0 {
		return nil
	}

	ids := make([]uuid.UUID, n)
	usages := make([]string, n)
	courses := make([]string, n)
	learners := make([]string, n)
	values := make([]float64, n)
	maxValues := make([]float64, n)
	publishedAts := make([]time.Time, n)

	for i, ev := range events {
		ids[i] = ev.ID
		usages[i] = ev.UsageID
		courses[i] = ev.CourseID
		learners[i] = ev.LearnerID
		values[i] = ev.Value
		maxValues[i] = ev.MaxValue
		publishedAts[i] = ev.PublishedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO grade_events (id, usage_id, course_id, learner_id, value, max_value, published_at)
		SELECT * FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::text[],
			$4::text[],
			$5::float8[],
			$6::float8[],
			$7::timestamptz[]
		)
		ON CONFLICT (id) DO NOTHING`,
		ids, usages, courses, learners, values, maxValues, publishedAts)
	return err
}

// Insert writes a single event. Used as the fallback when a batch fails.
func (r *GradeRepository) Insert(ctx context.Context, ev model.GradeEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO grade_events (id, usage_id, course_id, learner_id, value, max_value, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.UsageID, ev.CourseID, ev.LearnerID, ev.Value, ev.MaxValue, ev.PublishedAt)
	return err
}

// ListByUsage returns the most recent grade events of a block usage.
func (r *GradeRepository) ListByUsage(ctx context.Context, usageID string, limit int) ([]model.GradeEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, usage_id, course_id, learner_id, value, max_value, published_at
		 FROM grade_events
		 WHERE usage_id = $1
		 ORDER BY published_at DESC
		 LIMIT $2`, usageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.GradeEvent
	for rows.Next() {
		var ev model.GradeEvent
		if err := rows.Scan(&ev.ID, &ev.UsageID, &ev.CourseID, &ev.LearnerID, &ev.Value, &ev.MaxValue, &ev.PublishedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
