package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

// FieldRepository persists scoped block fields in block_fields.
type FieldRepository struct {
	pool *pgxpool.Pool
}

// NewFieldRepository creates a new FieldRepository.
func NewFieldRepository(pool *pgxpool.Pool) *FieldRepository {
	return &FieldRepository{pool: pool}
}

// Load returns every stored field for key. A key with no rows yields an
// empty set, which decodes to field defaults.
func (r *FieldRepository) Load(ctx context.Context, key model.ScopeKey) (model.Fields, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, value FROM block_fields
		 WHERE usage_id = $1 AND scope = $2 AND learner_id = $3`,
		key.UsageID, string(key.Scope), key.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	fields := model.Fields{}
	for rows.Next() {
		var (
			name  string
			value []byte
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields[name] = value
	}
	return fields, rows.Err()
}

// Save upserts all given fields for key in a single transaction, so a
// multi-field write is never observed half applied.
func (r *FieldRepository) Save(ctx context.Context, key model.ScopeKey, fields model.Fields) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	// Stable lock order between concurrent writers of the same key.
	sort.Strings(names)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, name := range names {
			_, err := tx.Exec(ctx,
				`INSERT INTO block_fields (usage_id, scope, learner_id, name, value, updated_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 ON CONFLICT (usage_id, scope, learner_id, name)
				 DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				key.UsageID, string(key.Scope), key.LearnerID, name, []byte(fields[name]))
			if err != nil {
				return fmt.Errorf("upsert field %s: %w", name, err)
			}
		}
		return nil
	})
}

// ListRows returns every stored row of one scope of a block usage, ordered
// by learner then field name.
func (r *FieldRepository) ListRows(ctx context.Context, usageID string, scope model.Scope) ([]model.FieldRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT usage_id, scope, learner_id, name, value, updated_at
		 FROM block_fields
		 WHERE usage_id = $1 AND scope = $2
		 ORDER BY learner_id ASC, name ASC`,
		usageID, string(scope))
	if err != nil {
		return nil, fmt.Errorf("query field rows: %w", err)
	}
	defer rows.Close()

	var out []model.FieldRow
	for rows.Next() {
		var (
			row   model.FieldRow
			sc    string
			value []byte
		)
		if err := rows.Scan(&row.UsageID, &sc, &row.LearnerID, &row.Name, &value, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan field row: %w", err)
		}
		row.Scope = model.Scope(sc)
		row.Value = value
		out = append(out, row)
	}
	return out, rows.Err()
}
