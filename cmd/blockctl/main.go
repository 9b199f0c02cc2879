package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/database"
	"github.com/stemsi/hello-pdf-submission/internal/logger"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/repository"
	"github.com/stemsi/hello-pdf-submission/internal/store"
)

// env holds the connections shared by every subcommand.
type env struct {
	cfg    *config.Config
	log    zerolog.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	fields *repository.FieldRepository
	grades *repository.GradeRepository
	state  *store.CachedStore
}

var current *env

var rootCmd = &cobra.Command{
	Use:           "blockctl",
	Short:         "Inspect and repair hello-pdf-submission block data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		current = e
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.close()
		}
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*env, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "blockctl").Logger()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	fields := repository.NewFieldRepository(pool)
	return &env{
		cfg:    cfg,
		log:    log,
		pool:   pool,
		rdb:    rdb,
		fields: fields,
		grades: repository.NewGradeRepository(pool),
		// Writes go through the cache so the server never serves stale state.
		state: store.NewCachedStore(fields, rdb, cfg.StateCacheTTL, log),
	}, nil
}

func (e *env) close() {
	_ = e.rdb.Close()
	e.pool.Close()
}

func (e *env) defaults() model.BlockSettings {
	return model.BlockSettings{APIBase: e.cfg.DefaultAPIBase, Title: e.cfg.DefaultTitle}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
