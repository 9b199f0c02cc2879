package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

// Backend is the durable field storage behind the cache.
type Backend interface {
	Load(ctx context.Context, key model.ScopeKey) (model.Fields, error)
	Save(ctx context.Context, key model.ScopeKey, fields model.Fields) error
}

// CachedStore is a read-through Redis cache in front of a Backend.
// Redis errors never fail a call; the backend stays authoritative.
type CachedStore struct {
	backend Backend
	rdb     *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

// NewCachedStore creates a new CachedStore.
func NewCachedStore(backend Backend, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedStore {
	return &CachedStore{
		backend: backend,
		rdb:     rdb,
		ttl:     ttl,
		log:     log.With().Str("component", "cached_store").Logger(),
	}
}

// Load returns the cached field set for key, loading it from the backend on a miss.
func (s *CachedStore) Load(ctx context.Context, key model.ScopeKey) (model.Fields, error) {
	cacheKey := s.cacheKey(key)

	raw, err := s.rdb.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var fields model.Fields
		if err := json.Unmarshal(raw, &fields); err == nil {
			return fields, nil
		}
		s.log.Warn().Str("key", cacheKey).Msg("discarding corrupt cache entry")
		if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("cache delete failed")
		}
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("cache read failed")
	}

	fields, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	// A Save that committed while the backend read was in flight has already
	// written the newer value; SetNX leaves it in place.
	if encoded, err := json.Marshal(fields); err == nil {
		if err := s.rdb.SetNX(ctx, cacheKey, encoded, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("cache fill failed")
		}
	}
	return fields, nil
}

// Save commits fields to the backend and then writes them through to the
// cache. fields must be the complete set for the scope.
func (s *CachedStore) Save(ctx context.Context, key model.ScopeKey, fields model.Fields) error {
	if err := s.backend.Save(ctx, key, fields); err != nil {
		return err
	}

	cacheKey := s.cacheKey(key)
	encoded, err := json.Marshal(fields)
	if err == nil {
		err = s.rdb.Set(ctx, cacheKey, encoded, s.ttl).Err()
	}
	if err == nil {
		return nil
	}

	s.log.Warn().Err(err).Str("key", cacheKey).Msg("cache write-through failed, invalidating")
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		s.log.Error().Err(err).Str("key", cacheKey).Msg("cache invalidation failed, entry may be stale until TTL")
	}
	return nil
}

func (s *CachedStore) cacheKey(key model.ScopeKey) string {
	if key.Scope == model.ScopeContent {
		return config.CacheKey.ContentFieldsKey(key.UsageID)
	}
	return config.CacheKey.LearnerFieldsKey(key.UsageID, key.LearnerID)
}
