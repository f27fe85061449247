package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

// Compile-time check: RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// RedisConfig holds connection parameters for a Redis store.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

const (
	recordKeyPrefix = "stampline:record:"
	recordIndexKey  = "stampline:records"
	checkpointKey   = "stampline:checkpoint"
)

// RedisStore persists records as hashes with a set index over their keys.
type RedisStore struct {
	client rueidis.Client
}

// NewRedisStore creates a Redis-backed store via rueidis.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Put upserts the records in a single DoMulti round-trip.
func (s *RedisStore) Put(ctx context.Context, recs ...*record.Record) error {
	if len(recs) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, 2*len(recs))
	for _, rec := range recs {
		// Delete first so stale fields and flags from a previous run do
		// not survive the overwrite.
		cmds = append(cmds, s.client.B().Del().Key(recordKeyPrefix+rec.Key).Build())

		cmd := s.client.B().Hset().Key(recordKeyPrefix + rec.Key).FieldValue()
		for k, v := range encodeRecord(rec) {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
		cmds = append(cmds, s.client.B().Sadd().Key(recordIndexKey).Member(rec.Key).Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("put records (cmd %d): %w", i, err)
		}
	}
	return nil
}

// Get returns the record for a document key.
func (s *RedisStore) Get(ctx context.Context, key string) (*record.Record, error) {
	cmd := s.client.B().Hgetall().Key(recordKeyPrefix + key).Build()
	m, err := s.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", key, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: %s", record.ErrNotFound, key)
	}
	return decodeRecord(m)
}

// List returns every stored record sorted by document key.
func (s *RedisStore) List(ctx context.Context) ([]*record.Record, error) {
	cmd := s.client.B().Smembers().Key(recordIndexKey).Build()
	keys, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list record keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.client.B().Hgetall().Key(recordKeyPrefix + key).Build()
	}

	out := make([]*record.Record, 0, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, fmt.Errorf("list record %s: %w", keys[i], err)
		}
		if len(m) == 0 {
			continue
		}
		rec, err := decodeRecord(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveCheckpoint stores the pipeline progress marker.
func (s *RedisStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	cmd := s.client.B().Hset().Key(checkpointKey).FieldValue().
		FieldValue("stage", cp.Stage).
		FieldValue("processed", strconv.Itoa(cp.Processed)).
		FieldValue("last_image", cp.LastImage).
		FieldValue("updated_at", cp.UpdatedAt.UTC().Format(time.RFC3339)).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the stored progress marker, if any.
func (s *RedisStore) LoadCheckpoint(ctx context.Context) (Checkpoint, bool, error) {
	cmd := s.client.B().Hgetall().Key(checkpointKey).Build()
	m, err := s.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if len(m) == 0 {
		return Checkpoint{}, false, nil
	}
	cp := Checkpoint{Stage: m["stage"], LastImage: m["last_image"]}
	cp.Processed, _ = strconv.Atoi(m["processed"])
	cp.UpdatedAt, _ = time.Parse(time.RFC3339, m["updated_at"])
	return cp, true, nil
}

// ClearCheckpoint removes the progress marker after a completed run.
func (s *RedisStore) ClearCheckpoint(ctx context.Context) error {
	cmd := s.client.B().Del().Key(checkpointKey).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *RedisStore) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close shuts down the client.
func (s *RedisStore) Close() {
	s.client.Close()
}
