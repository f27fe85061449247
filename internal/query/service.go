package query

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/store"
)

// DefaultLimit caps a search when the caller gives no limit.
const DefaultLimit = 50

// ErrBadFilter signals a filter expression that does not parse.
var ErrBadFilter = errors.New("invalid filter")

// Service answers record searches against the store.
type Service struct {
	store store.Store
	log   *zap.Logger
}

// NewService creates a query service.
func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

// Search returns records matching the filter, capped at limit. An unsafe
// filter is blocked and yields an empty result, not an error; a malformed
// filter is the caller's mistake and is returned as one.
func (s *Service) Search(ctx context.Context, filter string, limit int) ([]*record.Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if !IsSafe(filter) {
		s.log.Warn("unsafe filter blocked", zap.String("filter", filter))
		return []*record.Record{}, nil
	}

	f, err := Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFilter, err)
	}

	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]*record.Record, 0, limit)
	for _, rec := range recs {
		if !f.Match(rec) {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Get returns one record by document key.
func (s *Service) Get(ctx context.Context, key string) (*record.Record, error) {
	return s.store.Get(ctx, key)
}
