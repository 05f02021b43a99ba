package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"vita-api/internal/cache"
	"vita-api/internal/shared"

	"go.uber.org/zap"
)

func cacheKey(userID uint64) string {
	return fmt.Sprintf("v1:profile:%d", userID)
}

// Store persists profile documents. GetDoc serves reads (replica), the
// update path reads its own writes through GetDocForUpdate.
type Store interface {
	GetDoc(ctx context.Context, userID uint64) ([]byte, error)
	GetDocForUpdate(ctx context.Context, userID uint64) ([]byte, error)
	UpsertDoc(ctx context.Context, userID uint64, doc []byte) error
}

// Service is the read/write surface for user profiles. Reads go through the
// cache, writes invalidate it before they return.
type Service struct {
	store Store
	cache *cache.Manager
	log   *zap.SugaredLogger
}

func NewService(store Store, c *cache.Manager, log *zap.SugaredLogger) *Service {
	return &Service{store: store, cache: c, log: log}
}

// Get returns the user's profile, an empty profile when none exists yet.
// The cache fill is synchronous: a fill racing a concurrent update could
// otherwise land after the update's invalidation and pin the pre-update
// profile for the full TTL.
func (s *Service) Get(ctx context.Context, userID uint64) (*Profile, error) {
	key := cacheKey(userID)
	var p Profile
	if s.cache.GetJSON(ctx, key, &p) {
		return &p, nil
	}

	doc, err := s.store.GetDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("failed to decode stored profile: %w", err)
		}
	}

	s.cache.SetJSON(ctx, key, &p, shared.ProfileCacheTTL)
	return &p, nil
}

// ApplyDelta loads the current profile from the write path, merges the
// delta, and persists the result. The cache entry is invalidated before the
// call returns so the next read observes the merge.
func (s *Service) ApplyDelta(ctx context.Context, userID uint64, d Delta) (*Profile, error) {
	if d.Empty() {
		return s.Get(ctx, userID)
	}

	doc, err := s.store.GetDocForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	var p Profile
	if doc != nil {
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("failed to decode stored profile: %w", err)
		}
	}

	p.Apply(d)

	out, err := json.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.store.UpsertDoc(ctx, userID, out); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cacheKey(userID))
	return &p, nil
}
