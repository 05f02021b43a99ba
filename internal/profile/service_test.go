package profile

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"vita-api/internal/cache"

	"go.uber.org/zap"
)

type memStore struct {
	mu   sync.Mutex
	docs map[uint64][]byte

	reads int
}

func newMemStore() *memStore {
	return &memStore{docs: map[uint64][]byte{}}
}

func (s *memStore) GetDoc(ctx context.Context, userID uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.docs[userID], nil
}

func (s *memStore) GetDocForUpdate(ctx context.Context, userID uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[userID], nil
}

func (s *memStore) UpsertDoc(ctx context.Context, userID uint64, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = doc
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	c := cache.New(nil, zap.NewNop().Sugar(), 0)
	t.Cleanup(c.Close)
	store := newMemStore()
	return NewService(store, c, zap.NewNop().Sugar()), store
}

func TestServiceGetFillsCacheBeforeReturning(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	doc, _ := json.Marshal(&Profile{Nickname: "ada"})
	store.docs[1] = doc

	p, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Nickname != "ada" {
		t.Fatalf("nickname = %q", p.Nickname)
	}

	// Second read must be served by the cache, not the store.
	if _, err := svc.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if store.reads != 1 {
		t.Fatalf("store reads = %d, want 1", store.reads)
	}
}

func TestServiceApplyDeltaInvalidatesBeforeReturning(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Prime the cache with the pre-delta profile.
	if _, err := svc.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}

	updated, err := svc.ApplyDelta(ctx, 1, Delta{
		Scalars: map[string]any{"nickname": "ada"},
		Lists:   map[string][]string{"allergies": {"peanuts"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Nickname != "ada" {
		t.Fatalf("nickname = %q", updated.Nickname)
	}

	// The very next read must observe the merge, never the primed entry.
	p, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Nickname != "ada" || len(p.Allergies) != 1 || p.Allergies[0] != "peanuts" {
		t.Fatalf("stale profile served after update: %+v", p)
	}
}

func TestServiceApplyDeltaPersists(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyDelta(ctx, 1, Delta{Scalars: map[string]any{"diet_goal": "cut"}}); err != nil {
		t.Fatal(err)
	}

	var p Profile
	if err := json.Unmarshal(store.docs[1], &p); err != nil {
		t.Fatal(err)
	}
	if p.DietGoal != "cut" {
		t.Fatalf("persisted profile = %+v", p)
	}
}

func TestServiceEmptyDeltaIsARead(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	p, err := svc.ApplyDelta(ctx, 1, Delta{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Nickname != "" {
		t.Fatalf("profile = %+v", p)
	}
	if _, ok := store.docs[1]; ok {
		t.Fatal("empty delta wrote a document")
	}
}
