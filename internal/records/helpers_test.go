package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"portfolio-api/internal/shared/storage/blob"
	"portfolio-api/internal/shared/storage/blob/memory"
)

type fixedProvider struct {
	store blob.Store
}

func (p fixedProvider) Store(string) blob.Store { return p.store }

// countingStore records how often the backend is touched.
type countingStore struct {
	blob.Store
	gets atomic.Int32
	sets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, key string) (blob.Object, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, data []byte, opts blob.SetOptions) (string, error) {
	s.sets.Add(1)
	return s.Store.Set(ctx, key, data, opts)
}

// racingStore lets a competing writer append a record just before each of
// the next `races` writes, so those writes lose their version check.
type racingStore struct {
	blob.Store
	races int
	seq   int
}

func (s *racingStore) Set(ctx context.Context, key string, data []byte, opts blob.SetOptions) (string, error) {
	if s.races > 0 {
		s.races--
		s.seq++
		if err := s.intrude(ctx, key); err != nil {
			return "", err
		}
	}
	return s.Store.Set(ctx, key, data, opts)
}

func (s *racingStore) intrude(ctx context.Context, key string) error {
	var current []map[string]any
	obj, err := s.Store.Get(ctx, key)
	switch {
	case errors.Is(err, blob.ErrNotFound):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(obj.Data, &current); err != nil {
			return err
		}
	}
	current = append(current, map[string]any{"id": fmt.Sprintf("intruder-%d", s.seq)})
	data, err := json.Marshal(current)
	if err != nil {
		return err
	}
	_, err = s.Store.Set(ctx, key, data, blob.SetOptions{})
	return err
}

// failingStore fails every Get or every Set.
type failingStore struct {
	blob.Store
	getErr error
	setErr error
}

func (s *failingStore) Get(ctx context.Context, key string) (blob.Object, error) {
	if s.getErr != nil {
		return blob.Object{}, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, data []byte, opts blob.SetOptions) (string, error) {
	if s.setErr != nil {
		return "", s.setErr
	}
	return s.Store.Set(ctx, key, data, opts)
}

// blockingStore waits for the context to expire on Get.
type blockingStore struct {
	blob.Store
}

func (blockingStore) Get(ctx context.Context, key string) (blob.Object, error) {
	<-ctx.Done()
	return blob.Object{}, ctx.Err()
}

type sequenceIDs struct {
	n int
}

func (g *sequenceIDs) Next() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newMemoryStore(name string) blob.Store {
	return memory.New().Store(name)
}
