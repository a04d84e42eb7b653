package memory

import (
	"context"
	"strconv"
	"sync"

	"portfolio-api/internal/shared/storage/blob"
)

type entry struct {
	data    []byte
	meta    blob.Metadata
	version int64
}

// Provider keeps every named store in memory. Data is lost on restart.
// Safe for concurrent use.
type Provider struct {
	mu     sync.RWMutex
	stores map[string]map[string]entry
	seq    int64
}

// New constructs an empty Provider.
func New() *Provider {
	return &Provider{stores: make(map[string]map[string]entry)}
}

// Store returns the named store.
func (p *Provider) Store(name string) blob.Store {
	return &Store{p: p, name: name}
}

// Store is one namespace inside a Provider.
type Store struct {
	p    *Provider
	name string
}

// Get returns a copy of the stored value.
func (s *Store) Get(ctx context.Context, key string) (blob.Object, error) {
	if err := ctx.Err(); err != nil {
		return blob.Object{}, err
	}
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	e, ok := s.p.stores[s.name][key]
	if !ok {
		return blob.Object{}, blob.ErrNotFound
	}
	return blob.Object{
		Data:     append([]byte(nil), e.data...),
		Metadata: e.meta,
		Version:  strconv.FormatInt(e.version, 10),
	}, nil
}

// GetMetadata returns the metadata of a stored value.
func (s *Store) GetMetadata(ctx context.Context, key string) (blob.Metadata, error) {
	obj, err := s.Get(ctx, key)
	if err != nil {
		return blob.Metadata{}, err
	}
	return obj.Metadata, nil
}

// Set stores a copy of data, honoring the options' preconditions.
func (s *Store) Set(ctx context.Context, key string, data []byte, opts blob.SetOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := blob.ValidateKey(key); err != nil {
		return "", err
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	bucket, ok := s.p.stores[s.name]
	if !ok {
		bucket = make(map[string]entry)
		s.p.stores[s.name] = bucket
	}
	current, exists := bucket[key]
	if err := blob.CheckPrecondition(opts, exists, strconv.FormatInt(current.version, 10)); err != nil {
		return "", err
	}
	s.p.seq++
	bucket[key] = entry{
		data:    append([]byte(nil), data...),
		meta:    opts.Metadata,
		version: s.p.seq,
	}
	return strconv.FormatInt(s.p.seq, 10), nil
}

var _ blob.Provider = (*Provider)(nil)
