package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"portfolio-api/internal/shared/storage/blob"
	"portfolio-api/internal/shared/util"
)

const metaSuffix = ".meta.json"

// Provider implements blob.Provider on the local filesystem. Each named store
// is a directory under baseDir; each value is a file with a JSON metadata
// sidecar. Conditional writes are serialized in-process only.
type Provider struct {
	baseDir string
	mu      sync.Mutex
}

// New creates a Provider rooted at baseDir.
func New(baseDir string) *Provider {
	return &Provider{baseDir: baseDir}
}

// Store returns the named store.
func (p *Provider) Store(name string) blob.Store {
	return &Store{p: p, dir: filepath.Join(p.baseDir, name)}
}

// Store is one directory of a Provider.
type Store struct {
	p   *Provider
	dir string
}

// Get reads a value and its metadata sidecar.
func (s *Store) Get(ctx context.Context, key string) (blob.Object, error) {
	if err := ctx.Err(); err != nil {
		return blob.Object{}, err
	}
	if err := blob.ValidateKey(key); err != nil {
		return blob.Object{}, err
	}
	data, err := os.ReadFile(s.dataPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blob.Object{}, blob.ErrNotFound
		}
		return blob.Object{}, fmt.Errorf("read blob: %w", err)
	}
	meta, err := s.readMeta(key)
	if err != nil {
		return blob.Object{}, err
	}
	return blob.Object{Data: data, Metadata: meta, Version: util.ContentHash(data)}, nil
}

// GetMetadata reads only the metadata sidecar.
func (s *Store) GetMetadata(ctx context.Context, key string) (blob.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return blob.Metadata{}, err
	}
	if err := blob.ValidateKey(key); err != nil {
		return blob.Metadata{}, err
	}
	if _, err := os.Stat(s.dataPath(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blob.Metadata{}, blob.ErrNotFound
		}
		return blob.Metadata{}, fmt.Errorf("stat blob: %w", err)
	}
	return s.readMeta(key)
}

// Set writes data through a temp file and rename so readers never observe a
// partially written value.
func (s *Store) Set(ctx context.Context, key string, data []byte, opts blob.SetOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := blob.ValidateKey(key); err != nil {
		return "", err
	}

	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	if opts.IfAbsent || opts.IfVersion != "" {
		current, err := os.ReadFile(s.dataPath(key))
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read blob: %w", err)
		}
		version := ""
		if exists {
			version = util.ContentHash(current)
		}
		if err := blob.CheckPrecondition(opts, exists, version); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	meta, err := json.Marshal(opts.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeAtomic(s.dir, s.metaPath(key), meta); err != nil {
		return "", err
	}
	if err := writeAtomic(s.dir, s.dataPath(key), data); err != nil {
		return "", err
	}
	return util.ContentHash(data), nil
}

func (s *Store) readMeta(key string) (blob.Metadata, error) {
	raw, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blob.Metadata{}, nil
		}
		return blob.Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta blob.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return blob.Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

func (s *Store) dataPath(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.dir, key+metaSuffix)
}

func writeAtomic(dir, path string, data []byte) error {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write body: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

var _ blob.Provider = (*Provider)(nil)
