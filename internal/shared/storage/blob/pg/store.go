package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"portfolio-api/internal/shared/storage/blob"
)

// Provider implements blob.Provider on the blobs table. Versions are a
// per-row counter bumped on every write.
type Provider struct {
	DB *sql.DB
}

// New returns a Provider using db.
func New(db *sql.DB) *Provider {
	return &Provider{DB: db}
}

// Store returns the named store.
func (p *Provider) Store(name string) blob.Store {
	return &Store{db: p.DB, name: name}
}

// Store is the set of rows sharing one store name.
type Store struct {
	db   *sql.DB
	name string
}

func (s *Store) Get(ctx context.Context, key string) (blob.Object, error) {
	if err := blob.ValidateKey(key); err != nil {
		return blob.Object{}, err
	}
	const query = `
SELECT data, content_type, original_name, version
FROM blobs
WHERE store = $1 AND key = $2`
	var (
		obj     blob.Object
		version int64
	)
	err := s.db.QueryRowContext(ctx, query, s.name, key).Scan(
		&obj.Data,
		&obj.Metadata.ContentType,
		&obj.Metadata.OriginalName,
		&version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return blob.Object{}, blob.ErrNotFound
		}
		return blob.Object{}, fmt.Errorf("select blob %s/%s: %w", s.name, key, err)
	}
	obj.Version = strconv.FormatInt(version, 10)
	return obj, nil
}

func (s *Store) GetMetadata(ctx context.Context, key string) (blob.Metadata, error) {
	if err := blob.ValidateKey(key); err != nil {
		return blob.Metadata{}, err
	}
	const query = `
SELECT content_type, original_name
FROM blobs
WHERE store = $1 AND key = $2`
	var meta blob.Metadata
	err := s.db.QueryRowContext(ctx, query, s.name, key).Scan(&meta.ContentType, &meta.OriginalName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return blob.Metadata{}, blob.ErrNotFound
		}
		return blob.Metadata{}, fmt.Errorf("select blob metadata %s/%s: %w", s.name, key, err)
	}
	return meta, nil
}

// Set writes a row. Conditional writes that match no row report
// blob.ErrPreconditionFailed.
func (s *Store) Set(ctx context.Context, key string, data []byte, opts blob.SetOptions) (string, error) {
	if err := blob.ValidateKey(key); err != nil {
		return "", err
	}
	if data == nil {
		data = []byte{}
	}

	var (
		query string
		args  = []any{s.name, key, data, opts.Metadata.ContentType, opts.Metadata.OriginalName}
	)
	switch {
	case opts.IfAbsent:
		query = `
INSERT INTO blobs (store, key, data, content_type, original_name)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (store, key) DO NOTHING
RETURNING version`
	case opts.IfVersion != "":
		expected, err := strconv.ParseInt(opts.IfVersion, 10, 64)
		if err != nil {
			return "", blob.ErrPreconditionFailed
		}
		query = `
UPDATE blobs
SET data = $3, content_type = $4, original_name = $5, version = version + 1, updated_at = now()
WHERE store = $1 AND key = $2 AND version = $6
RETURNING version`
		args = append(args, expected)
	default:
		query = `
INSERT INTO blobs (store, key, data, content_type, original_name)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (store, key) DO UPDATE
SET data = EXCLUDED.data,
	content_type = EXCLUDED.content_type,
	original_name = EXCLUDED.original_name,
	version = blobs.version + 1,
	updated_at = now()
RETURNING version`
	}

	var version int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", blob.ErrPreconditionFailed
		}
		return "", fmt.Errorf("write blob %s/%s: %w", s.name, key, err)
	}
	return strconv.FormatInt(version, 10), nil
}

var _ blob.Provider = (*Provider)(nil)
