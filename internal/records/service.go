package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-api/internal/shared/apperr"
	"portfolio-api/internal/shared/metrics"
	"portfolio-api/internal/shared/storage/blob"
	"portfolio-api/internal/shared/telemetry"
)

// collectionKey is the single key holding a collection's JSON array.
const collectionKey = "all"

const defaultTimeout = 10 * time.Second

// Options tunes a Service. A nil IDs uses UUIDs and a zero Timeout uses
// defaultTimeout. ConflictRetries is taken as given, so zero disables
// retrying.
type Options struct {
	IDs             IDGenerator
	Timeout         time.Duration
	ConflictRetries int
}

// Service implements list, create, update and delete over one collection.
// Every call loads the collection from the store; nothing is cached between
// calls.
type Service struct {
	name    string
	store   blob.Store
	ids     IDGenerator
	timeout time.Duration
	retries int
}

// NewService binds a Service to the store named after the collection.
func NewService(collection string, provider blob.Provider, opts Options) *Service {
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ConflictRetries < 0 {
		opts.ConflictRetries = 0
	}
	return &Service{
		name:    collection,
		store:   provider.Store(collection),
		ids:     opts.IDs,
		timeout: opts.Timeout,
		retries: opts.ConflictRetries,
	}
}

// Name returns the collection name.
func (s *Service) Name() string {
	return s.name
}

// snapshot is one load of the collection together with the version it was
// read at.
type snapshot struct {
	records []Record
	version string
	exists  bool
}

// List returns the stored records in insertion order; an absent collection
// is empty.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.records, nil
}

// Create stores rec under a freshly generated id, replacing any id the caller
// supplied.
func (s *Service) Create(ctx context.Context, rec Record) (Record, error) {
	created := rec.clone()
	created[idField] = s.ids.Next()

	err := s.mutate(ctx, "create", func(current []Record) ([]Record, error) {
		return append(current, created), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces the first record whose id matches rec's id.
func (s *Service) Update(ctx context.Context, rec Record) (Record, error) {
	id := rec.ID()
	if id == "" {
		return nil, apperr.Validation("ID required")
	}
	updated := rec.clone()

	err := s.mutate(ctx, "update", func(current []Record) ([]Record, error) {
		for i, existing := range current {
			if existing.ID() == id {
				current[i] = updated
				return current, nil
			}
		}
		return nil, apperr.NotFound(singular(s.name) + " not found")
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes every record with the given id. Deleting an unknown id still
// rewrites the collection and succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("ID required")
	}
	return s.mutate(ctx, "delete", func(current []Record) ([]Record, error) {
		kept := make([]Record, 0, len(current))
		for _, rec := range current {
			if rec.ID() != id {
				kept = append(kept, rec)
			}
		}
		return kept, nil
	})
}

// mutate runs load, fn, conditional persist. A lost version race restarts
// from a fresh load, at most s.retries extra times; any other error returns
// immediately.
func (s *Service) mutate(ctx context.Context, op string, fn func([]Record) ([]Record, error)) error {
	for attempt := 0; ; attempt++ {
		snap, err := s.load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(snap.records)
		if err != nil {
			return err
		}
		err = s.persist(ctx, snap, next)
		if err == nil {
			metrics.IncRecordMutation(s.name, op)
			return nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return err
		}

		metrics.IncRecordConflict(s.name)
		if attempt >= s.retries {
			telemetry.Warn("records.conflict_exhausted", map[string]any{
				"collection": s.name,
				"op":         op,
				"attempts":   attempt + 1,
			})
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperr.Storage("write "+s.name, ctxErr)
		}
		telemetry.Info("records.conflict_retry", map[string]any{
			"collection": s.name,
			"op":         op,
			"attempt":    attempt + 1,
		})
	}
}

func (s *Service) load(ctx context.Context) (snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obj, err := s.store.Get(ctx, collectionKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return snapshot{records: []Record{}}, nil
		}
		metrics.IncStorageError(s.name)
		return snapshot{}, apperr.Storage("load "+s.name, err)
	}
	records, err := decodeCollection(obj.Data)
	if err != nil {
		metrics.IncStorageError(s.name)
		return snapshot{}, apperr.Storage("load "+s.name, err)
	}
	return snapshot{records: records, version: obj.Version, exists: true}, nil
}

func (s *Service) persist(ctx context.Context, snap snapshot, records []Record) error {
	data, err := encodeCollection(records)
	if err != nil {
		return apperr.Storage("encode "+s.name, err)
	}

	opts := blob.SetOptions{Metadata: blob.Metadata{ContentType: "application/json"}}
	if snap.exists {
		opts.IfVersion = snap.version
	} else {
		opts.IfAbsent = true
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.Set(ctx, collectionKey, data, opts); err != nil {
		if errors.Is(err, blob.ErrPreconditionFailed) {
			return apperr.Conflict(fmt.Sprintf("%s changed concurrently, retry the request", s.name), err)
		}
		metrics.IncStorageError(s.name)
		return apperr.Storage("save "+s.name, err)
	}
	return nil
}
