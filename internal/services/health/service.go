package health

import (
	"context"
	"errors"
	"time"

	"portfolio-api/internal/shared/storage/blob"
)

const (
	probeStore   = "health"
	probeKey     = "probe"
	probeTimeout = 2 * time.Second
)

// Status is the health payload.
type Status struct {
	OK        bool   `json:"ok"`
	BlobStore string `json:"blobStore"`
	Error     string `json:"error,omitempty"`
}

// Service reports whether the blob backend answers.
type Service struct {
	backend  string
	provider blob.Provider
}

// NewService constructs a health service for the named backend.
func NewService(backend string, provider blob.Provider) *Service {
	return &Service{backend: backend, provider: provider}
}

// Check issues one metadata lookup. A missing key still proves the backend
// is reachable.
func (s *Service) Check(ctx context.Context) Status {
	status := Status{OK: true, BlobStore: s.backend}
	if s.provider == nil {
		return status
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := s.provider.Store(probeStore).GetMetadata(ctx, probeKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		status.OK = false
		status.Error = err.Error()
	}
	return status
}
