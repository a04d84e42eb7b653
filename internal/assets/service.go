package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"portfolio-api/internal/shared/apperr"
	"portfolio-api/internal/shared/metrics"
	"portfolio-api/internal/shared/storage/blob"
	"portfolio-api/internal/shared/util"
)

// StoreName is the blob store holding uploaded images.
const StoreName = "images"

// DefaultContentType is served when an image was stored without one.
const DefaultContentType = "image/jpeg"

const defaultTimeout = 10 * time.Second

// Asset is a stored image.
type Asset struct {
	Key          string
	Data         []byte
	ContentType  string
	OriginalName string
}

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	Now     func() time.Time
	Timeout time.Duration
}

// Service stores and serves binary image assets.
type Service struct {
	store   blob.Store
	now     func() time.Time
	timeout time.Duration
}

func NewService(provider blob.Provider, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Service{
		store:   provider.Store(StoreName),
		now:     opts.Now,
		timeout: opts.Timeout,
	}
}

// Store saves data under "<unix millis>-<sanitized name>" and returns the key.
// An existing key is never overwritten; the collision is reported as a
// conflict.
func (s *Service) Store(ctx context.Context, originalName, contentType string, data []byte) (string, error) {
	name, err := util.SanitizeFileName(originalName)
	if err != nil {
		return "", apperr.Validation("invalid file name")
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(data)
	}
	key := fmt.Sprintf("%d-%s", s.now().UnixMilli(), name)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.store.Set(ctx, key, data, blob.SetOptions{
		Metadata: blob.Metadata{ContentType: contentType, OriginalName: originalName},
		IfAbsent: true,
	})
	if err != nil {
		if errors.Is(err, blob.ErrPreconditionFailed) {
			return "", apperr.Conflict("an image with this name was just uploaded, retry the request", err)
		}
		metrics.IncStorageError(StoreName)
		return "", apperr.Storage("store image", err)
	}
	metrics.IncAssetUpload()
	return key, nil
}

// Retrieve loads an image and its content type.
func (s *Service) Retrieve(ctx context.Context, key string) (Asset, error) {
	if err := blob.ValidateKey(key); err != nil {
		return Asset{}, apperr.NotFound("Image not found")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obj, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Asset{}, apperr.NotFound("Image not found")
		}
		metrics.IncStorageError(StoreName)
		return Asset{}, apperr.Storage("load image", err)
	}
	contentType := obj.Metadata.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	return Asset{
		Key:          key,
		Data:         obj.Data,
		ContentType:  contentType,
		OriginalName: obj.Metadata.OriginalName,
	}, nil
}
