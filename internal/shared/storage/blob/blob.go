// Package blob defines the key/value contract every storage backend satisfies:
// named stores holding byte values with a small metadata sidecar and an opaque
// version token used for conditional writes.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist in a store.
	ErrNotFound = errors.New("blob not found")

	// ErrPreconditionFailed is returned by Set when IfVersion or IfAbsent does not hold.
	ErrPreconditionFailed = errors.New("blob precondition failed")
)

// Metadata is stored alongside each value.
type Metadata struct {
	ContentType  string `json:"contentType,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
}

// Object is a value read from a store.
type Object struct {
	Data     []byte
	Metadata Metadata
	Version  string
}

// SetOptions controls a write. IfVersion and IfAbsent are mutually exclusive;
// when both are empty the write is unconditional.
type SetOptions struct {
	Metadata  Metadata
	IfVersion string
	IfAbsent  bool
}

// Store is a single named key/value namespace.
type Store interface {
	Get(ctx context.Context, key string) (Object, error)
	GetMetadata(ctx context.Context, key string) (Metadata, error)
	Set(ctx context.Context, key string, data []byte, opts SetOptions) (version string, err error)
}

// Provider opens named stores on one backend.
type Provider interface {
	Store(name string) Store
}

// ValidateKey rejects keys that could escape a namespace on path-based backends.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("invalid blob key: empty")
	case strings.Contains(key, ".."):
		return fmt.Errorf("invalid blob key %q", key)
	case strings.ContainsAny(key, "/\\\x00"):
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

// CheckPrecondition evaluates opts against the current version of a key.
// exists reports whether the key is present.
func CheckPrecondition(opts SetOptions, exists bool, current string) error {
	if opts.IfAbsent && exists {
		return ErrPreconditionFailed
	}
	if opts.IfVersion != "" && (!exists || opts.IfVersion != current) {
		return ErrPreconditionFailed
	}
	return nil
}
