package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"portfolio-api/internal/shared/storage/blob"
)

func TestStoreRoundTripWithMetadata(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := New(base).Store("images")

	meta := blob.Metadata{ContentType: "image/png", OriginalName: "logo.png"}
	version, err := store.Set(ctx, "1700000000000-logo.png", []byte("\x89PNG"), blob.SetOptions{Metadata: meta, IfAbsent: true})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	obj, err := store.Get(ctx, "1700000000000-logo.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(obj.Data) != "\x89PNG" {
		t.Fatalf("unexpected data: %q", obj.Data)
	}
	if obj.Metadata != meta {
		t.Fatalf("unexpected metadata: %+v", obj.Metadata)
	}
	if obj.Version != version {
		t.Fatalf("version mismatch: %s vs %s", obj.Version, version)
	}

	if _, err := os.Stat(filepath.Join(base, "images", "1700000000000-logo.png"+metaSuffix)); err != nil {
		t.Fatalf("expected metadata sidecar: %v", err)
	}
}

func TestStoreMissingKey(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir()).Store("projects")

	if _, err := store.Get(ctx, "all"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
	if _, err := store.GetMetadata(ctx, "all"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from GetMetadata, got %v", err)
	}
}

func TestStoreVersionPrecondition(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir()).Store("projects")

	v1, err := store.Set(ctx, "all", []byte(`[{"id":"1"}]`), blob.SetOptions{IfAbsent: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Set(ctx, "all", []byte(`[]`), blob.SetOptions{IfAbsent: true}); !errors.Is(err, blob.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if _, err := store.Set(ctx, "all", []byte(`[{"id":"1"},{"id":"2"}]`), blob.SetOptions{IfVersion: v1}); err != nil {
		t.Fatalf("versioned write: %v", err)
	}
	if _, err := store.Set(ctx, "all", []byte(`[]`), blob.SetOptions{IfVersion: v1}); !errors.Is(err, blob.ErrPreconditionFailed) {
		t.Fatalf("expected stale version to fail, got %v", err)
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	store := New(t.TempDir()).Store("images")
	if _, err := store.Set(context.Background(), "../escape", []byte("x"), blob.SetOptions{}); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
