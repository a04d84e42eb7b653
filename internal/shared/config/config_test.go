package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"CONFIG_FILE", "BLOB_STORE", "COLLECTIONS", "ID_SCHEME", "STORAGE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.BlobStore != "local" {
		t.Fatalf("expected local blob store, got %q", cfg.BlobStore)
	}
	if !reflect.DeepEqual(cfg.Collections, []string{"certificates", "projects"}) {
		t.Fatalf("unexpected collections: %v", cfg.Collections)
	}
	if cfg.IDScheme != "uuid" {
		t.Fatalf("expected uuid id scheme, got %q", cfg.IDScheme)
	}
	if cfg.StorageTimeout != 10*time.Second {
		t.Fatalf("unexpected storage timeout: %s", cfg.StorageTimeout)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
env: production
blobStore: s3
s3Bucket: portfolio-assets
collections: [projects, Certificates, projects, talks]
storageTimeout: 3s
conflictRetries: 5
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("S3_BUCKET", "override-bucket")
	t.Setenv("ADMIN_PASSWORD", " s3cret")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production env, got %q", cfg.Env)
	}
	if cfg.BlobStore != "s3" {
		t.Fatalf("expected s3 blob store, got %q", cfg.BlobStore)
	}
	if cfg.S3Bucket != "override-bucket" {
		t.Fatalf("expected env override, got %q", cfg.S3Bucket)
	}
	if cfg.AdminPassword != " s3cret" {
		t.Fatalf("admin password must be kept verbatim, got %q", cfg.AdminPassword)
	}
	if !reflect.DeepEqual(cfg.Collections, []string{"projects", "certificates", "talks"}) {
		t.Fatalf("unexpected collections: %v", cfg.Collections)
	}
	if cfg.StorageTimeout != 3*time.Second {
		t.Fatalf("unexpected storage timeout: %s", cfg.StorageTimeout)
	}
	if cfg.ConflictRetries != 5 {
		t.Fatalf("unexpected conflict retries: %d", cfg.ConflictRetries)
	}
}

func TestNormalizeStoreType(t *testing.T) {
	tests := map[string]string{
		"S3":       "s3",
		"pg":       "postgres",
		"postgres": "postgres",
		"memory":   "memory",
		"":         "local",
		"bogus":    "local",
	}
	for in, want := range tests {
		if got := normalizeStoreType(in); got != want {
			t.Fatalf("normalizeStoreType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")
	t.Setenv("TRUSTED_PLATFORM", "CF-Connecting-IP")

	cfg := Load()
	if !reflect.DeepEqual(cfg.TrustedProxies, []string{"10.0.0.0/8", "192.168.1.1"}) {
		t.Fatalf("unexpected trusted proxies: %v", cfg.TrustedProxies)
	}
	if cfg.TrustedPlatform != "CF-Connecting-IP" {
		t.Fatalf("unexpected trusted platform: %q", cfg.TrustedPlatform)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
