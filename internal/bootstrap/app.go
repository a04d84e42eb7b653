package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"portfolio-api/internal/assets"
	"portfolio-api/internal/records"
	"portfolio-api/internal/services/health"
	"portfolio-api/internal/shared/auth"
	"portfolio-api/internal/shared/config"
	"portfolio-api/internal/shared/server"
	"portfolio-api/internal/shared/server/middleware"
	"portfolio-api/internal/shared/storage/blob"
	localblob "portfolio-api/internal/shared/storage/blob/local"
	memoryblob "portfolio-api/internal/shared/storage/blob/memory"
	pgblob "portfolio-api/internal/shared/storage/blob/pg"
	s3blob "portfolio-api/internal/shared/storage/blob/s3"
	"portfolio-api/internal/shared/storage/db"
	"portfolio-api/internal/shared/telemetry"
)

// Names that would collide with non-collection routes or stores.
var reservedCollections = map[string]struct{}{
	assets.StoreName: {},
	"health":         {},
	"upload-image":   {},
}

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Blobs    blob.Provider
	Verifier *auth.Verifier
	Records  map[string]*records.Service
	Assets   *assets.Service
}

// Build validates configuration, opens the blob backend and wires routes.
func Build(cfg config.Config) (*App, error) {
	return BuildWithContext(context.Background(), cfg)
}

// BuildWithContext is Build with a caller-supplied context for backend setup.
func BuildWithContext(ctx context.Context, cfg config.Config) (*App, error) {
	telemetry.Setup(cfg.Env)

	verifier := auth.NewVerifier(cfg.AdminPassword)
	if !verifier.Configured() {
		if !config.IsDevLike(cfg.Env) {
			return nil, fmt.Errorf("ADMIN_PASSWORD is required when ENV=%s", cfg.Env)
		}
		telemetry.Warn("bootstrap: ADMIN_PASSWORD empty; mutating requests will fail with 500", nil)
	}
	if err := validateCollections(cfg.Collections); err != nil {
		return nil, err
	}

	provider, sqlDB, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Blobs:    provider,
		Verifier: verifier,
		Records:  make(map[string]*records.Service, len(cfg.Collections)),
	}

	ids := records.NewIDGenerator(cfg.IDScheme)
	handlers := make([]*records.Handler, 0, len(cfg.Collections))
	for _, name := range cfg.Collections {
		svc := records.NewService(name, provider, records.Options{
			IDs:             ids,
			Timeout:         cfg.StorageTimeout,
			ConflictRetries: cfg.ConflictRetries,
		})
		app.Records[name] = svc
		handlers = append(handlers, records.NewHandler(svc))
	}
	app.Assets = assets.NewService(provider, assets.Options{Timeout: cfg.StorageTimeout})

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		Verifier:       verifier,
		WriteLimiter:   middleware.NewRateLimiter(cfg.WriteRateRPS, cfg.WriteRateBurst, nil),
		Health:         health.NewService(cfg.BlobStore, provider),
		RecordHandlers: handlers,
		AssetHandler:   assets.NewHandler(app.Assets, cfg.MaxUploadBytes),
	})

	telemetry.Info("bootstrap: ready", map[string]any{
		"env":         cfg.Env,
		"blob_store":  cfg.BlobStore,
		"collections": strings.Join(cfg.Collections, ","),
		"id_scheme":   cfg.IDScheme,
	})
	return app, nil
}

func buildProvider(ctx context.Context, cfg config.Config) (blob.Provider, *sql.DB, error) {
	switch cfg.BlobStore {
	case "memory":
		return memoryblob.New(), nil, nil
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, nil, fmt.Errorf("BLOB_STORE=s3 requires S3_BUCKET")
		}
		provider, err := s3blob.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, nil, err
		}
		return provider, nil, nil
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return pgblob.New(sqlDB), sqlDB, nil
	default:
		return localblob.New(cfg.LocalStoreDir), nil, nil
	}
}

// buildDB shares one pool per Lambda execution environment. Dev-like
// environments apply migrations on startup; elsewhere cmd/migrate owns them.
func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("BLOB_STORE=postgres requires DATABASE_URL")
	}

	role := db.RuntimeRole()
	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, role)
	if err != nil {
		return nil, err
	}
	if err := db.PrepareSchema(ctx, sqlDB, config.IsDevLike(cfg.Env)); err != nil {
		if role != db.RoleLambda {
			sqlDB.Close()
		}
		return nil, err
	}
	return sqlDB, nil
}

func validateCollections(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("COLLECTIONS must name at least one collection")
	}
	for _, name := range names {
		if _, reserved := reservedCollections[name]; reserved {
			return fmt.Errorf("collection name %q is reserved", name)
		}
		for _, r := range name {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
				return fmt.Errorf("collection name %q must match [a-z0-9_-]+", name)
			}
		}
	}
	return nil
}
