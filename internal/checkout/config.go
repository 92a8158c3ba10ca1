package checkout

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"

	"cartcore/internal/infra/blob"
	"cartcore/internal/infra/persistence/memory"
	"cartcore/internal/infra/persistence/postgres"
	"cartcore/internal/infra/persistence/sqlite"
	"cartcore/pkg/domain"
)

// Config holds deployment settings sourced from environment variables.
type Config struct {
	StorageDriver string `env:"CARTCORE_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"CARTCORE_SQLITE_PATH"    envDefault:"./data/cartcore.db"`
	PostgresDSN   string `env:"CARTCORE_POSTGRES_DSN"`
	Locale        string `env:"CARTCORE_LOCALE"         envDefault:"en-GB"`

	ArchiveDriver    string `env:"CARTCORE_ARCHIVE_DRIVER"` // fs|s3|memory, empty disables archiving
	ArchiveRoot      string `env:"CARTCORE_ARCHIVE_FS_ROOT"`
	ArchiveBucket    string `env:"CARTCORE_ARCHIVE_S3_BUCKET"`
	ArchiveRegion    string `env:"CARTCORE_ARCHIVE_S3_REGION"`
	ArchiveEndpoint  string `env:"CARTCORE_ARCHIVE_S3_ENDPOINT"`
	ArchivePathStyle bool   `env:"CARTCORE_ARCHIVE_S3_PATH_STYLE"`
}

// LoadConfig reads configuration from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// OpenPersistentStore builds the configured storage backend with the rules
// engine attached.
func OpenPersistentStore(cfg Config, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch cfg.StorageDriver {
	case "memory":
		return memory.NewStore(engine), nil
	case "sqlite", "":
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case "postgres":
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// OpenInvoiceArchiver builds the configured archive sink, or nil when
// archiving is disabled.
func OpenInvoiceArchiver(ctx context.Context, cfg Config) (InvoiceArchiver, error) {
	if cfg.ArchiveDriver == "" {
		return nil, nil
	}
	store, err := blob.Open(ctx, blob.Options{
		Driver:    blob.Driver(cfg.ArchiveDriver),
		Root:      cfg.ArchiveRoot,
		Bucket:    cfg.ArchiveBucket,
		Region:    cfg.ArchiveRegion,
		Endpoint:  cfg.ArchiveEndpoint,
		PathStyle: cfg.ArchivePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return NewBlobInvoiceArchiver(store, ""), nil
}
