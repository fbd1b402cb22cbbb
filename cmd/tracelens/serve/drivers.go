package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tracelens/cmd/tracelens/sqlitepath"
	"github.com/papercomputeco/tracelens/pkg/config"
	"github.com/papercomputeco/tracelens/pkg/eventstream"
	"github.com/papercomputeco/tracelens/pkg/eventstream/kafka"
	"github.com/papercomputeco/tracelens/pkg/eventstream/nop"
	"github.com/papercomputeco/tracelens/pkg/storage"
	"github.com/papercomputeco/tracelens/pkg/storage/inmemory"
	"github.com/papercomputeco/tracelens/pkg/storage/postgres"
	"github.com/papercomputeco/tracelens/pkg/storage/sqlite"
)

func newStorageDriver(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Driver, error) {
	switch cfg.Driver {
	case "", config.StorageInMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.StorageSQLite:
		path, err := sqlitepath.ResolveSQLitePath(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case config.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires --postgres-dsn")
		}
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (expected inmemory, sqlite or postgres)", cfg.Driver)
	}
}

func newPublisher(cfg config.EventStreamConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", config.EventStreamNop:
		return nop.NewPublisher(), nil

	case config.EventStreamKafka:
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		logger.Info("publishing analysis events to Kafka",
			"brokers", cfg.Brokers,
			"topic", cfg.Topic,
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown event stream provider %q (expected nop or kafka)", cfg.Provider)
	}
}
