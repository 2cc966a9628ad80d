package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/egannguyen/storefront/internal/config"
	"github.com/egannguyen/storefront/internal/messaging"
	"github.com/egannguyen/storefront/internal/messaging/kafka"
	msgmemory "github.com/egannguyen/storefront/internal/messaging/memory"
	"github.com/egannguyen/storefront/internal/repository"
	repomemory "github.com/egannguyen/storefront/internal/repository/memory"
	"github.com/egannguyen/storefront/internal/repository/postgres"
	"github.com/egannguyen/storefront/internal/storage"
	storagememory "github.com/egannguyen/storefront/internal/storage/memory"
	storageredis "github.com/egannguyen/storefront/internal/storage/redis"
	"github.com/egannguyen/storefront/internal/storage/sqlite"
)

type repositories struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	events   repository.EventStore
	db       *sql.DB // nil for the memory driver
}

func (r repositories) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func openRepositories(ctx context.Context, dc config.DatabaseConfig) (repositories, error) {
	if dc.Driver == "memory" {
		slog.Warn("Using in-memory repositories, orders are lost on restart")
		return repositories{
			products: repomemory.NewProductRepository(),
			orders:   repomemory.NewOrderRepository(),
			events:   repomemory.NewEventStore(),
		}, nil
	}

	db, err := postgres.InitDB(ctx, dc.URL)
	if err != nil {
		return repositories{}, err
	}
	return repositories{
		products: postgres.NewProductRepository(db),
		orders:   postgres.NewOrderRepository(db),
		events:   postgres.NewEventStore(db),
		db:       db,
	}, nil
}

type broker interface {
	messaging.Publisher
	messaging.Subscriber
	Close() error
}

func openBroker(mc config.MessagingConfig) broker {
	if mc.Driver == "memory" {
		slog.Info("Using in-process message broker")
		return msgmemory.NewBroker()
	}
	slog.Info("Using Kafka message broker", "brokers", mc.Brokers)
	return kafka.NewKafkaBroker(mc.Brokers)
}

// openStorage returns the cart storage and a function releasing it.
func openStorage(ctx context.Context, sc config.StorageConfig) (storage.Storage, func() error, error) {
	switch sc.Driver {
	case "redis":
		ttl, err := sc.TTL()
		if err != nil {
			return nil, nil, err
		}
		client, err := storageredis.Connect(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Cart storage: redis", "addr", sc.RedisAddr, "ttl", ttl)
		return storageredis.NewStorage(client, "storefront:", ttl), client.Close, nil
	case "sqlite":
		st, err := sqlite.Open(sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Cart storage: sqlite", "path", sc.SQLitePath)
		return st, st.Close, nil
	case "memory":
		slog.Info("Cart storage: memory")
		return storagememory.New(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}
