package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/egannguyen/storefront/internal/entity"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConcurrency is returned when a stream moved past the expected version.
type ErrConcurrency struct {
	StreamID string
	Expected int
	Actual   int
}

func (e *ErrConcurrency) Error() string {
	return fmt.Sprintf("concurrency exception on %s: expected version %d, got %d", e.StreamID, e.Expected, e.Actual)
}

// ProductRepository reads the catalog.
type ProductRepository interface {
	FindAll(ctx context.Context) ([]entity.Product, error)
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
}

// OrderRepository maintains the orders read model.
type OrderRepository interface {
	UpdateOrderProjection(ctx context.Context, event entity.Event) error
	FindRecent(ctx context.Context, limit int) ([]entity.Order, error)
}

// EventStore handles appending and loading events for an aggregate stream.
// An expectedVersion of -1 skips the optimistic concurrency check.
type EventStore interface {
	SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error
	LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error)
}
