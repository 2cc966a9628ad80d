// Package memory provides in-process repositories for running the storefront
// without Postgres. Nothing survives a restart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/repository"
)

// ProductRepository is a catalog held in a map.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]entity.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]entity.Product)}
}

// FindAll returns the catalog ordered by category and title.
func (r *ProductRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("failed to find product %s: %w", id, repository.ErrNotFound)
	}
	return &p, nil
}

// Seed inserts products if the catalog is empty.
func (r *ProductRepository) Seed(ctx context.Context, products []entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.products) > 0 {
		return nil
	}
	for _, p := range products {
		if p.Type == "" {
			p.Type = entity.ProductIndividual
		}
		r.products[p.ID] = p
	}
	slog.Info("Seeded products", "count", len(products))
	return nil
}

// OrderRepository is the orders read model held in a map.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]entity.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]entity.Order)}
}

func (r *OrderRepository) UpdateOrderProjection(ctx context.Context, event entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := event.(type) {
	case entity.OrderPlaced:
		if _, ok := r.orders[e.OrderID]; ok {
			return nil
		}
		r.orders[e.OrderID] = entity.Order{
			ID:        e.OrderID,
			CartID:    e.CartID,
			Items:     e.Items,
			Totals:    e.Totals,
			Status:    entity.StatusPlaced,
			CreatedAt: e.PlacedAt,
		}
	case entity.OrderConfirmed:
		o, ok := r.orders[e.OrderID]
		if !ok {
			return nil
		}
		o.Status = entity.StatusConfirmed
		r.orders[e.OrderID] = o
	default:
		return fmt.Errorf("unsupported event for order projection: %s", event.EventType())
	}
	return nil
}

// FindRecent returns up to limit orders, newest first.
func (r *OrderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EventStore keeps event streams in memory with the same versioning rules as
// the Postgres store.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]entity.EventStoreRecord
}

func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[string][]entity.EventStoreRecord)}
}

func (s *EventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := len(s.streams[streamID])
	if expectedVersion >= 0 && version != expectedVersion {
		return &repository.ErrConcurrency{StreamID: streamID, Expected: expectedVersion, Actual: version}
	}

	records := make([]entity.EventStoreRecord, 0, len(events))
	now := time.Now()
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}
		version++
		records = append(records, entity.EventStoreRecord{
			ID:         uuid.NewString(),
			StreamID:   streamID,
			StreamType: streamType,
			Version:    version,
			EventType:  event.EventType(),
			Payload:    payload,
			CreatedAt:  now,
		})
	}
	s.streams[streamID] = append(s.streams[streamID], records...)
	return nil
}

func (s *EventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.EventStoreRecord(nil), s.streams[streamID]...), nil
}

var (
	_ repository.ProductRepository = (*ProductRepository)(nil)
	_ repository.OrderRepository   = (*OrderRepository)(nil)
	_ repository.EventStore        = (*EventStore)(nil)
)
