package entity

import (
	"fmt"
	"time"
)

// OrderAggregate manages the state of an Order by replaying events.
type OrderAggregate struct {
	AggregateBase
	CartID    string
	Items     []OrderItem
	Totals    Totals
	Status    string
	CreatedAt time.Time
}

// NewOrderAggregate creates an empty OrderAggregate for id.
func NewOrderAggregate(id string) *OrderAggregate {
	return &OrderAggregate{
		AggregateBase: AggregateBase{ID: id, Version: 0},
		Status:        StatusPending,
	}
}

// ApplyEvent mutates the aggregate state based on the event.
func (a *OrderAggregate) ApplyEvent(e Event) error {
	switch e := e.(type) {
	case OrderPlaced:
		a.CartID = e.CartID
		a.Items = e.Items
		a.Totals = e.Totals
		a.Status = StatusPlaced
		if a.CreatedAt.IsZero() {
			a.CreatedAt = e.PlacedAt
		}
	case OrderConfirmed:
		a.Status = StatusConfirmed
	default:
		return fmt.Errorf("unknown event type for OrderAggregate: %s", e.EventType())
	}
	a.Version++
	return nil
}

// Rehydrate rebuilds the aggregate from a list of records.
func (a *OrderAggregate) Rehydrate(records []EventStoreRecord) error {
	return Rehydrate(a, records)
}
