package entity

import (
	"errors"
	"fmt"
)

// ErrInsufficientStock is returned by Reserve when the product cannot cover
// the requested quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

// InventoryAggregate tracks the stock of a product by replaying events.
type InventoryAggregate struct {
	AggregateBase
	HardStock     int // physical items
	ReservedStock int // items locked for pending orders
}

// NewInventoryAggregate creates a new InventoryAggregate seeded with the
// catalog stock.
func NewInventoryAggregate(productID string, catalogStock int) *InventoryAggregate {
	return &InventoryAggregate{
		AggregateBase: AggregateBase{ID: productID, Version: 0},
		HardStock:     catalogStock,
	}
}

// AvailableStock returns the stock available for new reservations.
func (a *InventoryAggregate) AvailableStock() int {
	return a.HardStock - a.ReservedStock
}

// Reserve checks availability and returns the event soft-locking quantity
// units for orderID. The aggregate itself is not changed.
func (a *InventoryAggregate) Reserve(orderID string, quantity int) (InventoryReserved, error) {
	if quantity <= 0 {
		return InventoryReserved{}, fmt.Errorf("invalid reservation quantity %d for product %s", quantity, a.ID)
	}
	if available := a.AvailableStock(); available < quantity {
		return InventoryReserved{}, fmt.Errorf("%w for product %s (available: %d, requested: %d)",
			ErrInsufficientStock, a.ID, available, quantity)
	}
	return InventoryReserved{OrderID: orderID, ProductID: a.ID, Quantity: quantity}, nil
}

// ApplyEvent mutates the aggregate state based on the event.
func (a *InventoryAggregate) ApplyEvent(e Event) error {
	switch e := e.(type) {
	case ProductStockUpdated:
		a.HardStock = e.NewStock
	case InventoryReserved:
		a.ReservedStock += e.Quantity
	case ReservationReleased:
		a.ReservedStock -= e.Quantity
	case ReservationConfirmed:
		a.ReservedStock -= e.Quantity
		a.HardStock -= e.Quantity
	default:
		return fmt.Errorf("unknown event type for InventoryAggregate: %s", e.EventType())
	}
	a.Version++
	return nil
}

// Rehydrate rebuilds the aggregate from a list of records.
func (a *InventoryAggregate) Rehydrate(records []EventStoreRecord) error {
	return Rehydrate(a, records)
}
