package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stream types used by the event store.
const (
	StreamOrder     = "order"
	StreamInventory = "inventory"
)

// EventStoreRecord represents an event stored in the database.
type EventStoreRecord struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	StreamType string    `json:"stream_type"`
	Version    int       `json:"version"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event represents a domain event.
type Event interface {
	EventType() string
}

// Aggregate represents a domain aggregate root.
type Aggregate interface {
	GetAggregateID() string
	GetVersion() int
	ApplyEvent(event Event) error
}

// AggregateBase provides the id/version bookkeeping shared by aggregates.
type AggregateBase struct {
	ID      string
	Version int
}

func (a *AggregateBase) GetAggregateID() string {
	return a.ID
}

func (a *AggregateBase) GetVersion() int {
	return a.Version
}

// decoders maps stored event type names to a constructor for their payload.
var decoders = map[string]func() Event{
	"OrderPlaced":          func() Event { return &OrderPlaced{} },
	"OrderConfirmed":       func() Event { return &OrderConfirmed{} },
	"ProductStockUpdated":  func() Event { return &ProductStockUpdated{} },
	"InventoryReserved":    func() Event { return &InventoryReserved{} },
	"ReservationReleased":  func() Event { return &ReservationReleased{} },
	"ReservationConfirmed": func() Event { return &ReservationConfirmed{} },
}

// DecodeEvent unmarshals a stored record into its typed event value.
func DecodeEvent(rec EventStoreRecord) (Event, error) {
	newEvent, ok := decoders[rec.EventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type in stream %s: %s", rec.StreamID, rec.EventType)
	}
	ptr := newEvent()
	if err := json.Unmarshal(rec.Payload, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", rec.EventType, err)
	}
	return deref(ptr), nil
}

func deref(e Event) Event {
	switch v := e.(type) {
	case *OrderPlaced:
		return *v
	case *OrderConfirmed:
		return *v
	case *ProductStockUpdated:
		return *v
	case *InventoryReserved:
		return *v
	case *ReservationReleased:
		return *v
	case *ReservationConfirmed:
		return *v
	}
	return e
}

// Rehydrate replays records onto agg in order.
func Rehydrate(agg Aggregate, records []EventStoreRecord) error {
	for _, rec := range records {
		e, err := DecodeEvent(rec)
		if err != nil {
			return err
		}
		if err := agg.ApplyEvent(e); err != nil {
			return fmt.Errorf("failed to apply event from stream: %w", err)
		}
	}
	return nil
}

// OrderStreamID is the event stream of one order.
func OrderStreamID(orderID string) string {
	return StreamOrder + "-" + orderID
}

// InventoryStreamID is the event stream of one product's stock.
func InventoryStreamID(productID string) string {
	return StreamInventory + "-" + productID
}
