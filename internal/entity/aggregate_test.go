package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, streamID string, e Event) EventStoreRecord {
	t.Helper()
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	return EventStoreRecord{StreamID: streamID, EventType: e.EventType(), Payload: payload}
}

func TestOrderAggregate_Rehydrate(t *testing.T) {
	placedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []EventStoreRecord{
		record(t, "o-1", OrderPlaced{
			OrderID:  "o-1",
			CartID:   "c-1",
			Items:    []OrderItem{{ProductID: "A", Quantity: 2, Price: decimal.NewFromInt(10)}},
			Totals:   Totals{Total: decimal.NewFromInt(20)},
			PlacedAt: placedAt,
		}),
		record(t, "o-1", OrderConfirmed{OrderID: "o-1"}),
	}

	agg := NewOrderAggregate("o-1")
	require.NoError(t, agg.Rehydrate(records))

	assert.Equal(t, StatusConfirmed, agg.Status)
	assert.Equal(t, 2, agg.GetVersion())
	assert.Equal(t, "c-1", agg.CartID)
	assert.True(t, agg.Totals.Total.Equal(decimal.NewFromInt(20)))
	assert.True(t, agg.CreatedAt.Equal(placedAt))
}

func TestInventoryAggregate_Rehydrate(t *testing.T) {
	records := []EventStoreRecord{
		record(t, "A", InventoryReserved{OrderID: "o-1", ProductID: "A", Quantity: 3}),
		record(t, "A", InventoryReserved{OrderID: "o-2", ProductID: "A", Quantity: 2}),
		record(t, "A", ReservationReleased{OrderID: "o-2", ProductID: "A", Quantity: 2}),
		record(t, "A", ReservationConfirmed{OrderID: "o-1", ProductID: "A", Quantity: 3}),
	}

	agg := NewInventoryAggregate("A", 10)
	require.NoError(t, agg.Rehydrate(records))

	assert.Equal(t, 7, agg.HardStock)
	assert.Equal(t, 0, agg.ReservedStock)
	assert.Equal(t, 7, agg.AvailableStock())
}

func TestRehydrate_UnknownEventType(t *testing.T) {
	agg := NewOrderAggregate("o-1")
	err := agg.Rehydrate([]EventStoreRecord{{StreamID: "o-1", EventType: "Bogus", Payload: []byte("{}")}})
	assert.ErrorContains(t, err, "unknown event type")
}

func TestRehydrate_WrongAggregate(t *testing.T) {
	agg := NewOrderAggregate("o-1")
	err := agg.Rehydrate([]EventStoreRecord{record(t, "o-1", InventoryReserved{ProductID: "A", Quantity: 1})})
	assert.ErrorContains(t, err, "unknown event type for OrderAggregate")
}

func TestInventoryAggregate_Reserve(t *testing.T) {
	agg := NewInventoryAggregate("A", 3)
	require.NoError(t, agg.ApplyEvent(InventoryReserved{ProductID: "A", Quantity: 2}))

	e, err := agg.Reserve("o-2", 1)
	require.NoError(t, err)
	assert.Equal(t, InventoryReserved{OrderID: "o-2", ProductID: "A", Quantity: 1}, e)
	assert.Equal(t, 1, agg.AvailableStock(), "Reserve does not apply the event")

	_, err = agg.Reserve("o-3", 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = agg.Reserve("o-4", 0)
	assert.Error(t, err)
}

func TestStreamIDs(t *testing.T) {
	assert.Equal(t, "order-o-1", OrderStreamID("o-1"))
	assert.Equal(t, "inventory-A", InventoryStreamID("A"))
}
