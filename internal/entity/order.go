package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	StatusPending   = "pending"
	StatusPlaced    = "placed"
	StatusConfirmed = "confirmed"
)

// OrderItem is a line item within an order.
type OrderItem struct {
	ProductID     string           `json:"product_id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	Quantity      int              `json:"quantity"`
	IsCustomCombo bool             `json:"is_custom_combo,omitempty"`
	Components    *ComponentImages `json:"component_images,omitempty"`
	ComponentIDs  []string         `json:"component_ids,omitempty"`
}

// OrderItemFromLine copies a cart line into an order line.
func OrderItemFromLine(line CartLineItem) OrderItem {
	return OrderItem{
		ProductID:     line.ProductID,
		Name:          line.Name,
		Price:         line.Price,
		Quantity:      line.Quantity,
		IsCustomCombo: line.IsCustomCombo,
		Components:    line.ComponentImages,
		ComponentIDs:  line.ComponentIDs,
	}
}

// Order represents a customer order.
type Order struct {
	ID        string      `json:"id"`
	CartID    string      `json:"cart_id"`
	Items     []OrderItem `json:"items"`
	Totals    Totals      `json:"totals"`
	Status    string      `json:"status"` // "placed", "confirmed"
	CreatedAt time.Time   `json:"created_at"`
}

// --- Commands ---

// PlaceOrder is a command to create a new order from a cart.
type PlaceOrder struct {
	OrderID string      `json:"order_id"`
	CartID  string      `json:"cart_id"`
	Items   []OrderItem `json:"items"`
	Totals  Totals      `json:"totals"`
}

// --- Events ---

// OrderPlaced is emitted when an order is successfully placed.
type OrderPlaced struct {
	OrderID  string      `json:"order_id"`
	CartID   string      `json:"cart_id"`
	Items    []OrderItem `json:"items"`
	Totals   Totals      `json:"totals"`
	PlacedAt time.Time   `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// OrderConfirmed is emitted when an order is confirmed.
type OrderConfirmed struct {
	OrderID     string    `json:"order_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func (e OrderConfirmed) EventType() string { return "OrderConfirmed" }

// ProductStockUpdated seeds or adjusts the physical stock of a product.
type ProductStockUpdated struct {
	ProductID string `json:"product_id"`
	NewStock  int    `json:"new_stock"`
}

func (e ProductStockUpdated) EventType() string { return "ProductStockUpdated" }

// InventoryReserved is emitted when stock is soft-locked for a pending order.
type InventoryReserved struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (e InventoryReserved) EventType() string { return "InventoryReserved" }

// ReservationReleased unlocks stock of a cancelled order.
type ReservationReleased struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (e ReservationReleased) EventType() string { return "ReservationReleased" }

// ReservationConfirmed turns a soft-lock into a hard deduction.
type ReservationConfirmed struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (e ReservationConfirmed) EventType() string { return "ReservationConfirmed" }

// CartChanged is broadcast after every committed cart mutation.
type CartChanged struct {
	CartID    string         `json:"cart_id"`
	Items     []CartLineItem `json:"cart"`
	ItemCount int            `json:"item_count"`
}

func (e CartChanged) EventType() string { return "CartChanged" }
