package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/egannguyen/storefront/internal/cart"
	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/messaging"
	"github.com/egannguyen/storefront/internal/repository"
)

var ErrInsufficientStock = entity.ErrInsufficientStock

// OrderService orchestrates order-related business logic.
type OrderService struct {
	orderRepo   repository.OrderRepository // read model
	productRepo repository.ProductRepository
	eventStore  repository.EventStore
	publisher   messaging.Publisher
	carts       *cart.Sessions
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	eventStore repository.EventStore,
	publisher messaging.Publisher,
	carts *cart.Sessions,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		eventStore:  eventStore,
		publisher:   publisher,
		carts:       carts,
	}
}

// GetProducts returns all available products.
func (s *OrderService) GetProducts(ctx context.Context) ([]entity.Product, error) {
	return s.productRepo.FindAll(ctx)
}

// GetRecentOrders returns the latest orders.
func (s *OrderService) GetRecentOrders(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.orderRepo.FindRecent(ctx, limit)
}

// Checkout turns the cart into an order. Items and totals come from one
// snapshot of the cart; once the order is placed exactly that snapshot is
// taken out of the cart, so changes made meanwhile survive.
func (s *OrderService) Checkout(ctx context.Context, cartID string, shipping decimal.Decimal) (*entity.PlaceOrder, error) {
	store, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	snap := store.Snapshot(shipping)
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	cmd := &entity.PlaceOrder{
		OrderID: uuid.NewString(),
		CartID:  cartID,
		Items:   make([]entity.OrderItem, 0, len(snap.Items)),
		Totals:  snap.Totals,
	}
	for _, line := range snap.Items {
		cmd.Items = append(cmd.Items, entity.OrderItemFromLine(line))
	}

	if err := s.PlaceOrder(ctx, cmd); err != nil {
		return nil, err
	}

	store.Settle(snap)
	return cmd, nil
}

type reservation struct {
	productID string
	quantity  int
}

// reservations lists the catalog products an order draws stock from. A custom
// set reserves each of its distinct component products.
func reservations(items []entity.OrderItem) []reservation {
	var out []reservation
	index := make(map[string]int)
	add := func(id string, qty int) {
		if i, ok := index[id]; ok {
			out[i].quantity += qty
			return
		}
		index[id] = len(out)
		out = append(out, reservation{productID: id, quantity: qty})
	}

	for _, item := range items {
		ids := item.ComponentIDs
		if len(ids) == 0 {
			ids = []string{item.ProductID}
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			add(id, item.Quantity)
		}
	}
	return out
}

// PlaceOrder reserves inventory, appends OrderPlaced and publishes it.
// Placing an order id twice is a no-op.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd *entity.PlaceOrder) error {
	slog.Info("Service: Placing order", "order_id", cmd.OrderID, "items", len(cmd.Items))

	if len(cmd.Items) == 0 {
		return ErrEmptyCart
	}

	streamID := entity.OrderStreamID(cmd.OrderID)
	records, err := s.eventStore.LoadEvents(ctx, streamID)
	if err != nil {
		return fmt.Errorf("failed to load order history: %w", err)
	}
	if len(records) > 0 {
		slog.Info("Order already exists (idempotency)", "order_id", cmd.OrderID)
		return nil
	}

	wanted := reservations(cmd.Items)
	versions := make([]int, len(wanted))
	events := make([]entity.InventoryReserved, len(wanted))
	for i, res := range wanted {
		agg, err := s.inventory(ctx, res.productID)
		if err != nil {
			return err
		}
		if events[i], err = agg.Reserve(cmd.OrderID, res.quantity); err != nil {
			return err
		}
		versions[i] = agg.GetVersion()
	}

	var reserved []reservation
	for i, res := range wanted {
		err := s.eventStore.SaveEvents(ctx, entity.InventoryStreamID(res.productID), entity.StreamInventory, versions[i], []entity.Event{events[i]})
		if err != nil {
			s.release(ctx, cmd.OrderID, reserved)
			return fmt.Errorf("failed to save InventoryReserved event: %w", err)
		}
		reserved = append(reserved, res)
	}

	placed := entity.OrderPlaced{
		OrderID:  cmd.OrderID,
		CartID:   cmd.CartID,
		Items:    cmd.Items,
		Totals:   cmd.Totals,
		PlacedAt: time.Now().UTC(),
	}
	if err := s.eventStore.SaveEvents(ctx, streamID, entity.StreamOrder, 0, []entity.Event{placed}); err != nil {
		s.release(ctx, cmd.OrderID, reserved)
		return fmt.Errorf("failed to save OrderPlaced event: %w", err)
	}

	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrdersPlaced, cmd.OrderID, placed); err != nil {
		return fmt.Errorf("failed to publish OrderPlaced event: %w", err)
	}
	return nil
}

func (s *OrderService) inventory(ctx context.Context, productID string) (*entity.InventoryAggregate, error) {
	p, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	records, err := s.eventStore.LoadEvents(ctx, entity.InventoryStreamID(productID))
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory history for %s: %w", productID, err)
	}
	agg := entity.NewInventoryAggregate(productID, p.Stock)
	if err := agg.Rehydrate(records); err != nil {
		return nil, fmt.Errorf("failed to rehydrate inventory aggregate: %w", err)
	}
	return agg, nil
}

func (s *OrderService) release(ctx context.Context, orderID string, reserved []reservation) {
	for _, res := range reserved {
		event := entity.ReservationReleased{OrderID: orderID, ProductID: res.productID, Quantity: res.quantity}
		if err := s.eventStore.SaveEvents(ctx, entity.InventoryStreamID(res.productID), entity.StreamInventory, -1, []entity.Event{event}); err != nil {
			slog.Error("Failed to release reservation", "order_id", orderID, "product_id", res.productID, "err", err)
		}
	}
}

// HandleOrderPlaced is triggered by the message broker when an order is placed.
func (s *OrderService) HandleOrderPlaced(ctx context.Context, event *entity.OrderPlaced) error {
	slog.Info("Service: Confirming order", "order_id", event.OrderID)

	if err := s.orderRepo.UpdateOrderProjection(ctx, *event); err != nil {
		slog.Error("Failed to update projection for OrderPlaced", "order_id", event.OrderID, "err", err)
	}

	streamID := entity.OrderStreamID(event.OrderID)
	records, err := s.eventStore.LoadEvents(ctx, streamID)
	if err != nil {
		return fmt.Errorf("failed to load order events: %w", err)
	}

	aggregate := entity.NewOrderAggregate(event.OrderID)
	if err := aggregate.Rehydrate(records); err != nil {
		return fmt.Errorf("failed to rehydrate order aggregate: %w", err)
	}

	if aggregate.Status == entity.StatusConfirmed {
		slog.Info("Order already confirmed", "order_id", event.OrderID)
		return nil
	}

	confirmed := entity.OrderConfirmed{
		OrderID:     event.OrderID,
		ConfirmedAt: time.Now().UTC(),
	}
	if err := s.eventStore.SaveEvents(ctx, streamID, entity.StreamOrder, aggregate.GetVersion(), []entity.Event{confirmed}); err != nil {
		return fmt.Errorf("failed to save OrderConfirmed event: %w", err)
	}

	for _, res := range reservations(event.Items) {
		e := entity.ReservationConfirmed{OrderID: event.OrderID, ProductID: res.productID, Quantity: res.quantity}
		if err := s.eventStore.SaveEvents(ctx, entity.InventoryStreamID(res.productID), entity.StreamInventory, -1, []entity.Event{e}); err != nil {
			slog.Error("Failed to confirm reservation", "order_id", event.OrderID, "product_id", res.productID, "err", err)
		}
	}

	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrdersConfirmed, event.OrderID, confirmed); err != nil {
		slog.Error("Failed to publish OrderConfirmed", "order_id", event.OrderID, "err", err)
	}

	slog.Info("Order confirmed", "order_id", event.OrderID)
	return nil
}

// HandleOrderConfirmed updates the read model when an order is confirmed.
func (s *OrderService) HandleOrderConfirmed(ctx context.Context, event *entity.OrderConfirmed) error {
	slog.Info("Projection: Updating OrderConfirmed", "order_id", event.OrderID)
	return s.orderRepo.UpdateOrderProjection(ctx, *event)
}

// ConsumeOrderPlaced decodes an orders.placed payload for HandleOrderPlaced.
func (s *OrderService) ConsumeOrderPlaced(ctx context.Context, payload []byte) error {
	var event entity.OrderPlaced
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
	}
	return s.HandleOrderPlaced(ctx, &event)
}

// ConsumeOrderConfirmed decodes an orders.confirmed payload for HandleOrderConfirmed.
func (s *OrderService) ConsumeOrderConfirmed(ctx context.Context, payload []byte) error {
	var event entity.OrderConfirmed
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal OrderConfirmed event: %w", err)
	}
	return s.HandleOrderConfirmed(ctx, &event)
}
