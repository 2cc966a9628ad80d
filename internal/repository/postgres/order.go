package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/repository"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) UpdateOrderProjection(ctx context.Context, event entity.Event) error {
	switch e := event.(type) {
	case entity.OrderPlaced:
		return r.insertOrder(ctx, e)
	case entity.OrderConfirmed:
		_, err := r.db.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", entity.StatusConfirmed, e.OrderID)
		if err != nil {
			return fmt.Errorf("failed to confirm order: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported event for order projection: %s", event.EventType())
	}
}

func (r *orderRepository) insertOrder(ctx context.Context, e entity.OrderPlaced) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ON CONFLICT keeps the projection idempotent under redelivery.
	var inserted bool
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, cart_id, subtotal, tax, shipping, total, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING RETURNING true`,
		e.OrderID, e.CartID, e.Totals.Subtotal, e.Totals.Tax, e.Totals.Shipping, e.Totals.Total, entity.StatusPlaced, e.PlacedAt,
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Info("Order already projected, skipping", "order_id", e.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range e.Items {
		var components any
		if item.Components != nil {
			raw, err := json.Marshal(item.Components)
			if err != nil {
				return fmt.Errorf("failed to encode component images: %w", err)
			}
			components = string(raw)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, price, quantity, is_custom_combo, component_images)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.OrderID, item.ProductID, item.Name, item.Price, item.Quantity, item.IsCustomCombo, components,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, cart_id, subtotal, tax, shipping, total, status, created_at FROM orders ORDER BY created_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		var o entity.Order
		if err := rows.Scan(&o.ID, &o.CartID, &o.Totals.Subtotal, &o.Totals.Tax, &o.Totals.Shipping, &o.Totals.Total, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	for i := range orders {
		items, err := r.findItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepository) findItems(ctx context.Context, orderID string) ([]entity.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, name, price, quantity, is_custom_combo, component_images FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []entity.OrderItem
	for rows.Next() {
		var (
			item       entity.OrderItem
			components []byte
		)
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.IsCustomCombo, &components); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if len(components) > 0 {
			item.Components = &entity.ComponentImages{}
			if err := json.Unmarshal(components, item.Components); err != nil {
				return nil, fmt.Errorf("failed to decode component images: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
