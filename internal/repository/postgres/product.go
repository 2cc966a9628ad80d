package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/repository"
)

const productColumns = "id, title, description, price, image, category, stock, sizes, type, combo_items"

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository backed by Postgres.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (entity.Product, error) {
	var (
		p     entity.Product
		ptype string
		combo []byte
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Image, &p.Category, &p.Stock, pq.Array(&p.Sizes), &ptype, &combo)
	if err != nil {
		return p, err
	}
	p.Type = entity.ProductType(ptype)
	if len(combo) > 0 {
		var items entity.ComboItems
		if err := json.Unmarshal(combo, &items); err != nil {
			return p, fmt.Errorf("failed to decode combo_items of %s: %w", p.ID, err)
		}
		p.ComboItems = &items
	}
	return p, nil
}

func (r *productRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY category, title")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", id, err)
	}
	return &p, nil
}

func (r *productRepository) Seed(ctx context.Context, products []entity.Product) error {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return nil // already seeded
	}

	for _, p := range products {
		var combo any // NULL unless the product is a combo
		if p.ComboItems != nil {
			raw, err := json.Marshal(p.ComboItems)
			if err != nil {
				return fmt.Errorf("failed to encode combo_items of %s: %w", p.ID, err)
			}
			combo = string(raw)
		}
		ptype := p.Type
		if ptype == "" {
			ptype = entity.ProductIndividual
		}
		sizes := p.Sizes
		if sizes == nil {
			sizes = []string{}
		}
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO products ("+productColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
			p.ID, p.Title, p.Description, p.Price, p.Image, p.Category, p.Stock, pq.Array(sizes), string(ptype), combo,
		)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
	}

	slog.Info("Seeded products", "count", len(products))
	return nil
}
