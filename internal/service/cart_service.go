package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/storefront/internal/bundle"
	"github.com/egannguyen/storefront/internal/cart"
	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrEmptyCart       = errors.New("cart is empty")
)

// CartView is the state of a cart returned to clients.
type CartView struct {
	CartID    string                `json:"cart_id"`
	Items     []entity.CartLineItem `json:"items"`
	ItemCount int                   `json:"item_count"`
}

// CartService exposes session carts and their bundle composers.
type CartService struct {
	sessions     *cart.Sessions
	productRepo  repository.ProductRepository
	deriver      bundle.ImageDeriver
	composerOpts []bundle.Option

	mu        sync.Mutex
	composers map[string]*composerEntry
}

type composerEntry struct {
	composer *bundle.Composer
	lastUsed time.Time
}

func NewCartService(
	sessions *cart.Sessions,
	productRepo repository.ProductRepository,
	deriver bundle.ImageDeriver,
	composerOpts ...bundle.Option,
) *CartService {
	return &CartService{
		sessions:     sessions,
		productRepo:  productRepo,
		deriver:      deriver,
		composerOpts: composerOpts,
		composers:    make(map[string]*composerEntry),
	}
}

func view(cartID string, store *cart.Store) CartView {
	return CartView{CartID: cartID, Items: store.Items(), ItemCount: store.TotalItemCount()}
}

// Cart returns the current contents of cartID.
func (s *CartService) Cart(ctx context.Context, cartID string) (CartView, error) {
	store, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		return CartView{}, fmt.Errorf("failed to load cart: %w", err)
	}
	return view(cartID, store), nil
}

func (s *CartService) product(ctx context.Context, productID string) (*entity.Product, error) {
	p, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return p, nil
}

// AddProduct adds one unit of a catalog product to the cart.
func (s *CartService) AddProduct(ctx context.Context, cartID, productID string) (CartView, error) {
	p, err := s.product(ctx, productID)
	if err != nil {
		return CartView{}, err
	}
	store, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		return CartView{}, fmt.Errorf("failed to load cart: %w", err)
	}

	slog.Info("Adding product to cart", "cart_id", cartID, "product_id", productID)
	store.AddItem(p.LineItem())
	return view(cartID, store), nil
}

// UpdateQuantity sets the quantity of a line; see cart.Store.UpdateQuantity.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (CartView, error) {
	store, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		return CartView{}, fmt.Errorf("failed to load cart: %w", err)
	}
	store.UpdateQuantity(productID, quantity)
	return view(cartID, store), nil
}

// RemoveItem deletes a line.
func (s *CartService) RemoveItem(ctx context.Context, cartID, productID string) (CartView, error) {
	store, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		return CartView{}, fmt.Errorf("failed to load cart: %w", err)
	}
	store.RemoveItem(productID)
	return view(cartID, store), nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, cartID string) error {
	store, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}
	store.Clear()
	return nil
}

// Totals computes the cart totals for the given shipping cost.
func (s *CartService) Totals(ctx context.Context, cartID string, shipping decimal.Decimal) (entity.Totals, error) {
	store, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		return entity.Totals{}, fmt.Errorf("failed to load cart: %w", err)
	}
	return store.Totals(shipping), nil
}

// Composer returns the bundle composer of cartID, creating it on first use.
func (s *CartService) Composer(cartID string) *bundle.Composer {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.composers[cartID]
	if !ok {
		e = &composerEntry{composer: bundle.NewComposer(s.deriver, s.composerOpts...)}
		s.composers[cartID] = e
	}
	e.lastUsed = time.Now()
	return e.composer
}

// Selection returns the bundle selection of cartID without creating a
// composer for carts that never assigned a slot.
func (s *CartService) Selection(cartID string) bundle.Selection {
	s.mu.Lock()
	e, ok := s.composers[cartID]
	if ok {
		e.lastUsed = time.Now()
	}
	s.mu.Unlock()

	if !ok {
		return bundle.NewComposer(s.deriver, s.composerOpts...).Selection()
	}
	return e.composer.Selection()
}

// EvictIdle unloads carts and drops bundle selections not used for at least
// maxIdle. It returns how many of each were removed.
func (s *CartService) EvictIdle(maxIdle time.Duration) (carts, composers int) {
	carts = len(s.sessions.EvictIdle(maxIdle))

	now := time.Now()
	s.mu.Lock()
	for id, e := range s.composers {
		if now.Sub(e.lastUsed) >= maxIdle {
			delete(s.composers, id)
			composers++
		}
	}
	s.mu.Unlock()
	return carts, composers
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (s *CartService) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			carts, composers := s.EvictIdle(maxIdle)
			if carts > 0 || composers > 0 {
				slog.Info("Evicted idle sessions", "carts", carts, "composers", composers)
			}
		}
	}
}

// AssignSlot puts a catalog product into a bundle slot.
func (s *CartService) AssignSlot(ctx context.Context, cartID string, slot entity.Slot, productID string) (bundle.Selection, error) {
	if !slot.Valid() {
		return bundle.Selection{}, fmt.Errorf("%w: %q", bundle.ErrUnknownSlot, slot)
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return bundle.Selection{}, err
	}
	c := s.Composer(cartID)
	if err := c.AssignSlot(slot, *p); err != nil {
		return bundle.Selection{}, err
	}
	return c.Selection(), nil
}

// ClearSlot empties one bundle slot.
func (s *CartService) ClearSlot(cartID string, slot entity.Slot) (bundle.Selection, error) {
	c := s.Composer(cartID)
	if err := c.ClearSlot(slot); err != nil {
		return bundle.Selection{}, err
	}
	return c.Selection(), nil
}

// ClearBundle resets every bundle slot.
func (s *CartService) ClearBundle(cartID string) bundle.Selection {
	c := s.Composer(cartID)
	c.ClearAll()
	return c.Selection()
}

// AddBundle hands a complete bundle to the cart as one line item and resets
// the composer. Incomplete bundles are rejected with bundle.ErrIncomplete.
// If the cart cannot take another unit of the set (no stock, or the line is
// already at its stock) the cart is unchanged and the selection is kept.
func (s *CartService) AddBundle(ctx context.Context, cartID string) (CartView, error) {
	c := s.Composer(cartID)
	item, err := c.ToLineItem()
	if err != nil {
		return CartView{}, err
	}
	store, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		return CartView{}, fmt.Errorf("failed to load cart: %w", err)
	}

	slog.Info("Adding custom set to cart", "cart_id", cartID, "product_id", item.ProductID, "price", item.Price)
	if store.AddItem(item) {
		c.ClearAll()
	} else {
		slog.Info("Custom set not added, stock exhausted", "cart_id", cartID, "product_id", item.ProductID)
	}
	return view(cartID, store), nil
}
