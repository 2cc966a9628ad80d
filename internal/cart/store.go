// Package cart owns the persisted shopping cart: line items, the quantity/stock
// invariant, totals and change notification.
//
// A Store keeps the cart in memory and writes the full state back to its
// storage.Storage on a background goroutine after every change. Writes
// coalesce: if several mutations land before the writer wakes up, only the
// latest state is written. Storage failures are logged and never surfaced to
// callers; the next mutation simply tries again.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/storage"
)

// DefaultKey is the storage key used when no WithKey option is given.
const DefaultKey = "cart"

// DefaultTaxRate is applied by Totals.
var DefaultTaxRate = decimal.RequireFromString("0.18")

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key holding the serialized cart.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithTaxRate overrides DefaultTaxRate for Totals.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(s *Store) { s.taxRate = rate }
}

// WithWriteTimeout bounds each background storage write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

type writeOp struct {
	data   []byte
	remove bool
}

// Store is the authoritative cart. It is safe for concurrent use, but callers
// must wait for Load before mutating.
type Store struct {
	storage      storage.Storage
	key          string
	taxRate      decimal.Decimal
	writeTimeout time.Duration

	mu       sync.Mutex
	idle     *sync.Cond
	cart     *entity.Cart
	revision uint64 // bumped on every change
	loading  bool
	next     *writeOp // latest unwritten state
	writing  bool
	closed   bool

	kick chan struct{}
	done chan struct{}

	observers
}

// NewStore creates an empty, not yet loaded Store and starts its writer.
func NewStore(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage:      st,
		key:          DefaultKey,
		taxRate:      DefaultTaxRate,
		writeTimeout: 5 * time.Second,
		cart:         entity.NewCart(),
		loading:      true,
		kick:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	go s.persist()
	return s
}

// Key returns the storage key of the cart.
func (s *Store) Key() string {
	return s.key
}

// Load restores the cart from storage. A missing key yields an empty cart;
// unreadable or malformed data is logged and also yields an empty cart.
func (s *Store) Load(ctx context.Context) {
	if err := s.load(ctx); err != nil {
		slog.Error("Failed to read cart, starting empty", "key", s.key, "err", err)
		s.restore(entity.NewCart())
	}
}

// load is Load without the read-error fallback: the store stays unloaded and
// the error is returned.
func (s *Store) load(ctx context.Context) error {
	s.Flush()

	cart := entity.NewCart()
	data, err := s.storage.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read cart %s: %w", s.key, err)
	default:
		if err := json.Unmarshal(data, &cart.Items); err != nil {
			slog.Warn("Malformed cart in storage, starting empty", "key", s.key, "err", err)
			cart = entity.NewCart()
		}
		cart.Sanitize()
	}

	s.restore(cart)
	return nil
}

func (s *Store) restore(cart *entity.Cart) {
	s.mu.Lock()
	s.cart = cart
	s.loading = false
	s.mu.Unlock()

	slog.Debug("Cart loaded", "key", s.key, "items", len(cart.Items))
}

// IsLoading reports whether Load has not completed yet.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// AddItem adds one unit of item. If the product is already in the cart its
// quantity is incremented, unless that would exceed the line's stock, in which
// case nothing happens. It reports whether the cart changed.
func (s *Store) AddItem(item entity.CartLineItem) bool {
	return s.mutate(func(c *entity.Cart) (bool, bool) { return c.Add(item), false })
}

// UpdateQuantity sets the quantity of a line, clamped to its stock. A
// quantity <= 0 removes the line. Unknown ids are ignored.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	s.mutate(func(c *entity.Cart) (bool, bool) { return c.SetQuantity(productID, quantity), false })
}

// RemoveItem deletes a line. Unknown ids are ignored.
func (s *Store) RemoveItem(productID string) {
	s.mutate(func(c *entity.Cart) (bool, bool) { return c.Remove(productID), false })
}

// Clear empties the cart and deletes the persisted copy.
func (s *Store) Clear() {
	s.mutate(func(c *entity.Cart) (bool, bool) { return c.Reset(), true })
}

// Snapshot is a consistent view of the cart taken under one lock.
type Snapshot struct {
	Items    []entity.CartLineItem
	Totals   entity.Totals
	Revision uint64
}

// Snapshot returns the items and their totals as of the same revision.
func (s *Store) Snapshot(shipping decimal.Decimal) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Items:    s.cart.Clone().Items,
		Totals:   s.cart.Totals(shipping, s.taxRate),
		Revision: s.revision,
	}
}

// Settle removes what snap ordered. If the cart is unchanged since snap it is
// cleared like Clear; otherwise only the ordered quantities are taken out, so
// lines added in the meantime stay.
func (s *Store) Settle(snap Snapshot) {
	s.mutate(func(c *entity.Cart) (bool, bool) {
		if s.revision == snap.Revision {
			return c.Reset(), true
		}
		changed := c.Subtract(snap.Items)
		return changed, len(c.Items) == 0
	})
}

// mutate applies fn under the lock. fn reports whether the cart changed and
// whether the persisted copy should be removed instead of rewritten.
func (s *Store) mutate(fn func(*entity.Cart) (changed, remove bool)) bool {
	s.mu.Lock()
	if s.loading {
		slog.Warn("Cart mutated before load completed", "key", s.key)
	}
	changed, remove := fn(s.cart)
	if !changed && !remove {
		s.mu.Unlock()
		return false
	}

	if remove {
		s.schedule(&writeOp{remove: true})
	} else if data, err := json.Marshal(s.cart.Items); err != nil {
		slog.Error("Failed to encode cart", "key", s.key, "err", err)
	} else {
		s.schedule(&writeOp{data: data})
	}

	var event ChangeEvent
	if changed {
		s.revision++
		event = ChangeEvent{Key: s.key, Items: s.cart.Clone().Items, ItemCount: s.cart.ItemCount()}
	}
	s.mu.Unlock()

	if changed {
		s.notify(event)
	}
	return changed
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []entity.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone().Items
}

// Item returns the line for productID.
func (s *Store) Item(productID string) (entity.CartLineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.cart.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return entity.CartLineItem{}, false
}

// TotalItemCount is the sum of all line quantities.
func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// Totals computes the order totals with the store's tax rate.
func (s *Store) Totals(shipping decimal.Decimal) entity.Totals {
	return s.TotalsWithRate(shipping, s.taxRate)
}

// TotalsWithRate computes the order totals with an explicit tax rate.
func (s *Store) TotalsWithRate(shipping, taxRate decimal.Decimal) entity.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Totals(shipping, taxRate)
}

// schedule replaces any pending write with op. s.mu must be held.
func (s *Store) schedule(op *writeOp) {
	if s.closed {
		slog.Warn("Cart store closed, change not persisted", "key", s.key)
		return
	}
	s.next = op
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Store) persist() {
	defer close(s.done)
	for range s.kick {
		s.drain()
	}
	s.drain()
}

func (s *Store) drain() {
	s.mu.Lock()
	for s.next != nil {
		op := s.next
		s.next = nil
		s.writing = true
		s.mu.Unlock()

		s.write(op)

		s.mu.Lock()
		s.writing = false
	}
	s.idle.Broadcast()
	s.mu.Unlock()
}

func (s *Store) write(op *writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	var err error
	if op.remove {
		err = s.storage.Remove(ctx, s.key)
	} else {
		err = s.storage.Set(ctx, s.key, op.data)
	}
	if err != nil {
		slog.Error("Failed to persist cart", "key", s.key, "remove", op.remove, "err", err)
	}
}

// Flush blocks until every scheduled write has reached storage.
func (s *Store) Flush() {
	s.mu.Lock()
	for s.next != nil || s.writing {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Close flushes pending writes and stops the writer. Later mutations still
// apply in memory but are not persisted.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.kick)
	s.mu.Unlock()

	<-s.done
	return nil
}
