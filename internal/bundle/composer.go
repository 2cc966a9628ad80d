// Package bundle implements the build-your-own four piece jewelry set: slot
// selection, set pricing and the conversion of a finished set into one cart
// line item.
package bundle

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/storefront/internal/entity"
)

var (
	ErrUnknownSlot = errors.New("bundle: unknown slot")
	ErrIncomplete  = errors.New("bundle: all four slots must be filled")
)

// DefaultDiscountRate is the set discount applied by DiscountedPrice.
var DefaultDiscountRate = decimal.RequireFromString("0.18")

// CustomSetPrefix prefixes the product id of a composed set line item.
const CustomSetPrefix = "custom-set:"

// ParseSlot validates a slot name.
func ParseSlot(name string) (entity.Slot, error) {
	slot := entity.Slot(strings.ToLower(strings.TrimSpace(name)))
	if !slot.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSlot, name)
	}
	return slot, nil
}

// Option configures a Composer.
type Option func(*Composer)

// WithDiscountRate overrides DefaultDiscountRate.
func WithDiscountRate(rate decimal.Decimal) Option {
	return func(c *Composer) { c.discountRate = rate }
}

// Composer holds the four slot selection of one shopper.
type Composer struct {
	deriver      ImageDeriver
	discountRate decimal.Decimal

	mu     sync.RWMutex
	slots  map[entity.Slot]*entity.Product
	images entity.ComponentImages // per-slot overrides, "" when unset
}

// NewComposer creates an empty composer. A nil deriver disables component
// image derivation; combo slots then show the product image.
func NewComposer(deriver ImageDeriver, opts ...Option) *Composer {
	c := &Composer{
		deriver:      deriver,
		discountRate: DefaultDiscountRate,
		slots:        make(map[entity.Slot]*entity.Product, len(entity.Slots)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssignSlot puts p into slot, replacing any previous occupant and its image.
// A combo product additionally fills every slot it is flagged for, each with
// an image derived for that slot.
func (c *Composer) AssignSlot(slot entity.Slot, p entity.Product) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !p.IsCombo() {
		c.slots[slot] = &p
		c.images.Set(slot, "")
		return nil
	}

	targets := p.ComboItems.Slots()
	if !p.ComboItems.Has(slot) {
		targets = append(targets, slot)
	}
	for _, target := range targets {
		c.slots[target] = &p
		c.images.Set(target, c.derive(p.Image, target))
	}
	return nil
}

func (c *Composer) derive(image string, slot entity.Slot) string {
	if c.deriver == nil {
		return ""
	}
	return c.deriver.DeriveComponentImage(image, slot)
}

// ClearSlot empties slot and its image override.
func (c *Composer) ClearSlot(slot entity.Slot) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, slot)
	c.images.Set(slot, "")
	return nil
}

// ClearAll resets every slot.
func (c *Composer) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[entity.Slot]*entity.Product, len(entity.Slots))
	c.images = entity.ComponentImages{}
}

// IsComplete reports whether all four slots are filled.
func (c *Composer) IsComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.complete()
}

func (c *Composer) complete() bool {
	for _, s := range entity.Slots {
		if c.slots[s] == nil {
			return false
		}
	}
	return true
}

// Slot returns a copy of the product in slot.
func (c *Composer) Slot(slot entity.Slot) (entity.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := c.slots[slot]
	if p == nil {
		return entity.Product{}, false
	}
	return *p, true
}

// Image returns the image to show for slot: the derived component image when
// one is set, otherwise the occupant's own image.
func (c *Composer) Image(slot entity.Slot) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.image(slot)
}

func (c *Composer) image(slot entity.Slot) string {
	if img := c.images.Get(slot); img != "" {
		return img
	}
	if p := c.slots[slot]; p != nil {
		return p.Image
	}
	return ""
}

// BasePrice sums the price of every distinct product in the selection. A
// combo filling several slots is counted once.
func (c *Composer) BasePrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.basePrice()
}

func (c *Composer) basePrice() decimal.Decimal {
	total := decimal.Zero
	seen := make(map[string]bool, len(entity.Slots))
	for _, s := range entity.Slots {
		p := c.slots[s]
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		total = total.Add(p.Price)
	}
	return total
}

// DiscountedPrice is BasePrice reduced by the composer's discount rate.
func (c *Composer) DiscountedPrice() decimal.Decimal {
	return c.DiscountedPriceWithRate(c.discountRate)
}

// DiscountedPriceWithRate is BasePrice * (1 - rate).
func (c *Composer) DiscountedPriceWithRate(rate decimal.Decimal) decimal.Decimal {
	return c.BasePrice().Mul(decimal.NewFromInt(1).Sub(rate))
}

// Savings is BasePrice - DiscountedPrice.
func (c *Composer) Savings() decimal.Decimal {
	return c.SavingsWithRate(c.discountRate)
}

// SavingsWithRate is BasePrice - DiscountedPriceWithRate(rate).
func (c *Composer) SavingsWithRate(rate decimal.Decimal) decimal.Decimal {
	base := c.BasePrice()
	return base.Sub(base.Mul(decimal.NewFromInt(1).Sub(rate)))
}

// Selection is a point-in-time view of the composer.
type Selection struct {
	Slots           map[entity.Slot]*entity.Product `json:"slots"`
	ComponentImages entity.ComponentImages          `json:"component_images"`
	Complete        bool                            `json:"complete"`
	BasePrice       decimal.Decimal                 `json:"base_price"`
	DiscountedPrice decimal.Decimal                 `json:"discounted_price"`
	Savings         decimal.Decimal                 `json:"savings"`
}

// Selection snapshots the slots, their resolved images and the set pricing.
func (c *Composer) Selection() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sel := Selection{
		Slots:     make(map[entity.Slot]*entity.Product, len(entity.Slots)),
		Complete:  c.complete(),
		BasePrice: c.basePrice(),
	}
	for _, s := range entity.Slots {
		if p := c.slots[s]; p != nil {
			cp := *p
			sel.Slots[s] = &cp
		} else {
			sel.Slots[s] = nil
		}
		sel.ComponentImages.Set(s, c.image(s))
	}
	sel.DiscountedPrice = sel.BasePrice.Mul(decimal.NewFromInt(1).Sub(c.discountRate))
	sel.Savings = sel.BasePrice.Sub(sel.DiscountedPrice)
	return sel
}

// ToLineItem converts a complete selection into one cart line item priced at
// the discounted set price. The id is derived from the slot occupants, so
// composing the same set twice merges into one line. Stock is the lowest
// stock among the distinct products.
func (c *Composer) ToLineItem() (entity.CartLineItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.complete() {
		return entity.CartLineItem{}, ErrIncomplete
	}

	ids := make([]string, 0, len(entity.Slots))
	titles := make([]string, 0, len(entity.Slots))
	distinct := make([]string, 0, len(entity.Slots))
	seen := make(map[string]bool, len(entity.Slots))
	stock := -1
	var images entity.ComponentImages
	for _, s := range entity.Slots {
		p := c.slots[s]
		ids = append(ids, p.ID)
		images.Set(s, c.image(s))
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		distinct = append(distinct, p.ID)
		titles = append(titles, p.Title)
		if stock < 0 || p.Stock < stock {
			stock = p.Stock
		}
	}

	return entity.CartLineItem{
		ProductID:       CustomSetPrefix + strings.Join(ids, "+"),
		Name:            "Set personalizado: " + strings.Join(titles, " + "),
		Price:           c.basePrice().Mul(decimal.NewFromInt(1).Sub(c.discountRate)),
		Stock:           stock,
		Image:           images.Collar,
		IsCustomCombo:   true,
		ComponentImages: &images,
		ComponentIDs:    distinct,
	}, nil
}
