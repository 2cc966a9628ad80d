package entity

import (
	"github.com/shopspring/decimal"
)

// ComponentImages holds one image URL per slot of a custom set.
type ComponentImages struct {
	Collar string `json:"collar"`
	Dije   string `json:"dije"`
	Arete  string `json:"arete"`
	Anillo string `json:"anillo"`
}

// Get returns the image for slot s.
func (c ComponentImages) Get(s Slot) string {
	switch s {
	case SlotCollar:
		return c.Collar
	case SlotDije:
		return c.Dije
	case SlotArete:
		return c.Arete
	case SlotAnillo:
		return c.Anillo
	}
	return ""
}

// Set stores url for slot s. Unknown slots are ignored.
func (c *ComponentImages) Set(s Slot, url string) {
	switch s {
	case SlotCollar:
		c.Collar = url
	case SlotDije:
		c.Dije = url
	case SlotArete:
		c.Arete = url
	case SlotAnillo:
		c.Anillo = url
	}
}

// CartLineItem is one row of a shopping cart.
type CartLineItem struct {
	ProductID       string           `json:"product_id"`
	Name            string           `json:"name"`
	Price           decimal.Decimal  `json:"price"`
	Quantity        int              `json:"quantity"`
	Stock           int              `json:"stock"` // snapshot taken when the item was added
	Image           string           `json:"image,omitempty"`
	IsCustomCombo   bool             `json:"is_custom_combo,omitempty"`
	ComponentImages *ComponentImages `json:"component_images,omitempty"`
	ComponentIDs    []string         `json:"component_ids,omitempty"` // distinct catalog products of a custom set
}

// LineTotal is price * quantity.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals is the monetary summary handed to checkout.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Cart is an ordered list of line items keyed by product id.
// Every item satisfies 0 < Quantity <= Stock.
// Mutators report whether the cart changed.
type Cart struct {
	Items []CartLineItem `json:"items"`
}

// NewCart creates an empty cart.
func NewCart() *Cart {
	return &Cart{Items: []CartLineItem{}}
}

func (c *Cart) index(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add merges item into the cart. An existing line is incremented by one unless
// that would exceed its stock; a new line starts at quantity 1.
func (c *Cart) Add(item CartLineItem) bool {
	if item.ProductID == "" {
		return false
	}
	if i := c.index(item.ProductID); i >= 0 {
		existing := &c.Items[i]
		if existing.Quantity+1 > existing.Stock {
			return false
		}
		existing.Quantity++
		return true
	}
	if item.Stock < 1 {
		return false
	}
	item.Quantity = 1
	c.Items = append(c.Items, item)
	return true
}

// SetQuantity clamps quantity to the line's stock. A non-positive quantity
// removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	i := c.index(productID)
	if i < 0 {
		return false
	}
	item := &c.Items[i]
	quantity = min(quantity, item.Stock)
	if item.Quantity == quantity {
		return false
	}
	item.Quantity = quantity
	return true
}

// Remove deletes the line for productID if present.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// Reset empties the cart.
func (c *Cart) Reset() bool {
	if len(c.Items) == 0 {
		return false
	}
	c.Items = []CartLineItem{}
	return true
}

// Subtract lowers each matching line by the quantity in ordered and drops
// lines that reach zero. Lines not in the cart are ignored.
func (c *Cart) Subtract(ordered []CartLineItem) bool {
	var changed bool
	for _, o := range ordered {
		i := c.index(o.ProductID)
		if i < 0 || o.Quantity <= 0 {
			continue
		}
		changed = true
		if c.Items[i].Quantity <= o.Quantity {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			continue
		}
		c.Items[i].Quantity -= o.Quantity
	}
	return changed
}

// Sanitize drops lines that violate the quantity/stock invariant or carry a
// negative price, and clamps over-stock quantities. Duplicate ids are merged into the first occurrence.
func (c *Cart) Sanitize() {
	clean := make([]CartLineItem, 0, len(c.Items))
	seen := make(map[string]int, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID == "" || item.Quantity <= 0 || item.Stock <= 0 || item.Price.IsNegative() {
			continue
		}
		if i, ok := seen[item.ProductID]; ok {
			clean[i].Quantity = min(clean[i].Quantity+item.Quantity, clean[i].Stock)
			continue
		}
		item.Quantity = min(item.Quantity, item.Stock)
		seen[item.ProductID] = len(clean)
		clean = append(clean, item)
	}
	c.Items = clean
}

// ItemCount is the sum of all quantities.
func (c *Cart) ItemCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Totals computes subtotal, tax and total. Arithmetic is exact decimal, so the
// result depends only on the cart contents and the arguments.
func (c *Cart) Totals(shipping, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	tax := subtotal.Mul(taxRate)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	out := &Cart{Items: make([]CartLineItem, len(c.Items))}
	copy(out.Items, c.Items)
	for i := range out.Items {
		if imgs := out.Items[i].ComponentImages; imgs != nil {
			cp := *imgs
			out.Items[i].ComponentImages = &cp
		}
		if ids := out.Items[i].ComponentIDs; ids != nil {
			out.Items[i].ComponentIDs = append([]string(nil), ids...)
		}
	}
	return out
}
