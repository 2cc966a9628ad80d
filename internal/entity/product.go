package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ProductType distinguishes single pieces from pre-bundled sets.
type ProductType string

const (
	ProductIndividual ProductType = "individual"
	ProductCombo      ProductType = "combo"
)

// Slot is one of the four positions of a personalized jewelry set.
type Slot string

const (
	SlotCollar Slot = "collar"
	SlotDije   Slot = "dije"
	SlotArete  Slot = "arete"
	SlotAnillo Slot = "anillo"
)

// Slots lists every slot in display order.
var Slots = [...]Slot{SlotCollar, SlotDije, SlotArete, SlotAnillo}

// Valid reports whether s names one of the four known slots.
func (s Slot) Valid() bool {
	switch s {
	case SlotCollar, SlotDije, SlotArete, SlotAnillo:
		return true
	}
	return false
}

// ComboItems flags which slots a combo product fills.
type ComboItems struct {
	Collar bool `json:"collar"`
	Dije   bool `json:"dije"`
	Arete  bool `json:"arete"`
	Anillo bool `json:"anillo"`
}

// Has reports whether the combo covers slot s.
func (c ComboItems) Has(s Slot) bool {
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
	return false
}

// Slots returns the flagged slots in display order.
func (c ComboItems) Slots() []Slot {
	var out []Slot
	for _, s := range Slots {
		if c.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Product represents a catalog entry. It is read-only for the cart and bundle code.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Sizes       []string        `json:"sizes,omitempty"`
	Type        ProductType     `json:"type,omitempty"`
	ComboItems  *ComboItems     `json:"combo_items,omitempty"`
}

// IsCombo reports whether the product is a multi-piece set with slot flags.
func (p *Product) IsCombo() bool {
	return p.Type == ProductCombo && p.ComboItems != nil
}

// LineItem converts the product into a cart line item with quantity 1.
func (p *Product) LineItem() CartLineItem {
	return CartLineItem{
		ProductID: p.ID,
		Name:      p.Title,
		Price:     p.Price,
		Quantity:  1,
		Stock:     p.Stock,
		Image:     p.Image,
	}
}

func (p *Product) String() string {
	return fmt.Sprintf("%s (%s)", p.Title, p.ID)
}
