package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id string, price int64, stock int) CartLineItem {
	return CartLineItem{ProductID: id, Name: "item " + id, Price: decimal.NewFromInt(price), Stock: stock}
}

func TestCart_AddMergesByProductID(t *testing.T) {
	c := NewCart()

	assert.True(t, c.Add(line("A", 100, 5)))
	assert.True(t, c.Add(line("A", 100, 5)))
	assert.True(t, c.Add(line("B", 50, 1)))

	require.Len(t, c.Items, 2)
	assert.Equal(t, "A", c.Items[0].ProductID)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.Equal(t, 3, c.ItemCount())
}

func TestCart_AddStopsAtStock(t *testing.T) {
	c := NewCart()
	for range 5 {
		c.Add(line("A", 100, 3))
	}

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.False(t, c.Add(line("A", 100, 3)))
	assert.Equal(t, 3, c.Items[0].Quantity)
}

func TestCart_AddRejectsOutOfStockAndMissingID(t *testing.T) {
	c := NewCart()

	assert.False(t, c.Add(line("A", 100, 0)))
	assert.False(t, c.Add(line("", 100, 3)))
	assert.Empty(t, c.Items)
}

func TestCart_SetQuantity(t *testing.T) {
	c := NewCart()
	c.Add(line("A", 2000, 5))

	assert.True(t, c.SetQuantity("A", 10))
	assert.Equal(t, 5, c.Items[0].Quantity)

	assert.True(t, c.SetQuantity("A", 2))
	assert.Equal(t, 2, c.Items[0].Quantity)

	assert.False(t, c.SetQuantity("missing", 3))

	assert.True(t, c.SetQuantity("A", 0))
	assert.Empty(t, c.Items)
}

func TestCart_RemoveIsIdempotent(t *testing.T) {
	c := NewCart()
	c.Add(line("A", 100, 5))
	c.Add(line("B", 100, 5))

	assert.True(t, c.Remove("A"))
	once := c.Clone()
	assert.False(t, c.Remove("A"))
	assert.Equal(t, once, c)
}

func TestCart_InvariantHoldsForMutationSequences(t *testing.T) {
	c := NewCart()
	ops := []func(){
		func() { c.Add(line("A", 10, 2)) },
		func() { c.Add(line("A", 10, 2)) },
		func() { c.Add(line("A", 10, 2)) },
		func() { c.SetQuantity("A", 99) },
		func() { c.Add(line("B", 5, 1)) },
		func() { c.SetQuantity("B", -4) },
		func() { c.Add(line("C", 7, 4)) },
		func() { c.SetQuantity("C", 3) },
		func() { c.Add(line("C", 7, 4)) },
		func() { c.Add(line("C", 7, 4)) },
	}
	for _, op := range ops {
		op()
		for _, item := range c.Items {
			assert.Greater(t, item.Quantity, 0)
			assert.LessOrEqual(t, item.Quantity, item.Stock)
		}
	}
}

func TestCart_Totals(t *testing.T) {
	c := NewCart()
	c.Add(line("A", 2000, 5))
	c.SetQuantity("A", 10)

	totals := c.Totals(decimal.NewFromInt(500), decimal.RequireFromString("0.18"))

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(10000)), totals.Subtotal.String())
	assert.True(t, totals.Tax.Equal(decimal.NewFromInt(1800)), totals.Tax.String())
	assert.True(t, totals.Shipping.Equal(decimal.NewFromInt(500)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(12300)), totals.Total.String())

	again := c.Totals(decimal.NewFromInt(500), decimal.RequireFromString("0.18"))
	assert.Equal(t, totals, again)
}

func TestCart_TotalsKeepsCentsAcrossManyItems(t *testing.T) {
	c := NewCart()
	for i := range 1000 {
		c.Add(CartLineItem{
			ProductID: decimal.NewFromInt(int64(i)).String(),
			Price:     decimal.RequireFromString("0.10"),
			Stock:     1,
		})
	}

	totals := c.Totals(decimal.Zero, decimal.Zero)

	assert.Equal(t, "100", totals.Subtotal.String())
}

func TestCart_Sanitize(t *testing.T) {
	c := &Cart{Items: []CartLineItem{
		{ProductID: "A", Quantity: 9, Stock: 4},
		{ProductID: "", Quantity: 1, Stock: 4},
		{ProductID: "B", Quantity: 0, Stock: 4},
		{ProductID: "C", Quantity: 1, Stock: 0},
		{ProductID: "A", Quantity: 1, Stock: 4},
		{ProductID: "D", Quantity: 2, Stock: 3},
		{ProductID: "E", Quantity: 1, Stock: 3, Price: decimal.NewFromInt(-5)},
	}}

	c.Sanitize()

	require.Len(t, c.Items, 2)
	assert.Equal(t, "A", c.Items[0].ProductID)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.Equal(t, "D", c.Items[1].ProductID)
	assert.Equal(t, 2, c.Items[1].Quantity)
}

func TestCart_Subtract(t *testing.T) {
	c := NewCart()
	c.Add(line("A", 10, 5))
	c.Add(line("A", 10, 5))
	c.Add(line("A", 10, 5))
	c.Add(line("B", 20, 5))

	changed := c.Subtract([]CartLineItem{
		{ProductID: "A", Quantity: 2},
		{ProductID: "B", Quantity: 1},
		{ProductID: "Z", Quantity: 1},
	})

	assert.True(t, changed)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "A", c.Items[0].ProductID)
	assert.Equal(t, 1, c.Items[0].Quantity)

	assert.False(t, c.Subtract([]CartLineItem{{ProductID: "Z", Quantity: 1}}))
}

func TestCart_CloneIsDeep(t *testing.T) {
	c := NewCart()
	item := line("set", 100, 2)
	item.ComponentImages = &ComponentImages{Collar: "a"}
	item.ComponentIDs = []string{"x", "y"}
	c.Add(item)

	cp := c.Clone()
	cp.Items[0].ComponentImages.Collar = "b"
	cp.Items[0].ComponentIDs[0] = "z"
	cp.Items[0].Quantity = 2

	assert.Equal(t, "a", c.Items[0].ComponentImages.Collar)
	assert.Equal(t, "x", c.Items[0].ComponentIDs[0])
	assert.Equal(t, 1, c.Items[0].Quantity)
}
