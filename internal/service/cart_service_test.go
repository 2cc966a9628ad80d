package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/storefront/internal/bundle"
	"github.com/egannguyen/storefront/internal/cart"
	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/storage/memory"
)

func newCartService(t *testing.T) (*CartService, *cart.Sessions) {
	t.Helper()
	sessions := cart.NewSessions(memory.New(), nil)
	t.Cleanup(func() { sessions.Close() })
	return NewCartService(sessions, catalog(), bundle.NewCloudinaryDeriver()), sessions
}

func TestCartService_AddProduct(t *testing.T) {
	svc, _ := newCartService(t)
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, "c1", "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)

	for range 4 {
		_, err = svc.AddProduct(ctx, "c1", "anillo-1")
		require.NoError(t, err)
	}
	v, err := svc.Cart(ctx, "c1")
	require.NoError(t, err)

	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].Quantity, "capped at stock")
	assert.Equal(t, 2, v.ItemCount)
	assert.Equal(t, "c1", v.CartID)
}

func TestCartService_UpdateRemoveClear(t *testing.T) {
	svc, _ := newCartService(t)
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, "c1", "collar-1")
	require.NoError(t, err)
	_, err = svc.AddProduct(ctx, "c1", "dije-1")
	require.NoError(t, err)

	v, err := svc.UpdateQuantity(ctx, "c1", "collar-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Items[0].Quantity)

	totals, err := svc.Totals(ctx, "c1", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, "7000", totals.Subtotal.String())
	assert.Equal(t, "1260", totals.Tax.String())
	assert.Equal(t, "8760", totals.Total.String())

	v, err = svc.RemoveItem(ctx, "c1", "collar-1")
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "dije-1", v.Items[0].ProductID)

	require.NoError(t, svc.Clear(ctx, "c1"))
	v, err = svc.Cart(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestCartService_CartsAreIsolated(t *testing.T) {
	svc, _ := newCartService(t)
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, "a", "collar-1")
	require.NoError(t, err)

	v, err := svc.Cart(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, v.Items)
	assert.NotSame(t, svc.Composer("a"), svc.Composer("b"))
	assert.Same(t, svc.Composer("a"), svc.Composer("a"))
}

func TestCartService_Bundle(t *testing.T) {
	svc, _ := newCartService(t)
	ctx := context.Background()

	_, err := svc.AssignSlot(ctx, "c1", "pulsera", "collar-1")
	assert.ErrorIs(t, err, bundle.ErrUnknownSlot)
	_, err = svc.AssignSlot(ctx, "c1", entity.SlotCollar, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)

	sel, err := svc.AssignSlot(ctx, "c1", entity.SlotCollar, "set-luna")
	require.NoError(t, err)
	assert.NotNil(t, sel.Slots[entity.SlotDije])
	assert.False(t, sel.Complete)

	_, err = svc.AddBundle(ctx, "c1")
	assert.ErrorIs(t, err, bundle.ErrIncomplete)

	_, err = svc.AssignSlot(ctx, "c1", entity.SlotArete, "arete-1")
	require.NoError(t, err)
	sel, err = svc.AssignSlot(ctx, "c1", entity.SlotAnillo, "anillo-1")
	require.NoError(t, err)
	require.True(t, sel.Complete)
	assert.Equal(t, "7000", sel.BasePrice.String())

	v, err := svc.AddBundle(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	item := v.Items[0]
	assert.Equal(t, "custom-set:set-luna+set-luna+arete-1+anillo-1", item.ProductID)
	assert.Equal(t, "5740", item.Price.String())
	assert.Equal(t, 2, item.Stock)
	assert.True(t, item.IsCustomCombo)
	require.NotNil(t, item.ComponentImages)
	assert.Contains(t, item.ComponentImages.Dije, "set-luna-dije")
	assert.Equal(t, []string{"set-luna", "arete-1", "anillo-1"}, item.ComponentIDs)

	assert.False(t, svc.Composer("c1").IsComplete(), "composer reset after hand-off")
}

func TestCartService_ClearSlotAndBundle(t *testing.T) {
	svc, _ := newCartService(t)
	ctx := context.Background()

	_, err := svc.AssignSlot(ctx, "c1", entity.SlotCollar, "collar-1")
	require.NoError(t, err)
	_, err = svc.AssignSlot(ctx, "c1", entity.SlotDije, "dije-1")
	require.NoError(t, err)

	sel, err := svc.ClearSlot("c1", entity.SlotCollar)
	require.NoError(t, err)
	assert.Nil(t, sel.Slots[entity.SlotCollar])
	assert.NotNil(t, sel.Slots[entity.SlotDije])

	_, err = svc.ClearSlot("c1", "pulsera")
	assert.ErrorIs(t, err, bundle.ErrUnknownSlot)

	sel = svc.ClearBundle("c1")
	assert.Nil(t, sel.Slots[entity.SlotDije])
	assert.True(t, sel.BasePrice.IsZero())
}

func assignSet(t *testing.T, svc *CartService, cartID string) {
	t.Helper()
	for _, a := range []struct {
		slot entity.Slot
		id   string
	}{
		{entity.SlotCollar, "collar-1"},
		{entity.SlotDije, "dije-1"},
		{entity.SlotArete, "arete-1"},
		{entity.SlotAnillo, "anillo-1"},
	} {
		_, err := svc.AssignSlot(context.Background(), cartID, a.slot, a.id)
		require.NoError(t, err)
	}
}

func TestCartService_AddBundleAtStockKeepsSelection(t *testing.T) {
	svc, _ := newCartService(t)
	ctx := context.Background()

	// anillo-1 has two units, so the set can be added twice.
	for range 2 {
		assignSet(t, svc, "c1")
		_, err := svc.AddBundle(ctx, "c1")
		require.NoError(t, err)
		assert.False(t, svc.Composer("c1").IsComplete())
	}

	assignSet(t, svc, "c1")
	v, err := svc.AddBundle(ctx, "c1")
	require.NoError(t, err)

	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].Quantity)
	assert.True(t, svc.Composer("c1").IsComplete(), "selection kept when nothing was added")
}

func TestCartService_EvictIdle(t *testing.T) {
	svc, sessions := newCartService(t)
	ctx := context.Background()

	for i := range 20 {
		_, err := svc.Cart(ctx, fmt.Sprintf("anon-%d", i))
		require.NoError(t, err)
	}
	_, err := svc.AddProduct(ctx, "c1", "collar-1")
	require.NoError(t, err)
	_, err = svc.AssignSlot(ctx, "c1", entity.SlotDije, "dije-1")
	require.NoError(t, err)
	require.Equal(t, 21, sessions.Len())

	carts, composers := svc.EvictIdle(time.Hour)
	assert.Zero(t, carts)
	assert.Zero(t, composers)

	carts, composers = svc.EvictIdle(0)
	assert.Equal(t, 21, carts)
	assert.Equal(t, 1, composers)
	assert.Equal(t, 0, sessions.Len())

	v, err := svc.Cart(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.ItemCount, "evicted cart reloads from storage")
	_, ok := svc.Composer("c1").Slot(entity.SlotDije)
	assert.False(t, ok, "bundle selection dropped")
}

func TestCartService_SelectionDoesNotCreateComposer(t *testing.T) {
	svc, _ := newCartService(t)

	sel := svc.Selection("anon")
	assert.False(t, sel.Complete)

	carts, composers := svc.EvictIdle(0)
	assert.Zero(t, carts)
	assert.Zero(t, composers)
}

func TestCartService_RunEvictionStopsWithContext(t *testing.T) {
	svc, sessions := newCartService(t)
	_, err := svc.Cart(context.Background(), "anon")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.RunEviction(ctx, time.Millisecond, 0)
	}()

	assert.Eventually(t, func() bool { return sessions.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
