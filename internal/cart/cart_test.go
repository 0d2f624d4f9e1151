package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemMergesByProduct(t *testing.T) {
	c := New(Key{Owner: "u1"})

	require.NoError(t, c.AddItem(Item{ProductID: "x", ProductName: "Caneca", Price: 10}, 2))
	require.NoError(t, c.AddItem(Item{ProductID: "x", ProductName: "Caneca", Price: 10}, 3))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	c := New(Key{Owner: "u1"})
	assert.ErrorIs(t, c.AddItem(Item{}, 1), ErrInvalidItem)
	assert.ErrorIs(t, c.AddItem(Item{ProductID: "x"}, 0), ErrInvalidQuantity)
}

func TestDerivedTotals(t *testing.T) {
	c := New(Key{Owner: "u1"})
	require.NoError(t, c.AddItem(Item{ProductID: "a", Price: 10.5}, 2))
	require.NoError(t, c.AddItem(Item{ProductID: "b", Price: 3}, 1))

	assert.Equal(t, 3, c.ItemsCount())
	assert.Equal(t, 24.0, c.TotalPrice())
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	c := New(Key{Owner: "u1"})
	require.NoError(t, c.AddItem(Item{ProductID: "a", Price: 1}, 1))
	require.NoError(t, c.AddItem(Item{ProductID: "b", Price: 1}, 1))
	require.NoError(t, c.AddItem(Item{ProductID: "c", Price: 1}, 1))

	require.NoError(t, c.UpdateQuantity("b", 4))
	assert.Equal(t, 4, c.Items[1].Quantity)

	require.NoError(t, c.UpdateQuantity("b", 0))
	assert.Equal(t, []string{"a", "c"}, c.ProductIDs())

	require.NoError(t, c.RemoveItem("a"))
	assert.Equal(t, []string{"c"}, c.ProductIDs())

	assert.ErrorIs(t, c.RemoveItem("zzz"), ErrItemNotFound)
	assert.ErrorIs(t, c.UpdateQuantity("zzz", 2), ErrItemNotFound)

	c.Clear()
	assert.True(t, c.IsEmpty())
}

func TestReconcileRemovesUnavailableAndUpdatesPrices(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(Key{Owner: "u1"})
	require.NoError(t, c.AddItem(Item{ProductID: "p1", ProductName: "Vaso", Price: 50}, 1))
	require.NoError(t, c.AddItem(Item{ProductID: "p2", ProductName: "Prato", Price: 20, Variants: map[string]string{"color": "azul"}}, 3))
	require.NoError(t, c.AddItem(Item{ProductID: "p3", ProductName: "Copo", Price: 8}, 2))
	require.NoError(t, c.AddItem(Item{ProductID: "p4", ProductName: "Jarra", Price: 30}, 1))

	catalog := map[string]Product{
		"p1": {ID: "p1", Price: 50, Active: false},
		"p2": {ID: "p2", Price: 22.5, Active: true},
		"p3": {ID: "p3", Price: 8, Active: true},
	}

	result := c.Reconcile(catalog, now)

	assert.True(t, result.Updated)
	require.Len(t, result.RemovedItems, 2)
	assert.Equal(t, "p1", result.RemovedItems[0].ProductID)
	assert.Equal(t, "p4", result.RemovedItems[1].ProductID)

	require.Len(t, result.UpdatedItems, 1)
	assert.Equal(t, "p2", result.UpdatedItems[0].ProductID)
	assert.Equal(t, 22.5, result.UpdatedItems[0].Price)

	assert.Equal(t, []string{"p2", "p3"}, c.ProductIDs())
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, "Prato", c.Items[0].ProductName)
	assert.Equal(t, map[string]string{"color": "azul"}, c.Items[0].Variants)
	require.NotNil(t, c.LastSyncTime)
	assert.Equal(t, now, *c.LastSyncTime)
}

func TestReconcileIsIdempotent(t *testing.T) {
	c := New(Key{Owner: "u1"})
	require.NoError(t, c.AddItem(Item{ProductID: "p1", Price: 10}, 1))
	require.NoError(t, c.AddItem(Item{ProductID: "p2", Price: 10}, 1))
	catalog := map[string]Product{
		"p1": {ID: "p1", Price: 12, Active: true},
	}

	first := c.Reconcile(catalog, time.Now())
	assert.True(t, first.Updated)
	snapshot := c.Clone()

	second := c.Reconcile(catalog, time.Now())
	assert.False(t, second.Updated)
	assert.Empty(t, second.UpdatedItems)
	assert.Empty(t, second.RemovedItems)
	assert.Equal(t, snapshot.Items, c.Items)
}

func TestCloneIsDeep(t *testing.T) {
	c := New(Key{Owner: "u1"})
	require.NoError(t, c.AddItem(Item{ProductID: "p1", Price: 10, Variants: map[string]string{"size": "M"}}, 1))

	clone := c.Clone()
	clone.Items[0].Quantity = 9
	clone.Items[0].Variants["size"] = "G"

	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, "M", c.Items[0].Variants["size"])
}
