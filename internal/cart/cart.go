package cart

import (
	"time"
)

// Item is one product line in a shopper's cart. Price is the snapshot taken
// when the product was added and only changes through reconciliation.
type Item struct {
	ProductID    string            `json:"product_id"`
	ProductName  string            `json:"product_name"`
	ProductImage string            `json:"product_image"`
	Price        float64           `json:"price"`
	Quantity     int               `json:"quantity"`
	Variants     map[string]string `json:"variants,omitempty"`
}

// Key namespaces a cart by its owner and the storefront it belongs to. An
// empty StoreSlug denotes the main storefront.
type Key struct {
	Owner     string
	StoreSlug string
}

// Cart is an ordered set of items, unique by product id.
type Cart struct {
	Owner        string     `json:"owner"`
	StoreSlug    string     `json:"store_slug"`
	Items        []Item     `json:"items"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}

// New returns an empty cart for key.
func New(key Key) *Cart {
	return &Cart{Owner: key.Owner, StoreSlug: key.StoreSlug, Items: []Item{}}
}

// Key returns the namespace the cart is stored under.
func (c *Cart) Key() Key {
	return Key{Owner: c.Owner, StoreSlug: c.StoreSlug}
}

// AddItem appends item with the given quantity, or increments the quantity
// of the existing line for the same product.
func (c *Cart) AddItem(item Item, quantity int) error {
	if item.ProductID == "" {
		return ErrInvalidItem
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	if idx := c.indexOf(item.ProductID); idx >= 0 {
		c.Items[idx].Quantity += quantity
		return nil
	}

	item.Quantity = quantity
	item.Variants = copyVariants(item.Variants)
	c.Items = append(c.Items, item)
	return nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrItemNotFound
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return nil
	}
	c.Items[idx].Quantity = quantity
	return nil
}

// RemoveItem drops the line for productID.
func (c *Cart) RemoveItem(productID string) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []Item{}
}

// ItemsCount is the sum of all quantities.
func (c *Cart) ItemsCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// TotalPrice is the sum of price times quantity over all lines.
func (c *Cart) TotalPrice() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ProductIDs lists the distinct product ids in cart order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]Item, len(c.Items))
	for i, item := range c.Items {
		item.Variants = copyVariants(item.Variants)
		out.Items[i] = item
	}
	if c.LastSyncTime != nil {
		ts := *c.LastSyncTime
		out.LastSyncTime = &ts
	}
	return &out
}

// Reconcile corrects the cart against a fresh catalog snapshot. Lines whose
// product is missing or inactive are removed; lines whose price drifted take
// the current price. Surviving lines keep their order, quantity and identity.
// All changes are applied together and LastSyncTime is set to now.
func (c *Cart) Reconcile(products map[string]Product, now time.Time) SyncResult {
	result := SyncResult{UpdatedItems: []Item{}, RemovedItems: []Item{}}

	kept := make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			result.RemovedItems = append(result.RemovedItems, item)
			continue
		}
		if product.Price != item.Price {
			item.Price = product.Price
			result.UpdatedItems = append(result.UpdatedItems, item)
		}
		kept = append(kept, item)
	}

	c.Items = kept
	ts := now
	c.LastSyncTime = &ts
	result.Updated = len(result.UpdatedItems) > 0 || len(result.RemovedItems) > 0
	return result
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func copyVariants(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
