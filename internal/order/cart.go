package order

import "github.com/baresync/comanda/internal/model"

// Cart is the per-participant draft selection built up before
// submission.  Each device owns its own cart; carts are never shared
// between participants and the engine only ever sees them at Submit
// time, as an immutable snapshot.  Duplicate product additions are
// merged by summing quantities while preserving the position of the
// first addition, so a ticket never carries two lines for one product.
type Cart struct {
	lines []model.LineItem
	index map[uint64]int // product id -> position in lines
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{index: make(map[uint64]int)}
}

// Add puts qty units of the given product into the cart, capturing the
// product's current name and unit price.  Adding the same product again
// sums quantities on the existing line.  Zero quantities are ignored.
func (c *Cart) Add(p model.Product, qty uint32) {
	if qty == 0 {
		return
	}
	if i, ok := c.index[p.ID]; ok {
		c.lines[i].RequestedQty += qty
		c.lines[i].ConfirmedQty = c.lines[i].RequestedQty
		return
	}
	c.index[p.ID] = len(c.lines)
	c.lines = append(c.lines, model.LineItem{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPriceCents: p.UnitPriceCents,
		RequestedQty:   qty,
		ConfirmedQty:   qty,
		Available:      true,
	})
}

// Remove drops the product from the cart entirely.  Removing a product
// that is not in the cart is a no-op.
func (c *Cart) Remove(productID uint64) {
	i, ok := c.index[productID]
	if !ok {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, productID)
	for pid, pos := range c.index {
		if pos > i {
			c.index[pid] = pos - 1
		}
	}
}

// Len returns the number of distinct product lines in the cart.
func (c *Cart) Len() int { return len(c.lines) }

// Lines returns a copy of the cart's lines in insertion order.  The
// copy keeps the submitted ticket independent from later cart edits.
func (c *Cart) Lines() []model.LineItem {
	out := make([]model.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}
