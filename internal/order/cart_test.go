package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baresync/comanda/internal/model"
)

func TestCartMergesDuplicateProducts(t *testing.T) {
	beer := model.Product{ID: 1, BarID: 1, Name: "Lager", UnitPriceCents: 450, Available: true}
	cola := model.Product{ID: 2, BarID: 1, Name: "Cola", UnitPriceCents: 300, Available: true}

	c := NewCart()
	c.Add(beer, 2)
	c.Add(cola, 1)
	c.Add(beer, 3)

	require.Equal(t, 2, c.Len())
	lines := c.Lines()
	assert.Equal(t, uint64(1), lines[0].ProductID) // first-addition position kept
	assert.Equal(t, uint32(5), lines[0].RequestedQty)
	assert.Equal(t, uint32(5), lines[0].ConfirmedQty)
	assert.Equal(t, uint32(1), lines[1].RequestedQty)
}

func TestCartIgnoresZeroQuantity(t *testing.T) {
	c := NewCart()
	c.Add(model.Product{ID: 1, Name: "Lager", UnitPriceCents: 450}, 0)
	assert.Equal(t, 0, c.Len())
}

func TestCartRemove(t *testing.T) {
	c := NewCart()
	c.Add(model.Product{ID: 1, Name: "Lager", UnitPriceCents: 450}, 1)
	c.Add(model.Product{ID: 2, Name: "Cola", UnitPriceCents: 300}, 2)
	c.Add(model.Product{ID: 3, Name: "Tonic", UnitPriceCents: 350}, 3)

	c.Remove(2)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Lines()[0].ProductID)
	assert.Equal(t, uint64(3), c.Lines()[1].ProductID)

	// Re-adding after removal must merge onto the right line.
	c.Add(model.Product{ID: 3, Name: "Tonic", UnitPriceCents: 350}, 1)
	assert.Equal(t, uint32(4), c.Lines()[1].RequestedQty)

	c.Remove(99) // unknown product is a no-op
	assert.Equal(t, 2, c.Len())
}

func TestCartLinesAreDetached(t *testing.T) {
	c := NewCart()
	c.Add(model.Product{ID: 1, Name: "Lager", UnitPriceCents: 450}, 1)
	lines := c.Lines()
	lines[0].RequestedQty = 99
	assert.Equal(t, uint32(1), c.Lines()[0].RequestedQty)
}
