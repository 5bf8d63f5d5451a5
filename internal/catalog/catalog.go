// Package catalog defines the catalog collaborator: the read-only
// source of products a bar offers.  The core consumes it through the
// Provider interface; the production implementation reads MySQL, and
// tests substitute a static provider.  No simulated/real branching
// exists inside the core.
package catalog

import (
	"context"

	"github.com/baresync/comanda/internal/model"
	"github.com/baresync/comanda/internal/repository"
)

// Provider supplies the product catalog of a bar.  GetProductsByID is
// the lookup the submit path uses to capture unit prices at submission
// time; implementations must return repository.ErrProductNotFound when
// any requested id is unknown to the bar.
type Provider interface {
	GetProducts(ctx context.Context, barID uint64) ([]model.Product, error)
	GetProductsByID(ctx context.Context, barID uint64, ids []uint64) (map[uint64]model.Product, error)
}

// SQLProvider is the MySQL-backed catalog.
type SQLProvider struct {
	products *repository.ProductRepo
}

// NewSQLProvider wraps a ProductRepo as a Provider.
func NewSQLProvider(products *repository.ProductRepo) *SQLProvider {
	return &SQLProvider{products: products}
}

// GetProducts implements Provider.
func (p *SQLProvider) GetProducts(ctx context.Context, barID uint64) ([]model.Product, error) {
	return p.products.ListByBar(ctx, barID)
}

// GetProductsByID implements Provider.
func (p *SQLProvider) GetProductsByID(ctx context.Context, barID uint64, ids []uint64) (map[uint64]model.Product, error) {
	return p.products.GetByIDs(ctx, barID, ids)
}
