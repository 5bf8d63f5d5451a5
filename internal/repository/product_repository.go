package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/baresync/comanda/internal/model"
)

// ProductRepo provides read access to the products table.  The catalog
// is maintained by an external back office; this service only ever
// reads it, so there are no insert or update methods.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a new ProductRepo bound to the given database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// ListByBar returns all products offered by a bar, ordered by category
// then name for stable menu rendering.  Unavailable products are
// included so clients can grey them out.
func (r *ProductRepo) ListByBar(ctx context.Context, barID uint64) ([]model.Product, error) {
	const q = `SELECT id, bar_id, name, category, unit_price_cents, available
			   FROM products
			   WHERE bar_id = ?
			   ORDER BY category, name`
	rows, err := r.db.QueryContext(ctx, q, barID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make([]model.Product, 0)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.BarID, &p.Name, &p.Category, &p.UnitPriceCents, &p.Available); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByIDs fetches the given products of a bar in a single query and
// returns them keyed by id.  When any requested id is missing,
// ErrProductNotFound is returned so a cart referencing a product the
// bar never offered is rejected as a whole.  Passing no ids returns an
// empty map.
func (r *ProductRepo) GetByIDs(ctx context.Context, barID uint64, ids []uint64) (map[uint64]model.Product, error) {
	if len(ids) == 0 {
		return map[uint64]model.Product{}, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, barID)
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT id, bar_id, name, category, unit_price_cents, available
			  FROM products
			  WHERE bar_id = ? AND id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]model.Product, len(ids))
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.BarID, &p.Name, &p.Category, &p.UnitPriceCents, &p.Available); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, ErrProductNotFound
		}
	}
	return out, nil
}
