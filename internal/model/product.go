package model

// Product is one catalog entry for a bar, consumed read-only from the
// catalog provider.  Prices are in cents to avoid floating point money.
//
// Fields:
//  ID             – products.id
//  BarID          – products.bar_id
//  Name           – products.name
//  Category       – products.category (e.g. "drinks", "tapas")
//  UnitPriceCents – products.unit_price_cents
//  Available      – products.available flag maintained by the bar
type Product struct {
	ID             uint64 `json:"product_id"`
	BarID          uint64 `json:"bar_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Available      bool   `json:"available"`
}
