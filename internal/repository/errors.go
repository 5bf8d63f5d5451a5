// Package repository provides data access to the MySQL store: the
// read-only product catalog and the append-only order archive that
// feeds audit queries and the client order-history screen.  Sentinel
// values below let handlers distinguish failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrProductNotFound is returned when a requested product does not
// exist for the bar.  Handlers should translate this into an HTTP 400
// response, since it means the submitted cart references a product the
// catalog never offered.
var ErrProductNotFound = errors.New("product not found")
