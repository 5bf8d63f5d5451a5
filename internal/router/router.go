package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/baresync/comanda/internal/handler"    // import the handlers that implement business logic
	"github.com/baresync/comanda/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterClient registers the customer-facing endpoints: catalog browsing,
// the invite flow, session membership and the ticket lifecycle.  The
// jwtSecret verifies participant tokens minted by the identity collaborator
// (or by the invite claim flow).  cacheMW, when non-nil, wraps the catalog
// listing with the redis response cache.
func RegisterClient(e *echo.Echo, h *handler.ClientHandler, cat *handler.CatalogHandler, inv *handler.InviteHandler, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	// Claiming an invite is the one unauthenticated entry point: the
	// scanning device has no token yet and receives one in the response.
	e.POST("/v1/invites/:code/claim", inv.Claim)

	// Everything else requires a valid participant token.  Staff tokens are
	// accepted on client endpoints so a waiter can operate a table on a
	// customer's behalf.
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("CLIENT", "STAFF"))

	// Catalog browsing.  The response cache keeps repeated menu loads from
	// the same table off the database.
	if cacheMW != nil {
		g.GET("/bars/:barID/products", cat.Products, cacheMW)
	} else {
		g.GET("/bars/:barID/products", cat.Products)
	}

	// Session membership and invites.
	g.POST("/bars/:barID/tables/:tableID/join", h.Join)
	g.POST("/bars/:barID/tables/:tableID/leave", h.Leave)
	g.POST("/bars/:barID/tables/:tableID/invite", inv.Create)

	// Ticket lifecycle: submission, acknowledgement of adjustments and
	// decline-with-replacement.
	g.POST("/bars/:barID/tables/:tableID/tickets", h.Submit)
	g.POST("/bars/:barID/tables/:tableID/tickets/:seq/ack", h.Ack)
	g.POST("/bars/:barID/tables/:tableID/tickets/:seq/resubmit", h.Resubmit)

	// Reconciliation: the cursor-driven event feed plus the snapshot
	// fallback for clients whose cursor fell out of the retention window.
	g.GET("/bars/:barID/tables/:tableID/session", h.Snapshot)
	g.GET("/bars/:barID/tables/:tableID/events", h.Events)

	// Order history served from the archive.
	g.GET("/me/orders", h.History)
}

// RegisterStaff registers the bar-staff endpoints under /v1/staff.  Every
// route requires a token carrying the STAFF role.
func RegisterStaff(e *echo.Echo, h *handler.StaffHandler, jwtSecret string) {
	g := e.Group("/v1/staff")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("STAFF"))

	// The live dashboard: all open sessions of the bar and the staff
	// notification feed.
	g.GET("/bars/:barID/sessions", h.Sessions)
	g.GET("/bars/:barID/events", h.Events)

	// Review workflow.  Fetching a ticket flips it to UNDER_REVIEW; the
	// review and reject endpoints finish the pass.
	g.GET("/bars/:barID/tables/:tableID/tickets/:seq", h.Ticket)
	g.POST("/bars/:barID/tables/:tableID/tickets/:seq/review", h.Review)
	g.POST("/bars/:barID/tables/:tableID/tickets/:seq/reject", h.Reject)

	// Settlement closes the session on success.
	g.POST("/bars/:barID/tables/:tableID/settle", h.Settle)
}
