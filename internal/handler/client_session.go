package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/baresync/comanda/internal/catalog"
	"github.com/baresync/comanda/internal/dispatch"
	"github.com/baresync/comanda/internal/order"
	"github.com/baresync/comanda/internal/repository"
)

// ClientHandler serves the customer-facing endpoints: joining and
// leaving table sessions, submitting and acknowledging tickets, the
// snapshot/event reconciliation pair and the order history.  All
// methods assume JWT authentication and role validation have already
// been performed by middleware.
type ClientHandler struct {
	Registry   *order.Registry        // live session registry
	Dispatcher *dispatch.Dispatcher   // per-recipient event inboxes
	Catalog    catalog.Provider       // product catalog collaborator
	Archive    *repository.ArchiveRepo // order history reads (may be nil)
}

// NewClientHandler constructs a ClientHandler.  Registry, Dispatcher
// and Catalog must be non-nil; Archive may be nil when no database is
// configured, which disables only the history endpoint.
func NewClientHandler(reg *order.Registry, d *dispatch.Dispatcher, cat catalog.Provider, archive *repository.ArchiveRepo) *ClientHandler {
	if reg == nil || d == nil || cat == nil {
		panic("nil dependency passed to NewClientHandler")
	}
	return &ClientHandler{Registry: reg, Dispatcher: d, Catalog: cat, Archive: archive}
}

// Join handles POST /v1/bars/:barID/tables/:tableID/join.  Joining is
// idempotent per participant: a second join returns the same session
// without duplicating the participant.
func (h *ClientHandler) Join(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	if !ok || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar or table id"})
	}
	s, err := h.Registry.Join(barID, tableID, pid)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// Leave handles POST /v1/bars/:barID/tables/:tableID/leave.  Leaving
// never invalidates tickets the participant already submitted.
func (h *ClientHandler) Leave(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	if !ok || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar or table id"})
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	h.Registry.Leave(s, pid)
	return c.NoContent(http.StatusNoContent)
}

// Snapshot handles GET /v1/bars/:barID/tables/:tableID/session.  It is
// the reconciliation fallback: a client that missed pushed events
// re-syncs from here, running total included.
func (h *ClientHandler) Snapshot(c echo.Context) error {
	if _, err := participantID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	if !ok || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar or table id"})
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// Events handles GET /v1/bars/:barID/tables/:tableID/events.  The
// caller passes ?after=<seq> as its replay cursor; with ?wait=1 the
// request long-polls up to 25 seconds.  Duplicates are possible after
// reconnects, so clients deduplicate by event id.
func (h *ClientHandler) Events(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	after, _ := strconv.ParseUint(c.QueryParam("after"), 10, 64)
	if c.QueryParam("wait") == "1" {
		ctx, cancel := contextWithTimeout(c, 25*time.Second)
		defer cancel()
		return c.JSON(http.StatusOK, echo.Map{"events": eventList(h.Dispatcher.Wait(ctx, pid, after))})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": eventList(h.Dispatcher.Poll(pid, after))})
}

// History handles GET /v1/me/orders: the participant's past tickets
// from the archive, newest first.
func (h *ClientHandler) History(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.Archive == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "history_unavailable"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	records, err := h.Archive.ListByParticipant(c.Request().Context(), pid, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": records})
}
