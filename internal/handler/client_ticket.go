package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baresync/comanda/internal/order"
)

// cartPayload is the request body shared by Submit and Resubmit.  Each
// line references a catalog product; unit prices are captured
// server-side at submission time and never trusted from the client.
type cartPayload struct {
	Lines []struct {
		ProductID uint64 `json:"product_id"`
		Qty       uint32 `json:"qty"`
	} `json:"lines"`
}

// buildCart resolves a cart payload against the bar's catalog.
// Duplicate product lines merge by summing quantity; zero quantities
// are dropped.  An empty result surfaces as ErrEmptyCart from Submit.
func (h *ClientHandler) buildCart(c echo.Context, barID uint64, body cartPayload) (*order.Cart, error) {
	ids := make([]uint64, 0, len(body.Lines))
	seen := make(map[uint64]struct{}, len(body.Lines))
	for _, l := range body.Lines {
		if l.ProductID == 0 || l.Qty == 0 {
			continue
		}
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}
	products, err := h.Catalog.GetProductsByID(c.Request().Context(), barID, ids)
	if err != nil {
		return nil, err
	}
	cart := order.NewCart()
	for _, l := range body.Lines {
		if p, ok := products[l.ProductID]; ok {
			cart.Add(p, l.Qty)
		}
	}
	return cart, nil
}

// Submit handles POST /v1/bars/:barID/tables/:tableID/tickets.  The
// cart becomes an immutable ticket with the next session sequence
// number; the response carries the created ticket so the client can
// track it through review.
func (h *ClientHandler) Submit(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	if !ok || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar or table id"})
	}
	var body cartPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Lines) == 0 {
		return businessError(c, order.ErrEmptyCart)
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	cart, err := h.buildCart(c, barID, body)
	if err != nil {
		return businessError(c, err)
	}
	ticket, err := s.Submit(pid, cart)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusCreated, ticket)
}

// Ack handles POST /v1/bars/:barID/tables/:tableID/tickets/:seq/ack.
// The body must carry the revision being acknowledged; a stale
// revision loses the race with 409 and the client refetches.
func (h *ClientHandler) Ack(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	seq, ok3 := pathUint(c, "seq")
	if !ok || !ok2 || !ok3 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid path parameters"})
	}
	var body struct {
		Revision uint64 `json:"revision"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	ticket, err := s.Ack(pid, seq, body.Revision)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Resubmit handles POST /v1/bars/:barID/tables/:tableID/tickets/:seq/resubmit.
// It declines the adjusted ticket: the original moves to Abandoned and
// the new cart becomes a brand-new ticket.
func (h *ClientHandler) Resubmit(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	seq, ok3 := pathUint(c, "seq")
	if !ok || !ok2 || !ok3 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid path parameters"})
	}
	var body cartPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Lines) == 0 {
		return businessError(c, order.ErrEmptyCart)
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	cart, err := h.buildCart(c, barID, body)
	if err != nil {
		return businessError(c, err)
	}
	ticket, err := s.ResubmitInsteadOf(pid, seq, cart)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusCreated, ticket)
}
