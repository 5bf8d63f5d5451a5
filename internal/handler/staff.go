package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/baresync/comanda/internal/dispatch"
	"github.com/baresync/comanda/internal/model"
	"github.com/baresync/comanda/internal/order"
	"github.com/baresync/comanda/internal/payment"
)

// StaffHandler serves the bar-staff endpoints: the session dashboard,
// ticket review/rejection, settlement and the staff event feed.
// Routes using it must be gated on the STAFF role by middleware.
type StaffHandler struct {
	Registry   *order.Registry      // live session registry
	Dispatcher *dispatch.Dispatcher // staff channel inbox
	Charger    payment.Charger      // payment collaborator (may be nil)
}

// NewStaffHandler constructs a StaffHandler.  Charger may be nil when
// no gateway is configured, which disables only settlement.
func NewStaffHandler(reg *order.Registry, d *dispatch.Dispatcher, charger payment.Charger) *StaffHandler {
	if reg == nil || d == nil {
		panic("nil dependency passed to NewStaffHandler")
	}
	return &StaffHandler{Registry: reg, Dispatcher: d, Charger: charger}
}

// Sessions handles GET /v1/staff/bars/:barID/sessions: all live
// sessions of the bar with their snapshots, for the orders dashboard.
func (h *StaffHandler) Sessions(c echo.Context) error {
	barID, ok := pathUint(c, "barID")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar id"})
	}
	sessions := h.Registry.ListByBar(barID)
	out := make([]model.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// Ticket handles GET /v1/staff/bars/:barID/tables/:tableID/tickets/:seq.
// Reading a Submitted ticket flips it to UnderReview; the flip is
// observational and carries no business effect.
func (h *StaffHandler) Ticket(c echo.Context) error {
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	seq, ok3 := pathUint(c, "seq")
	if !ok || !ok2 || !ok3 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid path parameters"})
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	ticket, err := s.TicketForReview(seq)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Review handles POST /v1/staff/bars/:barID/tables/:tableID/tickets/:seq/review.
// Decisions may cover a subset of lines; quantities can only be
// lowered.  A concurrent review of the same ticket gets 409.
func (h *StaffHandler) Review(c echo.Context) error {
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	seq, ok3 := pathUint(c, "seq")
	if !ok || !ok2 || !ok3 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid path parameters"})
	}
	var body struct {
		Decisions []model.ReviewDecision `json:"decisions"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	ticket, err := s.Review(seq, body.Decisions)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Reject handles POST /v1/staff/bars/:barID/tables/:tableID/tickets/:seq/reject.
// Wholesale rejection needs no client concurrence; the ticket lands in
// the Rejected terminal state and the submitter is notified.
func (h *StaffHandler) Reject(c echo.Context) error {
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	seq, ok3 := pathUint(c, "seq")
	if !ok || !ok2 || !ok3 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid path parameters"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	ticket, err := s.Reject(seq, body.Reason)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Settle handles POST /v1/staff/bars/:barID/tables/:tableID/settle.
// On success the session closes; on gateway decline the session stays
// Open with all Confirmed tickets intact and 402 tells the staff UI to
// offer a retry.
func (h *StaffHandler) Settle(c echo.Context) error {
	barID, ok := pathUint(c, "barID")
	tableID, ok2 := pathUint(c, "tableID")
	if !ok || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar or table id"})
	}
	if h.Charger == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment_unconfigured"})
	}
	var body struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Method == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "method is required"})
	}
	s, err := h.Registry.Get(barID, tableID)
	if err != nil {
		return businessError(c, err)
	}
	ref, total, err := s.Settle(c.Request().Context(), h.Charger, body.Method)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment_ref": ref, "total_cents": total})
}

// Events handles GET /v1/staff/bars/:barID/events: the staff channel
// feed with the same cursor semantics as the client endpoint.
func (h *StaffHandler) Events(c echo.Context) error {
	barID, ok := pathUint(c, "barID")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar id"})
	}
	recipient := order.StaffRecipient(barID)
	after, _ := strconv.ParseUint(c.QueryParam("after"), 10, 64)
	if c.QueryParam("wait") == "1" {
		ctx, cancel := contextWithTimeout(c, 25*time.Second)
		defer cancel()
		return c.JSON(http.StatusOK, echo.Map{"events": eventList(h.Dispatcher.Wait(ctx, recipient, after))})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": eventList(h.Dispatcher.Poll(recipient, after))})
}
