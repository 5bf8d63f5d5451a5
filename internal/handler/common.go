package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/baresync/comanda/internal/model"
	"github.com/baresync/comanda/internal/order"
	"github.com/baresync/comanda/internal/repository"
)

// participantID extracts the opaque participant id stored by the
// JWTAuth middleware.  The identity collaborator controls the value;
// this service never interprets it beyond equality checks.
func participantID(c echo.Context) (string, error) {
	v := c.Get("user_id")
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", echo.ErrUnauthorized
}

// pathUint parses a numeric path parameter, rejecting zero.
func pathUint(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n != 0
}

// eventList normalizes a possibly-nil event slice so an empty feed
// renders as [] instead of null.
func eventList(evs []model.Event) []model.Event {
	if evs == nil {
		return []model.Event{}
	}
	return evs
}

// contextWithTimeout bounds a request context, used by the long-poll
// event endpoints.
func contextWithTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

// businessError maps the engine's sentinel errors to distinguishable
// HTTP responses so each screen can decide whether to re-render a
// form, retry silently, or hard-stop the flow.  Unknown errors are
// infrastructure faults and surface as 500.
func businessError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty_cart", "message": "cart has no lines"})
	case errors.Is(err, repository.ErrProductNotFound):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown_product", "message": "cart references a product the bar does not offer"})
	case errors.Is(err, order.ErrUnknownLine):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown_line", "message": "decision references a product not on the ticket"})
	case errors.Is(err, order.ErrQuantityExceeded):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity_exceeded", "message": "confirmed quantity exceeds requested"})
	case errors.Is(err, order.ErrNotParticipant):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not_participant"})
	case errors.Is(err, order.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session_not_found"})
	case errors.Is(err, order.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket_not_found"})
	case errors.Is(err, order.ErrStaleRevision):
		return c.JSON(http.StatusConflict, echo.Map{"error": "stale_revision", "message": "ticket changed, refetch and decide again"})
	case errors.Is(err, order.ErrReviewInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": "review_in_progress", "message": "another review is in flight, retry shortly"})
	case errors.Is(err, order.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_state"})
	case errors.Is(err, order.ErrSessionSettling):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session_settling", "message": "payment in progress, retry shortly"})
	case errors.Is(err, order.ErrSessionClosed):
		return c.JSON(http.StatusGone, echo.Map{"error": "session_closed", "message": "start a new join flow"})
	case errors.Is(err, order.ErrPaymentFailed):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment_failed", "message": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
}
