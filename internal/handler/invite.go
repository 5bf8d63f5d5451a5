package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/baresync/comanda/internal/order"
	"github.com/baresync/comanda/internal/utils"
)

// InviteHandler implements the QR-code invite flow: a joined
// participant creates a short-lived invite code for their table, the
// code is rendered as a QR by the app, and a new device claims it to
// receive a participant token plus an automatic join.  Codes live in
// redis with a TTL and are resolvable by any instance.
type InviteHandler struct {
	Registry *order.Registry
	Redis    *redis.Client // nil disables the invite flow
	Secret   string        // JWT signing secret shared with the identity collaborator
	CodeTTL  time.Duration // invite code lifetime
	TokenTTL int           // participant token TTL in minutes
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(reg *order.Registry, rdb *redis.Client, secret string, codeTTL time.Duration, tokenTTLMin int) *InviteHandler {
	if reg == nil {
		panic("nil registry passed to NewInviteHandler")
	}
	return &InviteHandler{Registry: reg, Redis: rdb, Secret: secret, CodeTTL: codeTTL, TokenTTL: tokenTTLMin}
}

func inviteKey(code string) string { return "invite:" + code }

// Create handles POST /v1/bars/:barID/tables/:tableID/invite.  Only a
// current participant of the session may invite others to it.
func (h *InviteHandler) Create(c echo.Context) error {
	pid, err := participantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.Redis == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "invites_unavailable"})
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
	member := false
	for _, p := range s.Snapshot().Participants {
		if p == pid {
			member = true
			break
		}
	}
	if !member {
		return businessError(c, order.ErrNotParticipant)
	}
	code := uuid.NewString()
	val := fmt.Sprintf("%d:%d", barID, tableID)
	if err := h.Redis.Set(c.Request().Context(), inviteKey(code), val, h.CodeTTL).Err(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invite storage error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"code":       code,
		"expires_at": time.Now().UTC().Add(h.CodeTTL).Format(time.RFC3339),
	})
}

// Claim handles POST /v1/invites/:code/claim.  No authentication is
// required: the scanning device receives a fresh opaque participant
// identity, a signed token for it, and is joined to the table session
// in one step.  Claiming does not consume the code; the whole group
// scans the same QR until it expires.
func (h *InviteHandler) Claim(c echo.Context) error {
	if h.Redis == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "invites_unavailable"})
	}
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invite code"})
	}
	val, err := h.Redis.Get(c.Request().Context(), inviteKey(code)).Result()
	if err == redis.Nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invite_expired"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invite storage error"})
	}
	var barID, tableID uint64
	if _, err := fmt.Sscanf(strings.TrimSpace(val), "%d:%d", &barID, &tableID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "corrupt invite"})
	}

	pid := "guest-" + uuid.NewString()
	token, err := utils.NewParticipantToken(h.Secret, pid, "CLIENT", h.TokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token signing error"})
	}
	s, err := h.Registry.Join(barID, tableID, pid)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"participant_id": pid,
		"access_token":   token.Token,
		"expires_at":     token.Exp.Format(time.RFC3339),
		"session":        s.Snapshot(),
	})
}
