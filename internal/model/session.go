package model

import (
	"fmt"
	"time"
)

// SessionStatus enumerates the lifecycle states of a table session.
// A session is Open from the first successful join until settlement
// begins, Settling while a payment charge is outstanding, and Closed
// once payment is confirmed or the session is abandoned/timed out.
type SessionStatus string

const (
	SessionOpen     SessionStatus = "OPEN"
	SessionSettling SessionStatus = "SETTLING"
	SessionClosed   SessionStatus = "CLOSED"
)

// SessionKey identifies a table session by the (bar, table) pair.  The
// key is stable for the physical table; a new session under the same
// key may be created after the previous one closes.
type SessionKey struct {
	BarID   uint64 `json:"bar_id"`
	TableID uint64 `json:"table_id"`
}

// String renders the key as "bar/table", used in logs and as the
// session identifier passed to the payment collaborator.
func (k SessionKey) String() string {
	return fmt.Sprintf("%d/%d", k.BarID, k.TableID)
}

// TableSession is the shared ordering context for one physical table.
// It spans all participants from first join to settlement or close.
//
// Fields:
//  Key          – (bar_id, table_id) pair identifying the table.
//  Participants – opaque participant ids in join order.
//  Tickets      – append-only ticket log in submission order.
//  Status       – OPEN, SETTLING or CLOSED.
//  PaymentRef   – external payment reference once settled, if any.
//  CreatedAt    – when the session was created (first join).
//  ClosedAt     – when the session closed (nil while open).
type TableSession struct {
	Key          SessionKey    `json:"key"`
	Participants []string      `json:"participants"`
	Tickets      []Ticket      `json:"tickets"`
	Status       SessionStatus `json:"status"`
	PaymentRef   *string       `json:"payment_ref,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	ClosedAt     *time.Time    `json:"closed_at,omitempty"`
}

// SessionSnapshot is the polling reconciliation fallback returned to
// clients that missed pushed events.  RunningTotalCents is recomputed
// from Confirmed tickets on every call, never cached.
type SessionSnapshot struct {
	Key               SessionKey    `json:"key"`
	Status            SessionStatus `json:"status"`
	Participants      []string      `json:"participants"`
	Tickets           []Ticket      `json:"tickets"`
	RunningTotalCents int64         `json:"running_total_cents"`
}
