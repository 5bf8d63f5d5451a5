// Package order implements the table-order reconciliation core: the
// session registry, the ticket state machine, arbitrator review and
// settlement.  Expected business conditions are reported through the
// sentinel errors below so that handlers can map each one to a distinct
// response; anything else that escapes this package is an infrastructure
// fault and should be treated as retryable by callers.
package order

import "errors"

// ErrEmptyCart is returned by Submit when the cart has no lines after
// merging, or only zero-quantity lines.  Recoverable: re-prompt the user.
var ErrEmptyCart = errors.New("empty cart")

// ErrSessionClosed is returned for any operation on a session that has
// reached CLOSED.  Terminal for that session: the client must start a
// new join flow.
var ErrSessionClosed = errors.New("session closed")

// ErrSessionSettling is returned when a submission or join arrives
// while a payment charge is outstanding.  The session returns to Open
// if the charge fails, so the caller may retry shortly.
var ErrSessionSettling = errors.New("session settling")

// ErrSessionNotFound is returned when no live session exists for the
// requested (bar, table) pair.
var ErrSessionNotFound = errors.New("session not found")

// ErrTicketNotFound is returned when a ticket sequence number does not
// exist within the session.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrNotParticipant is returned when the caller is not (or no longer)
// a member of the session, or acks a ticket submitted by someone else.
var ErrNotParticipant = errors.New("not a session participant")

// ErrStaleRevision is returned when a client acknowledgement references
// a revision older than the ticket's current one.  The losing side of
// an adjustment race always sees this instead of silently clobbering
// the other side's decision.  Recoverable: refetch and decide again.
var ErrStaleRevision = errors.New("stale ticket revision")

// ErrReviewInProgress is returned when a second arbitrator review is
// attempted while one is already in flight for the same ticket.
// Recoverable: the staff UI retries after a short delay.
var ErrReviewInProgress = errors.New("review already in progress")

// ErrInvalidState is returned when a transition is requested from a
// state that does not allow it (e.g. acking a Confirmed ticket).
var ErrInvalidState = errors.New("invalid ticket state for operation")

// ErrUnknownLine is returned when a review decision references a
// product that is not part of the ticket.
var ErrUnknownLine = errors.New("decision references unknown line")

// ErrQuantityExceeded is returned when a review decision tries to
// confirm more units than the client requested.  The arbitrator may
// only reduce quantities, never raise them.
var ErrQuantityExceeded = errors.New("confirmed quantity exceeds requested")

// ErrPaymentFailed is returned by Settle when the payment collaborator
// declines the charge.  The session stays Open and all Confirmed
// tickets remain Confirmed; the user may retry settlement.
var ErrPaymentFailed = errors.New("payment failed")
