package model

import "time"

// TicketState enumerates the states a submitted ticket moves through.
// Draft carts live client-side and never reach the engine; the first
// engine-visible state is Submitted.
type TicketState string

const (
	TicketSubmitted        TicketState = "SUBMITTED"
	TicketUnderReview      TicketState = "UNDER_REVIEW"
	TicketAdjusted         TicketState = "ADJUSTED"
	TicketAwaitingClientAck TicketState = "AWAITING_CLIENT_ACK"
	TicketConfirmed        TicketState = "CONFIRMED"
	TicketRejected         TicketState = "REJECTED"
	TicketAbandoned        TicketState = "ABANDONED"
)

// Terminal reports whether a ticket in state s can never transition again.
func (s TicketState) Terminal() bool {
	return s == TicketConfirmed || s == TicketRejected || s == TicketAbandoned
}

// LineItem is one product position inside a ticket.  The unit price is
// captured at submission time and never changes afterwards, even if the
// catalog price moves.  ConfirmedQty starts equal to RequestedQty and
// may only be reduced by the arbitrator; 0 <= ConfirmedQty <= RequestedQty
// holds in every reachable state.
//
// Fields:
//  ProductID      – catalog product identifier.
//  Name           – product name snapshot for display.
//  UnitPriceCents – price per unit in cents, captured at submission.
//  RequestedQty   – quantity the client asked for (immutable).
//  ConfirmedQty   – quantity the bar will actually serve.
//  Available      – false when the bar marked the product unavailable.
type LineItem struct {
	ProductID      uint64 `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	RequestedQty   uint32 `json:"requested_qty"`
	ConfirmedQty   uint32 `json:"confirmed_qty"`
	Available      bool   `json:"available"`
}

// Ticket is one atomic submission of cart contents (a "comanda") by one
// participant within a table session.  Tickets are created once, mutated
// only through engine transitions and never deleted; Rejected and
// Abandoned tickets are retained for audit but excluded from the total.
//
// Fields:
//  Seq         – session-scoped monotonic sequence number.
//  SubmittedBy – opaque participant id of the submitter.
//  SubmittedAt – submission timestamp (UTC).
//  Lines       – line items in cart order, one per product.
//  State       – current state machine position.
//  Revision    – incremented on every arbitrator mutation; client acks
//                must reference the revision they are acking.
//  ReplacedBy  – sequence of the replacement ticket when this one was
//                abandoned in favour of a resubmission (nil otherwise).
type Ticket struct {
	Seq         uint64      `json:"seq"`
	SubmittedBy string      `json:"submitted_by"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Lines       []LineItem  `json:"lines"`
	State       TicketState `json:"state"`
	Revision    uint64      `json:"revision"`
	ReplacedBy  *uint64     `json:"replaced_by,omitempty"`
}

// ConfirmedTotalCents returns the payable amount of this ticket.  Only
// Confirmed tickets contribute to a session total; callers are expected
// to check State before folding the result into a sum.
func (t Ticket) ConfirmedTotalCents() int64 {
	var total int64
	for _, l := range t.Lines {
		total += int64(l.ConfirmedQty) * l.UnitPriceCents
	}
	return total
}

// ReviewDecision is one arbitrator decision for a single line.  A
// decision with Available=false forces ConfirmedQty to zero regardless
// of the quantity supplied.
type ReviewDecision struct {
	ProductID    uint64 `json:"product_id"`
	ConfirmedQty uint32 `json:"confirmed_qty"`
	Available    bool   `json:"available"`
}
