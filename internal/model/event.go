package model

import "time"

// EventType enumerates the session events fanned out to participants
// and to the staff/kitchen channel.
type EventType string

const (
	EventTicketSubmitted EventType = "ticket.submitted"
	EventTicketReviewed  EventType = "ticket.reviewed"
	EventTicketConfirmed EventType = "ticket.confirmed"
	EventTicketRejected  EventType = "ticket.rejected"
	EventSessionClosed   EventType = "session.closed"
)

// Event is one session event as delivered to a recipient.  Delivery is
// at-least-once: a recipient may observe the same event twice after a
// reconnect and must deduplicate by ID.  Seq is assigned per recipient
// and is strictly increasing for that recipient, which makes it usable
// as a replay cursor ("give me everything after seq N").
//
// Fields:
//  ID         – globally unique event id (uuid) for idempotent handling.
//  Seq        – per-recipient delivery sequence, replay cursor.
//  Type       – event type, see constants above.
//  Session    – session the event belongs to.
//  TicketSeq  – sequence of the ticket concerned, 0 for session events.
//  Ticket     – snapshot of the ticket at emission time, when relevant.
//  Reason     – free-form detail (close reason, rejection note).
//  ProducedAt – emission timestamp (UTC).
type Event struct {
	ID         string     `json:"id"`
	Seq        uint64     `json:"seq"`
	Type       EventType  `json:"type"`
	Session    SessionKey `json:"session"`
	TicketSeq  uint64     `json:"ticket_seq,omitempty"`
	Ticket     *Ticket    `json:"ticket,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	ProducedAt time.Time  `json:"produced_at"`
}
