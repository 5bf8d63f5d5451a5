// Package queue defines message payloads exchanged over the message
// broker, the publisher used by the staff/kitchen event sink, and the
// background kitchen consumer.
package queue

import (
	"time"

	"github.com/baresync/comanda/internal/model"
)

// EventQueueName is the durable queue carrying session events for the
// bar staff and kitchen screens.
const EventQueueName = "comanda.events"

// KitchenLine is one denormalized ticket line inside a broker payload.
type KitchenLine struct {
	ProductID    uint64 `json:"product_id"`
	Name         string `json:"name"`
	RequestedQty uint32 `json:"requested_qty"`
	ConfirmedQty uint32 `json:"confirmed_qty"`
	Available    bool   `json:"available"`
}

// KitchenEvent is published for every session event fanned out to the
// staff/kitchen channel.  It carries enough denormalized information
// for downstream consumers to log, display or trigger preparation
// without querying the service.  EventID is globally unique; consumers
// must treat redelivery as idempotent by that id.
type KitchenEvent struct {
	EventID     string        `json:"event_id"`
	Type        string        `json:"type"`
	BarID       uint64        `json:"bar_id"`
	TableID     uint64        `json:"table_id"`
	TicketSeq   uint64        `json:"ticket_seq,omitempty"`
	SubmittedBy string        `json:"submitted_by,omitempty"`
	State       string        `json:"state,omitempty"`
	Lines       []KitchenLine `json:"lines,omitempty"`
	TotalCents  int64         `json:"total_cents,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	ProducedAt  string        `json:"produced_at"`
}

// FromEvent converts an engine event into its broker payload.
func FromEvent(ev model.Event) KitchenEvent {
	out := KitchenEvent{
		EventID:    ev.ID,
		Type:       string(ev.Type),
		BarID:      ev.Session.BarID,
		TableID:    ev.Session.TableID,
		TicketSeq:  ev.TicketSeq,
		Reason:     ev.Reason,
		ProducedAt: ev.ProducedAt.UTC().Format(time.RFC3339),
	}
	if ev.Ticket != nil {
		out.SubmittedBy = ev.Ticket.SubmittedBy
		out.State = string(ev.Ticket.State)
		out.TotalCents = ev.Ticket.ConfirmedTotalCents()
		for _, l := range ev.Ticket.Lines {
			out.Lines = append(out.Lines, KitchenLine{
				ProductID:    l.ProductID,
				Name:         l.Name,
				RequestedQty: l.RequestedQty,
				ConfirmedQty: l.ConfirmedQty,
				Available:    l.Available,
			})
		}
	}
	return out
}
