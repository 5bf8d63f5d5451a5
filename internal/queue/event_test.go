package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/baresync/comanda/internal/model"
)

func TestFromEventDenormalizesTicket(t *testing.T) {
	produced := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)
	ev := model.Event{
		ID:        "ev-1",
		Type:      model.EventTicketConfirmed,
		Session:   model.SessionKey{BarID: 1, TableID: 7},
		TicketSeq: 3,
		Ticket: &model.Ticket{
			Seq:         3,
			SubmittedBy: "ana",
			State:       model.TicketConfirmed,
			Lines: []model.LineItem{
				{ProductID: 1, Name: "Lager", UnitPriceCents: 450, RequestedQty: 3, ConfirmedQty: 2, Available: true},
			},
		},
		ProducedAt: produced,
	}

	out := FromEvent(ev)
	assert.Equal(t, "ev-1", out.EventID)
	assert.Equal(t, "ticket.confirmed", out.Type)
	assert.Equal(t, uint64(1), out.BarID)
	assert.Equal(t, uint64(7), out.TableID)
	assert.Equal(t, uint64(3), out.TicketSeq)
	assert.Equal(t, "ana", out.SubmittedBy)
	assert.Equal(t, "CONFIRMED", out.State)
	assert.Equal(t, int64(900), out.TotalCents)
	assert.Equal(t, "2026-08-31T18:30:00Z", out.ProducedAt)
	assert.Len(t, out.Lines, 1)
	assert.Equal(t, uint32(2), out.Lines[0].ConfirmedQty)
}

func TestFromEventWithoutTicket(t *testing.T) {
	out := FromEvent(model.Event{
		ID:         "ev-2",
		Type:       model.EventSessionClosed,
		Session:    model.SessionKey{BarID: 1, TableID: 7},
		Reason:     "settled",
		ProducedAt: time.Now(),
	})
	assert.Equal(t, "session.closed", out.Type)
	assert.Equal(t, "settled", out.Reason)
	assert.Empty(t, out.Lines)
	assert.Zero(t, out.TicketSeq)
}
