package order

import (
	"time"

	"github.com/baresync/comanda/internal/model"
)

// Submit turns the participant's cart into an immutable ticket in state
// Submitted and assigns it the next session sequence number.  Sequence
// assignment happens inside a brief session-level critical section, so
// no two tickets of one session ever share a number even under
// concurrent submissions, and submissions are never blocked by reviews
// of other tickets.  The submitted cart is copied; later cart edits do
// not leak into the ticket.
func (s *Session) Submit(participantID string, cart *Cart) (model.Ticket, error) {
	if cart == nil || cart.Len() == 0 {
		return model.Ticket{}, ErrEmptyCart
	}
	_, snap, err := s.appendTicket(participantID, cart.Lines())
	if err != nil {
		return model.Ticket{}, err
	}
	s.notifier.Publish(s.recipients(), s.newEvent(model.EventTicketSubmitted, &snap, ""))
	s.archiveTicket(snap)
	return snap, nil
}

// appendTicket performs the sequence-assigning append under s.mu and
// returns the live ticket plus a detached snapshot.
func (s *Session) appendTicket(participantID string, lines []model.LineItem) (*ticket, model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.status == model.SessionClosed || s.closing:
		return nil, model.Ticket{}, ErrSessionClosed
	case s.status == model.SessionSettling:
		return nil, model.Ticket{}, ErrSessionSettling
	}
	member := false
	for _, p := range s.participants {
		if p == participantID {
			member = true
			break
		}
	}
	if !member {
		return nil, model.Ticket{}, ErrNotParticipant
	}
	t := &ticket{data: model.Ticket{
		Seq:         uint64(len(s.tickets)) + 1,
		SubmittedBy: participantID,
		SubmittedAt: time.Now().UTC(),
		Lines:       lines,
		State:       model.TicketSubmitted,
		Revision:    0,
	}}
	s.tickets = append(s.tickets, t)
	s.touch()
	t.mu.Lock()
	snap := t.clone()
	t.mu.Unlock()
	return t, snap, nil
}

// Ticket returns a snapshot of one ticket.
func (s *Session) Ticket(seq uint64) (model.Ticket, error) {
	t, err := s.findTicket(seq)
	if err != nil {
		return model.Ticket{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clone(), nil
}

// TicketForReview returns a ticket snapshot for the arbitrator and
// flips Submitted tickets to UnderReview on first read.  The flip is
// purely observational: no revision bump, no event.
func (s *Session) TicketForReview(seq uint64) (model.Ticket, error) {
	t, err := s.findTicket(seq)
	if err != nil {
		return model.Ticket{}, err
	}
	t.mu.Lock()
	if t.data.State == model.TicketSubmitted {
		t.data.State = model.TicketUnderReview
	}
	snap := t.clone()
	t.mu.Unlock()
	return snap, nil
}

// Ack confirms an adjusted ticket as-is on behalf of its submitter.
// The acknowledgement must reference the revision it is acking; when
// the arbitrator mutated the ticket again in the meantime the ack
// loses the race with ErrStaleRevision and nothing is mutated.  Only
// the submitting participant may ack.
func (s *Session) Ack(participantID string, seq, revision uint64) (model.Ticket, error) {
	// Register the ack like a review: status check and registration in
	// one critical section, so Close and Settle wait for acks that
	// already passed the freeze instead of racing their confirmation.
	s.mu.Lock()
	switch {
	case s.status == model.SessionClosed || s.closing:
		s.mu.Unlock()
		return model.Ticket{}, ErrSessionClosed
	case s.status == model.SessionSettling:
		s.mu.Unlock()
		return model.Ticket{}, ErrSessionSettling
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	t, err := s.findTicket(seq)
	if err != nil {
		return model.Ticket{}, err
	}
	t.mu.Lock()
	if t.data.SubmittedBy != participantID {
		t.mu.Unlock()
		return model.Ticket{}, ErrNotParticipant
	}
	if t.data.State != model.TicketAwaitingClientAck {
		t.mu.Unlock()
		return model.Ticket{}, ErrInvalidState
	}
	if t.data.Revision != revision {
		t.mu.Unlock()
		return model.Ticket{}, ErrStaleRevision
	}
	t.data.State = model.TicketConfirmed
	snap := t.clone()
	t.mu.Unlock()

	s.mu.Lock()
	s.touch()
	s.mu.Unlock()

	s.notifier.Publish(s.recipients(), s.newEvent(model.EventTicketConfirmed, &snap, ""))
	s.archiveTicket(snap)
	return snap, nil
}

// ResubmitInsteadOf declines an adjusted ticket and replaces it with a
// brand-new submission built from newCart.  The original ticket moves
// to Abandoned and records the replacement's sequence; tickets are
// never edited in place once abandoned.  Only the submitter may
// resubmit, and only while the original awaits acknowledgement.
func (s *Session) ResubmitInsteadOf(participantID string, seq uint64, newCart *Cart) (model.Ticket, error) {
	if newCart == nil || newCart.Len() == 0 {
		return model.Ticket{}, ErrEmptyCart
	}
	old, err := s.findTicket(seq)
	if err != nil {
		return model.Ticket{}, err
	}

	old.mu.Lock()
	defer old.mu.Unlock()
	if old.data.SubmittedBy != participantID {
		return model.Ticket{}, ErrNotParticipant
	}
	if old.data.State != model.TicketAwaitingClientAck {
		return model.Ticket{}, ErrInvalidState
	}
	// Holding old.mu here keeps a concurrent arbitrator re-adjustment
	// from interleaving with the abandon+replace pair.  appendTicket
	// only takes s.mu, which is never held while waiting on a ticket
	// mutex, so the ordering is safe.
	_, snap, err := s.appendTicket(participantID, newCart.Lines())
	if err != nil {
		return model.Ticket{}, err
	}
	old.data.State = model.TicketAbandoned
	replaced := snap.Seq
	old.data.ReplacedBy = &replaced
	oldSnap := old.clone()

	s.notifier.Publish(s.recipients(), s.newEvent(model.EventTicketSubmitted, &snap, "resubmission"))
	s.archiveTicket(oldSnap)
	s.archiveTicket(snap)
	return snap, nil
}
