package order

import "github.com/baresync/comanda/internal/model"

// Review applies arbitrator decisions to a ticket.  Decisions may
// cover a subset of the lines; untouched lines keep their current
// confirmed quantity.  A decision may never confirm more than the
// client requested; within that bound a later review pass may restore
// a previously reduced line (the revision bump invalidates any ack in
// flight).  Marking a line unavailable forces its confirmed quantity
// to zero.
//
// Only one review may be in flight per ticket: the per-ticket review
// token is acquired with a try-lock, so a concurrent second call fails
// fast with ErrReviewInProgress instead of interleaving partial
// writes.  Reviews on different tickets of the same session proceed
// independently.
//
// Outcome selection, after applying the decisions:
//   - every line intact (confirmed == requested, available)  -> Confirmed
//   - every line zeroed                                      -> Rejected
//   - anything in between                                    -> Adjusted,
//     revision incremented, then AwaitingClientAck for the submitter
//     to accept or resubmit.
//
// Exactly one TicketReviewed event is emitted regardless of outcome;
// Confirmed and Rejected outcomes additionally emit their own event.
func (s *Session) Review(seq uint64, decisions []model.ReviewDecision) (model.Ticket, error) {
	return s.review(seq, decisions, false, "")
}

// Reject rejects the ticket wholesale.  Equivalent to a review that
// zeroes every line, except that no client acknowledgement is needed:
// a full rejection requires no client concurrence, so the ticket goes
// straight to the Rejected terminal state.
func (s *Session) Reject(seq uint64, reason string) (model.Ticket, error) {
	return s.review(seq, nil, true, reason)
}

func (s *Session) review(seq uint64, decisions []model.ReviewDecision, reject bool, reason string) (model.Ticket, error) {
	t, err := s.findTicket(seq)
	if err != nil {
		return model.Ticket{}, err
	}
	if !t.reviewMu.TryLock() {
		return model.Ticket{}, ErrReviewInProgress
	}
	defer t.reviewMu.Unlock()

	// Register the review so a concurrent Close or Settle waits for it
	// instead of racing its mutation.  Registration happens under the
	// same critical section as the status check: once the session left
	// Open, no new mutation can slip past the freeze.
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
	s.touch()
	s.mu.Unlock()
	defer s.inflight.Done()

	t.mu.Lock()
	switch t.data.State {
	case model.TicketSubmitted:
		t.data.State = model.TicketUnderReview
	case model.TicketUnderReview, model.TicketAwaitingClientAck:
		// reviewable; a re-adjustment of an unacked ticket bumps the
		// revision again and invalidates in-flight acks
	default:
		t.mu.Unlock()
		return model.Ticket{}, ErrInvalidState
	}

	// Validate every decision before touching any line, so a bad batch
	// leaves the ticket untouched.
	byProduct := make(map[uint64]int, len(t.data.Lines))
	for i, l := range t.data.Lines {
		byProduct[l.ProductID] = i
	}
	for _, d := range decisions {
		i, ok := byProduct[d.ProductID]
		if !ok {
			t.mu.Unlock()
			return model.Ticket{}, ErrUnknownLine
		}
		if d.ConfirmedQty > t.data.Lines[i].RequestedQty {
			t.mu.Unlock()
			return model.Ticket{}, ErrQuantityExceeded
		}
	}

	if reject {
		for i := range t.data.Lines {
			t.data.Lines[i].ConfirmedQty = 0
		}
	} else {
		for _, d := range decisions {
			l := &t.data.Lines[byProduct[d.ProductID]]
			l.Available = d.Available
			l.ConfirmedQty = d.ConfirmedQty
			if !d.Available {
				l.ConfirmedQty = 0
			}
		}
	}

	intact, zeroed := true, true
	for _, l := range t.data.Lines {
		if l.ConfirmedQty != l.RequestedQty || !l.Available {
			intact = false
		}
		if l.ConfirmedQty != 0 {
			zeroed = false
		}
	}
	switch {
	case intact:
		t.data.State = model.TicketConfirmed
	case zeroed:
		t.data.State = model.TicketRejected
	default:
		// Adjusted is transient: it exists only inside this critical
		// section and hands over to AwaitingClientAck immediately.
		t.data.State = model.TicketAdjusted
		t.data.Revision++
		t.data.State = model.TicketAwaitingClientAck
	}
	snap := t.clone()
	t.mu.Unlock()

	recipients := s.recipients()
	s.notifier.Publish(recipients, s.newEvent(model.EventTicketReviewed, &snap, reason))
	switch snap.State {
	case model.TicketConfirmed:
		s.notifier.Publish(recipients, s.newEvent(model.EventTicketConfirmed, &snap, ""))
	case model.TicketRejected:
		s.notifier.Publish(recipients, s.newEvent(model.EventTicketRejected, &snap, reason))
	}
	s.archiveTicket(snap)
	return snap, nil
}
