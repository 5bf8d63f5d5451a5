package order

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baresync/comanda/internal/model"
)

// StaffRecipient returns the dispatcher recipient name for the staff
// and kitchen channel of a bar.  Every session event is fanned out to
// this recipient in addition to the session's participants.
func StaffRecipient(barID uint64) string {
	return fmt.Sprintf("staff:%d", barID)
}

// Session is the live state of one table session.  It owns the
// participant set, the append-only ticket log and the session-scoped
// sequence counter.  Concurrency is scoped deliberately narrowly:
//
//   - s.mu guards the participant set, status and sequence assignment.
//     Submit holds it only for the brief append, so concurrent
//     submissions from different participants contend only there.
//   - each ticket carries its own mutex for state mutation and a
//     separate try-lock used as the single-review-in-flight token, so
//     arbitrator work on one ticket never blocks other tickets.
//   - client acknowledgements are optimistic: they compare the ticket
//     revision instead of holding any lock across the client round trip.
type Session struct {
	key      model.SessionKey
	notifier Notifier
	archiver Archiver

	mu           sync.Mutex
	participants []string
	tickets      []*ticket // tickets[i].data.Seq == i+1, append-only
	status       model.SessionStatus
	closing      bool
	paymentRef   *string
	createdAt    time.Time
	lastActivity time.Time
	closedAt     *time.Time

	inflight sync.WaitGroup // in-flight ticket mutations (reviews and acks)
}

// ticket pairs the wire-visible ticket data with its two locks.  mu
// serializes mutations; reviewMu is the per-ticket exclusion token for
// arbitrator review and is only ever acquired with TryLock.
type ticket struct {
	mu       sync.Mutex
	reviewMu sync.Mutex
	data     model.Ticket
}

// clone returns a deep copy of the ticket data.  Caller must hold t.mu.
func (t *ticket) clone() model.Ticket {
	out := t.data
	out.Lines = make([]model.LineItem, len(t.data.Lines))
	copy(out.Lines, t.data.Lines)
	if t.data.ReplacedBy != nil {
		rb := *t.data.ReplacedBy
		out.ReplacedBy = &rb
	}
	return out
}

func newSession(key model.SessionKey, n Notifier, a Archiver) *Session {
	now := time.Now().UTC()
	return &Session{
		key:          key,
		notifier:     n,
		archiver:     a,
		status:       model.SessionOpen,
		createdAt:    now,
		lastActivity: now,
	}
}

// Key returns the (bar, table) pair this session belongs to.
func (s *Session) Key() model.SessionKey { return s.key }

// touch records activity for the idle-timeout sweeper.  Caller must
// hold s.mu.
func (s *Session) touch() { s.lastActivity = time.Now().UTC() }

// findTicket resolves a sequence number to the live ticket.  Sequence
// numbers are assigned gaplessly from 1, so the lookup is positional.
func (s *Session) findTicket(seq uint64) (*ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == 0 || seq > uint64(len(s.tickets)) {
		return nil, ErrTicketNotFound
	}
	return s.tickets[seq-1], nil
}

// recipientsLocked returns the current participants plus the staff
// channel.  Caller must hold s.mu.
func (s *Session) recipientsLocked() []string {
	out := make([]string, 0, len(s.participants)+1)
	out = append(out, s.participants...)
	out = append(out, StaffRecipient(s.key.BarID))
	return out
}

// recipients is recipientsLocked with its own locking.
func (s *Session) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipientsLocked()
}

// newEvent builds a session event with a fresh unique id.  The
// per-recipient delivery sequence is stamped later by the dispatcher.
func (s *Session) newEvent(typ model.EventType, t *model.Ticket, reason string) model.Event {
	ev := model.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Session:    s.key,
		Reason:     reason,
		ProducedAt: time.Now().UTC(),
	}
	if t != nil {
		ev.TicketSeq = t.Seq
		ev.Ticket = t
	}
	return ev
}

// archiveTicket hands a ticket snapshot to the archiver without
// blocking the calling transition.
func (s *Session) archiveTicket(snap model.Ticket) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.archiver.ArchiveTicket(ctx, s.key, snap); err != nil {
			log.Printf("order: archive ticket %s#%d failed: %v", s.key, snap.Seq, err)
		}
	}()
}

// archiveSession hands a full session snapshot to the archiver.
func (s *Session) archiveSession(snap model.TableSession) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.archiver.ArchiveSession(ctx, snap); err != nil {
			log.Printf("order: archive session %s failed: %v", s.key, err)
		}
	}()
}

// Close terminally closes the session.  No further joins, submissions
// or reviews are accepted afterwards.  An in-flight arbitrator review
// or acknowledgement is allowed to complete first so it never leaves a
// half-applied mutation behind; mutations arriving after Close is
// requested are rejected.  Emits a final SessionClosed event to all
// participants and hands the full session to the archiver.  Closing
// twice is a no-op.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.status == model.SessionClosed || s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.mu.Unlock()

	s.inflight.Wait()

	s.mu.Lock()
	s.status = model.SessionClosed
	now := time.Now().UTC()
	s.closedAt = &now
	s.touch()
	recipients := s.recipientsLocked()
	s.mu.Unlock()

	s.notifier.Publish(recipients, s.newEvent(model.EventSessionClosed, nil, reason))
	s.archiveSession(s.sessionModel())
	log.Printf("order: session %s closed (%s)", s.key, reason)
}

// Snapshot returns a consistent copy of the session for the polling
// reconciliation fallback.  The running total is recomputed from
// Confirmed tickets on every call; it is never cached, so it can not
// diverge from ticket state.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	parts := make([]string, len(s.participants))
	copy(parts, s.participants)
	refs := make([]*ticket, len(s.tickets))
	copy(refs, s.tickets)
	status := s.status
	s.mu.Unlock()

	tickets := make([]model.Ticket, 0, len(refs))
	for _, t := range refs {
		t.mu.Lock()
		tickets = append(tickets, t.clone())
		t.mu.Unlock()
	}
	var total int64
	for _, t := range tickets {
		if t.State == model.TicketConfirmed {
			total += t.ConfirmedTotalCents()
		}
	}
	return model.SessionSnapshot{
		Key:               s.key,
		Status:            status,
		Participants:      parts,
		Tickets:           tickets,
		RunningTotalCents: total,
	}
}

// ComputeTotal folds the Confirmed tickets into the payable amount in
// cents.  Tickets in any other state never contribute.
func (s *Session) ComputeTotal() int64 {
	var total int64
	for _, t := range s.ticketRefs() {
		t.mu.Lock()
		if t.data.State == model.TicketConfirmed {
			total += t.data.ConfirmedTotalCents()
		}
		t.mu.Unlock()
	}
	return total
}

func (s *Session) ticketRefs() []*ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]*ticket, len(s.tickets))
	copy(refs, s.tickets)
	return refs
}

// sessionModel builds a model.TableSession snapshot for archiving.
// Caller must not hold s.mu.
func (s *Session) sessionModel() model.TableSession {
	snap := s.Snapshot()
	s.mu.Lock()
	out := model.TableSession{
		Key:          s.key,
		Participants: snap.Participants,
		Tickets:      snap.Tickets,
		Status:       s.status,
		CreatedAt:    s.createdAt,
		ClosedAt:     s.closedAt,
	}
	if s.paymentRef != nil {
		ref := *s.paymentRef
		out.PaymentRef = &ref
	}
	s.mu.Unlock()
	return out
}
