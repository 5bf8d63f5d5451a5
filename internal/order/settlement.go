package order

import (
	"context"
	"fmt"
	"log"

	"github.com/baresync/comanda/internal/model"
	"github.com/baresync/comanda/internal/payment"
)

// Settle charges the session's payable total through the payment
// collaborator and closes the session on success.  The total is the
// fold over Confirmed tickets only, computed after the session enters
// Settling and after in-flight reviews and acks have drained, so no
// confirmation can slip in between computing and charging.  On gateway decline or infrastructure failure the session
// returns to Open with every Confirmed ticket untouched: settlement
// failure never reopens tickets for re-review, and the caller may
// retry.  Returns the payment reference and the charged amount.
func (s *Session) Settle(ctx context.Context, charger payment.Charger, method string) (string, int64, error) {
	s.mu.Lock()
	switch {
	case s.status == model.SessionClosed || s.closing:
		s.mu.Unlock()
		return "", 0, ErrSessionClosed
	case s.status == model.SessionSettling:
		s.mu.Unlock()
		return "", 0, ErrSessionSettling
	}
	s.status = model.SessionSettling
	s.touch()
	s.mu.Unlock()

	// Reviews and acks that won the Open check before the flip may
	// still be mid-mutation; drain them so the total charged matches
	// the final set of Confirmed tickets.
	s.inflight.Wait()

	total := s.ComputeTotal()

	receipt, err := charger.Charge(ctx, s.key.String(), total, method)
	if err != nil {
		s.reopen()
		return "", 0, fmt.Errorf("settle %s: %w", s.key, err)
	}
	if !receipt.Success {
		s.reopen()
		if receipt.Decline != "" {
			return "", 0, fmt.Errorf("%w: %s", ErrPaymentFailed, receipt.Decline)
		}
		return "", 0, ErrPaymentFailed
	}

	s.mu.Lock()
	ref := receipt.PaymentRef
	s.paymentRef = &ref
	s.mu.Unlock()

	log.Printf("order: session %s settled, %d cents, ref=%s", s.key, total, ref)
	s.Close("settled")
	return ref, total, nil
}

// reopen rolls a failed settlement back to Open.
func (s *Session) reopen() {
	s.mu.Lock()
	if s.status == model.SessionSettling {
		s.status = model.SessionOpen
		s.touch()
	}
	s.mu.Unlock()
}
