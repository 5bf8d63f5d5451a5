package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baresync/comanda/internal/model"
	"github.com/baresync/comanda/internal/payment"
)

// fakeCharger scripts the payment collaborator.  When block is non-nil
// the charge parks until the channel closes, so tests can observe the
// Settling window.
type fakeCharger struct {
	receipt payment.Receipt
	err     error
	block   chan struct{}

	gotSession string
	gotAmount  int64
	gotMethod  string
}

func (f *fakeCharger) Charge(_ context.Context, sessionID string, amountCents int64, method string) (payment.Receipt, error) {
	f.gotSession = sessionID
	f.gotAmount = amountCents
	f.gotMethod = method
	if f.block != nil {
		<-f.block
	}
	return f.receipt, f.err
}

func settledSession(t *testing.T) (*Registry, *Session) {
	t.Helper()
	r, _ := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	tk, err := s.Submit("ana", testCart([2]int{1, 2})) // 2 x 450
	require.NoError(t, err)
	_, err = s.Review(tk.Seq, nil)
	require.NoError(t, err)
	return r, s
}

func TestSettleSuccessClosesSession(t *testing.T) {
	_, s := settledSession(t)
	charger := &fakeCharger{receipt: payment.Receipt{PaymentRef: "pay-42", Success: true}}

	ref, total, err := s.Settle(context.Background(), charger, "card")
	require.NoError(t, err)
	assert.Equal(t, "pay-42", ref)
	assert.Equal(t, int64(900), total)
	assert.Equal(t, "1/7", charger.gotSession)
	assert.Equal(t, int64(900), charger.gotAmount)
	assert.Equal(t, "card", charger.gotMethod)

	snap := s.Snapshot()
	assert.Equal(t, model.SessionClosed, snap.Status)

	// Everything after settlement is refused.
	_, err = s.Submit("ana", testCart([2]int{1, 1}))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, _, err = s.Settle(context.Background(), charger, "card")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSettleDeclineReopensSession(t *testing.T) {
	_, s := settledSession(t)
	charger := &fakeCharger{receipt: payment.Receipt{Success: false, Decline: "insufficient funds"}}

	_, _, err := s.Settle(context.Background(), charger, "card")
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "insufficient funds")

	// Back to Open with the Confirmed ticket untouched; a retry works.
	snap := s.Snapshot()
	assert.Equal(t, model.SessionOpen, snap.Status)
	assert.Equal(t, int64(900), snap.RunningTotalCents)
	assert.Equal(t, model.TicketConfirmed, snap.Tickets[0].State)

	charger.receipt = payment.Receipt{PaymentRef: "pay-43", Success: true}
	ref, total, err := s.Settle(context.Background(), charger, "card")
	require.NoError(t, err)
	assert.Equal(t, "pay-43", ref)
	assert.Equal(t, int64(900), total)
}

func TestSettleInfraErrorReopensSession(t *testing.T) {
	_, s := settledSession(t)
	charger := &fakeCharger{err: errors.New("gateway timeout")}

	_, _, err := s.Settle(context.Background(), charger, "card")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPaymentFailed) // infra fault, not a decline
	assert.Equal(t, model.SessionOpen, s.Snapshot().Status)
}

// While a charge is outstanding the session is frozen: no submissions,
// acks, reviews, joins or second settlements.
func TestSettlingFreezesSession(t *testing.T) {
	r, s := settledSession(t)
	charger := &fakeCharger{
		receipt: payment.Receipt{PaymentRef: "pay-44", Success: true},
		block:   make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Settle(context.Background(), charger, "cash")
		done <- err
	}()
	require.Eventually(t, func() bool {
		return s.Snapshot().Status == model.SessionSettling
	}, time.Second, 5*time.Millisecond)

	_, err := s.Submit("ana", testCart([2]int{1, 1}))
	assert.ErrorIs(t, err, ErrSessionSettling)
	_, err = s.Ack("ana", 1, 0)
	assert.ErrorIs(t, err, ErrSessionSettling)
	_, err = s.Review(1, nil)
	assert.ErrorIs(t, err, ErrSessionSettling)
	_, err = r.Join(1, 7, "carla")
	assert.ErrorIs(t, err, ErrSessionSettling)
	_, _, err = s.Settle(context.Background(), charger, "cash")
	assert.ErrorIs(t, err, ErrSessionSettling)

	close(charger.block)
	require.NoError(t, <-done)
	assert.Equal(t, model.SessionClosed, s.Snapshot().Status)
}

// signalCharger reports each charge on a channel so tests can observe
// when (and with what amount) the gateway was actually called.
type signalCharger struct {
	called  chan int64
	receipt payment.Receipt
}

func newSignalCharger() *signalCharger {
	return &signalCharger{
		called:  make(chan int64, 1),
		receipt: payment.Receipt{PaymentRef: "pay", Success: true},
	}
}

func (c *signalCharger) Charge(_ context.Context, _ string, amountCents int64, _ string) (payment.Receipt, error) {
	c.called <- amountCents
	return c.receipt, nil
}

// A review that won the Open check before Settle flipped the status
// must finish before the total is computed: the gateway is charged for
// what that review confirmed.
func TestSettleWaitsForInFlightReview(t *testing.T) {
	gate := newGateNotifier()
	r := NewRegistry(gate, NopArchiver{})
	defer r.Stop()

	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	first, err := s.Submit("ana", testCart([2]int{1, 2})) // 900
	require.NoError(t, err)
	_, err = s.Review(first.Seq, nil)
	require.NoError(t, err)
	second, err := s.Submit("ana", testCart([2]int{3, 1})) // 850
	require.NoError(t, err)
	gate.Arm()

	reviewDone := make(chan error, 1)
	go func() {
		_, err := s.Review(second.Seq, nil)
		reviewDone <- err
	}()
	<-gate.entered // review is mid-publish, still registered

	charger := newSignalCharger()
	settleDone := make(chan error, 1)
	go func() {
		_, _, err := s.Settle(context.Background(), charger, "card")
		settleDone <- err
	}()

	// The charge must not fire while the review is in flight.
	select {
	case amount := <-charger.called:
		t.Fatalf("charged %d cents while a review was in flight", amount)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	require.NoError(t, <-reviewDone)
	require.NoError(t, <-settleDone)
	assert.Equal(t, int64(1750), <-charger.called)
}

// Same guarantee for acknowledgements: an ack past the freeze check
// counts toward the charged total.
func TestSettleWaitsForInFlightAck(t *testing.T) {
	gate := newGateNotifier()
	r := NewRegistry(gate, NopArchiver{})
	defer r.Stop()

	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	tk, err := s.Submit("ana", testCart([2]int{1, 3}))
	require.NoError(t, err)
	adj, err := s.Review(tk.Seq, []model.ReviewDecision{
		{ProductID: 1, ConfirmedQty: 2, Available: true}, // 900
	})
	require.NoError(t, err)
	gate.Arm()

	ackDone := make(chan error, 1)
	go func() {
		_, err := s.Ack("ana", tk.Seq, adj.Revision)
		ackDone <- err
	}()
	<-gate.entered // ack confirmed the ticket, blocked mid-publish

	charger := newSignalCharger()
	settleDone := make(chan error, 1)
	go func() {
		_, _, err := s.Settle(context.Background(), charger, "card")
		settleDone <- err
	}()

	select {
	case amount := <-charger.called:
		t.Fatalf("charged %d cents while an ack was in flight", amount)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	require.NoError(t, <-ackDone)
	require.NoError(t, <-settleDone)
	assert.Equal(t, int64(900), <-charger.called)
}

// The charged total must not depend on the order in which participants
// submitted or were confirmed, only on what ended up Confirmed.
func TestSettleTotalIsOrderIndependent(t *testing.T) {
	run := func(firstAna bool) int64 {
		r, _ := newTestRegistry(t)
		s, err := r.Join(1, 7, "ana")
		require.NoError(t, err)
		_, err = r.Join(1, 7, "bruno")
		require.NoError(t, err)

		submit := func(pid string, item [2]int) uint64 {
			tk, err := s.Submit(pid, testCart(item))
			require.NoError(t, err)
			return tk.Seq
		}
		var seqA, seqB uint64
		if firstAna {
			seqA = submit("ana", [2]int{1, 2})  // 900
			seqB = submit("bruno", [2]int{3, 1}) // 850
		} else {
			seqB = submit("bruno", [2]int{3, 1})
			seqA = submit("ana", [2]int{1, 2})
		}
		// Confirm in the opposite order from submission.
		for _, seq := range []uint64{seqB, seqA} {
			_, err := s.Review(seq, nil)
			require.NoError(t, err)
		}

		charger := &fakeCharger{receipt: payment.Receipt{PaymentRef: "pay", Success: true}}
		_, total, err := s.Settle(context.Background(), charger, "cash")
		require.NoError(t, err)
		return total
	}

	assert.Equal(t, run(true), run(false))
	assert.Equal(t, int64(1750), run(true))
}
