package order

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baresync/comanda/internal/model"
)

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu         sync.Mutex
	events     []model.Event
	recipients [][]string
}

func (n *recordingNotifier) Publish(recipients []string, ev model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	n.recipients = append(n.recipients, recipients)
}

func (n *recordingNotifier) byType(typ model.EventType) []model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Event
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

var testProducts = []model.Product{
	{ID: 1, BarID: 1, Name: "Lager", UnitPriceCents: 450, Available: true},
	{ID: 2, BarID: 1, Name: "Cola", UnitPriceCents: 300, Available: true},
	{ID: 3, BarID: 1, Name: "Nachos", UnitPriceCents: 850, Available: true},
}

func testCart(items ...[2]int) *Cart {
	c := NewCart()
	for _, it := range items {
		c.Add(testProducts[it[0]-1], uint32(it[1]))
	}
	return c
}

func newTestRegistry(t *testing.T) (*Registry, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	r := NewRegistry(n, NopArchiver{})
	t.Cleanup(r.Stop)
	return r, n
}

func TestJoinIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)

	s1, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	s2, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, []string{"ana"}, s1.Snapshot().Participants)

	_, err = r.Join(1, 7, "bruno")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "bruno"}, s1.Snapshot().Participants)
}

func TestJoinClosedSession(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	s.Close("test")

	_, err = r.Join(1, 7, "bruno")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubmitAssignsSequence(t *testing.T) {
	r, n := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)

	t1, err := s.Submit("ana", testCart([2]int{1, 2}))
	require.NoError(t, err)
	t2, err := s.Submit("ana", testCart([2]int{2, 1}))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), t1.Seq)
	assert.Equal(t, uint64(2), t2.Seq)
	assert.Equal(t, model.TicketSubmitted, t1.State)
	assert.Equal(t, uint64(0), t1.Revision)
	assert.Len(t, n.byType(model.EventTicketSubmitted), 2)
}

func TestSubmitRejections(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)

	_, err = s.Submit("ana", NewCart())
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = s.Submit("stranger", testCart([2]int{1, 1}))
	assert.ErrorIs(t, err, ErrNotParticipant)

	s.Close("test")
	_, err = s.Submit("ana", testCart([2]int{1, 1}))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

// Fifty participants hammer Submit concurrently; every ticket must get
// a distinct sequence and the numbering must stay gapless.
func TestConcurrentSubmitsAreGapless(t *testing.T) {
	r, _ := newTestRegistry(t)
	const workers = 50

	s, err := r.Join(1, 7, pid(0))
	require.NoError(t, err)
	for i := 1; i < workers; i++ {
		_, err := r.Join(1, 7, pid(i))
		require.NoError(t, err)
	}

	seqs := make(chan uint64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := s.Submit(pid(i), testCart([2]int{1, 1}))
			if assert.NoError(t, err) {
				seqs <- tk.Seq
			}
		}(i)
	}
	wg.Wait()
	close(seqs)

	seen := make(map[uint64]bool, workers)
	for seq := range seqs {
		assert.False(t, seen[seq], "duplicate sequence %d", seq)
		seen[seq] = true
	}
	require.Len(t, seen, workers)
	for i := uint64(1); i <= workers; i++ {
		assert.True(t, seen[i], "gap at sequence %d", i)
	}
}

func pid(i int) string {
	return "p" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestLeaveKeepsSubmittedTickets(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	_, err = r.Join(1, 7, "bruno")
	require.NoError(t, err)

	tk, err := s.Submit("bruno", testCart([2]int{3, 1}))
	require.NoError(t, err)
	_, err = s.Review(tk.Seq, nil) // all lines intact -> Confirmed
	require.NoError(t, err)

	r.Leave(s, "bruno")

	snap := s.Snapshot()
	assert.Equal(t, []string{"ana"}, snap.Participants)
	require.Len(t, snap.Tickets, 1)
	assert.Equal(t, model.TicketConfirmed, snap.Tickets[0].State)
	assert.Equal(t, int64(850), snap.RunningTotalCents)

	_, err = s.Submit("bruno", testCart([2]int{1, 1}))
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSnapshotTotalCountsOnlyConfirmed(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)

	// Submitted only: contributes nothing.
	_, err = s.Submit("ana", testCart([2]int{1, 2}))
	require.NoError(t, err)
	assert.Zero(t, s.Snapshot().RunningTotalCents)

	// Confirmed: 2 x 450.
	_, err = s.Review(1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(900), s.Snapshot().RunningTotalCents)

	// Rejected: still nothing.
	_, err = s.Submit("ana", testCart([2]int{3, 1}))
	require.NoError(t, err)
	_, err = s.Reject(2, "kitchen closed")
	require.NoError(t, err)
	assert.Equal(t, int64(900), s.Snapshot().RunningTotalCents)
}

func TestCloseIsTerminalAndIdempotent(t *testing.T) {
	r, n := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)

	s.Close("last call")
	s.Close("again")

	assert.Len(t, n.byType(model.EventSessionClosed), 1)
	assert.Equal(t, model.SessionClosed, s.Snapshot().Status)

	_, err = s.Review(1, nil)
	assert.ErrorIs(t, err, ErrTicketNotFound)
	_, err = s.Submit("ana", testCart([2]int{1, 1}))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestListByBarSkipsClosed(t *testing.T) {
	r, _ := newTestRegistry(t)
	s1, err := r.Join(1, 7, "ana")
	require.NoError(t, err)
	_, err = r.Join(1, 8, "bruno")
	require.NoError(t, err)
	_, err = r.Join(2, 1, "carla")
	require.NoError(t, err)

	require.Len(t, r.ListByBar(1), 2)
	s1.Close("test")
	require.Len(t, r.ListByBar(1), 1)
	assert.Equal(t, uint64(8), r.ListByBar(1)[0].Key().TableID)
}

func TestEventsCarryTicketSnapshots(t *testing.T) {
	r, n := newTestRegistry(t)
	s, err := r.Join(1, 7, "ana")
	require.NoError(t, err)

	tk, err := s.Submit("ana", testCart([2]int{1, 2}))
	require.NoError(t, err)

	evs := n.byType(model.EventTicketSubmitted)
	require.Len(t, evs, 1)
	assert.NotEmpty(t, evs[0].ID)
	assert.Equal(t, tk.Seq, evs[0].TicketSeq)
	require.NotNil(t, evs[0].Ticket)
	assert.Equal(t, model.TicketSubmitted, evs[0].Ticket.State)
	assert.Equal(t, model.SessionKey{BarID: 1, TableID: 7}, evs[0].Session)

	// Fan-out always includes the bar's staff channel.
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.recipients)
	assert.Equal(t, []string{"ana", "staff:1"}, n.recipients[len(n.recipients)-1])
}
