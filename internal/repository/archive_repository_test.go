package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baresync/comanda/internal/model"
)

// archived mirrors the (revision, state) pair the guard in
// ArchiveTicket compares against the stored row.
type archived struct {
	state    model.TicketState
	revision uint64
}

// supersedes reports whether writing next over cur would move the row
// forward, using the same predicate as ArchiveTicket.
func supersedes(cur, next archived) bool {
	if cur.revision > next.revision {
		return false
	}
	if cur.revision == next.revision && stateProgress(cur.state) >= stateProgress(next.state) {
		return false
	}
	return true
}

// Every transition the engine can produce must be accepted in order
// and refused in reverse, so late-arriving archive goroutines cannot
// regress the audit row.
func TestArchiveGuardFollowsTicketLifecycle(t *testing.T) {
	lifecycles := [][]archived{
		// submit, staff opens, adjust, re-adjust, ack
		{
			{model.TicketSubmitted, 0},
			{model.TicketUnderReview, 0},
			{model.TicketAwaitingClientAck, 1},
			{model.TicketAwaitingClientAck, 2},
			{model.TicketConfirmed, 2},
		},
		// submit, full-accept review
		{
			{model.TicketSubmitted, 0},
			{model.TicketConfirmed, 0},
		},
		// submit, wholesale reject
		{
			{model.TicketSubmitted, 0},
			{model.TicketUnderReview, 0},
			{model.TicketRejected, 0},
		},
		// submit, adjust, decline via resubmission
		{
			{model.TicketSubmitted, 0},
			{model.TicketAwaitingClientAck, 1},
			{model.TicketAbandoned, 1},
		},
	}

	for _, steps := range lifecycles {
		for i := 1; i < len(steps); i++ {
			cur, next := steps[i-1], steps[i]
			assert.True(t, supersedes(cur, next),
				"%s r%d -> %s r%d must be written", cur.state, cur.revision, next.state, next.revision)
			assert.False(t, supersedes(next, cur),
				"%s r%d -> %s r%d must be refused", next.state, next.revision, cur.state, cur.revision)
		}
	}
}

func TestArchiveGuardSkipsDuplicates(t *testing.T) {
	snap := archived{model.TicketConfirmed, 2}
	assert.False(t, supersedes(snap, snap))
}

func TestArchiveGuardSkipsStaleRevisions(t *testing.T) {
	// A delayed write of revision 1 must not clobber revision 2, even
	// when the stale snapshot carries a later-looking state.
	assert.False(t, supersedes(
		archived{model.TicketAwaitingClientAck, 2},
		archived{model.TicketConfirmed, 1},
	))
}
