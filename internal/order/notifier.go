package order

import (
	"context"

	"github.com/baresync/comanda/internal/model"
)

// Notifier receives every event the engine produces, together with the
// recipients it should reach.  Implementations must not block: state
// transitions never wait on delivery, and delivery retries are the
// notifier's own concern.  The dispatch package provides the production
// implementation.
type Notifier interface {
	Publish(recipients []string, ev model.Event)
}

// Archiver persists tickets and sessions for audit and order history.
// The engine invokes it asynchronously after transitions; the in-memory
// session state remains authoritative and never waits on the archive.
type Archiver interface {
	ArchiveTicket(ctx context.Context, key model.SessionKey, t model.Ticket) error
	ArchiveSession(ctx context.Context, s model.TableSession) error
}

// NopNotifier discards all events.  Useful in tests that only exercise
// state transitions.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish([]string, model.Event) {}

// NopArchiver discards all archive writes.
type NopArchiver struct{}

// ArchiveTicket implements Archiver.
func (NopArchiver) ArchiveTicket(context.Context, model.SessionKey, model.Ticket) error { return nil }

// ArchiveSession implements Archiver.
func (NopArchiver) ArchiveSession(context.Context, model.TableSession) error { return nil }
