// Package dispatch fans session events out to recipients.  The
// contract mirrors what the mobile screens need: per recipient, events
// arrive in the order they were produced; delivery is at-least-once,
// so consumers deduplicate by event id; there is no ordering guarantee
// across recipients.  Push delivery to an attached sink is retried
// with exponential backoff and dropped after an exhaustion threshold —
// the dispatcher is a best-effort accelerator, and a recipient that
// missed events reconciles by polling the session snapshot.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/baresync/comanda/internal/model"
)

// Sink receives pushed events for one recipient.  A non-nil error
// triggers a retry; implementations must tolerate duplicates.
type Sink interface {
	Deliver(ev model.Event) error
}

// Dispatcher owns one inbox per recipient.  It satisfies
// order.Notifier, so the engine publishes through it directly; state
// transitions never block on delivery because Publish only appends to
// in-memory inboxes and wakes waiters.
type Dispatcher struct {
	retention   int
	maxAttempts int
	baseBackoff time.Duration

	mu      sync.Mutex
	inboxes map[string]*inbox

	stop chan struct{}
	once sync.Once
}

// Option tweaks dispatcher construction.
type Option func(*Dispatcher)

// WithRetention sets how many delivered events each inbox retains for
// replay-after-cursor polling.
func WithRetention(n int) Option {
	return func(d *Dispatcher) { d.retention = n }
}

// WithRetry sets the push retry policy: attempts per event and the
// base backoff doubled between attempts.
func WithRetry(attempts int, base time.Duration) Option {
	return func(d *Dispatcher) {
		d.maxAttempts = attempts
		d.baseBackoff = base
	}
}

// New builds a dispatcher with the default policy: 256 retained events
// per recipient, 5 push attempts starting at 200ms backoff.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		retention:   256,
		maxAttempts: 5,
		baseBackoff: 200 * time.Millisecond,
		inboxes:     make(map[string]*inbox),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stop terminates all push deliverer goroutines.
func (d *Dispatcher) Stop() { d.once.Do(func() { close(d.stop) }) }

type inbox struct {
	mu      sync.Mutex
	nextSeq uint64
	events  []model.Event // ordered by Seq, trimmed to retention
	notify  chan struct{} // closed and replaced on every publish
	hasSink bool
}

func (d *Dispatcher) inbox(recipient string) *inbox {
	d.mu.Lock()
	defer d.mu.Unlock()
	in, ok := d.inboxes[recipient]
	if !ok {
		in = &inbox{notify: make(chan struct{})}
		d.inboxes[recipient] = in
	}
	return in
}

// Publish appends the event to every recipient's inbox, stamping each
// copy with that recipient's next delivery sequence.  Never blocks.
func (d *Dispatcher) Publish(recipients []string, ev model.Event) {
	for _, r := range recipients {
		in := d.inbox(r)
		in.mu.Lock()
		in.nextSeq++
		stamped := ev
		stamped.Seq = in.nextSeq
		in.events = append(in.events, stamped)
		if over := len(in.events) - d.retention; over > 0 {
			in.events = append([]model.Event(nil), in.events[over:]...)
		}
		close(in.notify)
		in.notify = make(chan struct{})
		in.mu.Unlock()
	}
}

// after returns retained events with Seq > seq plus the channel that
// will be closed on the next publish.
func (in *inbox) after(seq uint64) ([]model.Event, chan struct{}) {
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []model.Event
	for _, ev := range in.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out, in.notify
}

// Poll returns the recipient's retained events after the given cursor
// without blocking.  A cursor older than the retention window simply
// yields what is still retained; the recipient is expected to fall
// back to the session snapshot in that case.
func (d *Dispatcher) Poll(recipient string, afterSeq uint64) []model.Event {
	evs, _ := d.inbox(recipient).after(afterSeq)
	return evs
}

// Wait long-polls the recipient's inbox: it returns as soon as events
// after the cursor exist, or with nil when ctx expires.
func (d *Dispatcher) Wait(ctx context.Context, recipient string, afterSeq uint64) []model.Event {
	in := d.inbox(recipient)
	for {
		evs, notify := in.after(afterSeq)
		if len(evs) > 0 {
			return evs
		}
		select {
		case <-ctx.Done():
			return nil
		case <-d.stop:
			return nil
		case <-notify:
		}
	}
}

// AttachSink starts a push deliverer for the recipient.  Events are
// pushed strictly in sequence order; each event is attempted up to the
// configured limit with doubling backoff, then dropped so the queue
// keeps moving.  Dropped events remain pollable until retention evicts
// them.  Attaching a second sink to the same recipient is rejected.
func (d *Dispatcher) AttachSink(recipient string, sink Sink) bool {
	in := d.inbox(recipient)
	in.mu.Lock()
	if in.hasSink {
		in.mu.Unlock()
		return false
	}
	in.hasSink = true
	in.mu.Unlock()

	go d.deliverLoop(recipient, in, sink)
	return true
}

func (d *Dispatcher) deliverLoop(recipient string, in *inbox, sink Sink) {
	var cursor uint64
	for {
		evs, notify := in.after(cursor)
		if len(evs) == 0 {
			select {
			case <-d.stop:
				return
			case <-notify:
				continue
			}
		}
		for _, ev := range evs {
			if !d.push(recipient, sink, ev) {
				return // dispatcher stopped mid-backoff
			}
			cursor = ev.Seq
		}
	}
}

// push attempts one event until it sticks or attempts are exhausted.
// Returns false only when the dispatcher is stopping.
func (d *Dispatcher) push(recipient string, sink Sink, ev model.Event) bool {
	backoff := d.baseBackoff
	for attempt := 1; ; attempt++ {
		err := sink.Deliver(ev)
		if err == nil {
			return true
		}
		if attempt >= d.maxAttempts {
			log.Printf("dispatch: dropping event %s for %s after %d attempts: %v", ev.ID, recipient, attempt, err)
			return true
		}
		select {
		case <-d.stop:
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
