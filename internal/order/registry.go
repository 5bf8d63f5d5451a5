package order

import (
	"sync"
	"time"

	"github.com/baresync/comanda/internal/model"
)

// Registry maps (bar, table) pairs to live sessions.  A session is
// created on the first successful join and kept in the registry for a
// while after it closes so that late callers observe ErrSessionClosed
// instead of accidentally opening a fresh session on a table that is
// mid-checkout.  A background sweeper closes idle sessions and evicts
// closed ones once the retention window passes.
type Registry struct {
	notifier Notifier
	archiver Archiver

	idleTimeout time.Duration
	retention   time.Duration

	mu       sync.RWMutex
	sessions map[model.SessionKey]*Session

	stop chan struct{}
	once sync.Once
}

// RegistryOption tweaks registry construction.
type RegistryOption func(*Registry)

// WithIdleTimeout overrides the duration of inactivity after which the
// sweeper closes a session.  Zero disables idle closing.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTimeout = d }
}

// WithRetention overrides how long a closed session stays resolvable
// before eviction.
func WithRetention(d time.Duration) RegistryOption {
	return func(r *Registry) { r.retention = d }
}

// NewRegistry builds a registry wired to the given notifier and
// archiver.  Both may be the Nop implementations in tests.
func NewRegistry(n Notifier, a Archiver, opts ...RegistryOption) *Registry {
	r := &Registry{
		notifier:    n,
		archiver:    a,
		idleTimeout: 4 * time.Hour,
		retention:   time.Hour,
		sessions:    make(map[model.SessionKey]*Session),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join adds the participant to the session for (bar, table), creating
// the session on first join.  Join is idempotent per participant id:
// joining twice returns the same handle and does not duplicate the
// participant.  Returns ErrSessionClosed once the session has closed
// and ErrSessionSettling while a charge is outstanding.
func (r *Registry) Join(barID, tableID uint64, participantID string) (*Session, error) {
	key := model.SessionKey{BarID: barID, TableID: tableID}
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = newSession(key, r.notifier, r.archiver)
		r.sessions[key] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case model.SessionClosed:
		return nil, ErrSessionClosed
	case model.SessionSettling:
		return nil, ErrSessionSettling
	}
	for _, p := range s.participants {
		if p == participantID {
			return s, nil // already joined, same handle
		}
	}
	s.participants = append(s.participants, participantID)
	s.touch()
	return s, nil
}

// Get resolves an existing session without joining it.  Staff-side
// operations use this; clients must Join first.
func (r *Registry) Get(barID, tableID uint64) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[model.SessionKey{BarID: barID, TableID: tableID}]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ListByBar returns the live (non-closed) sessions of a bar, for the
// staff dashboard.
func (r *Registry) ListByBar(barID uint64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for key, s := range r.sessions {
		if key.BarID != barID {
			continue
		}
		s.mu.Lock()
		open := s.status != model.SessionClosed
		s.mu.Unlock()
		if open {
			out = append(out, s)
		}
	}
	return out
}

// Leave removes the participant from the active set.  Tickets already
// submitted by the participant stay valid and keep counting toward the
// total; leaving only stops future event delivery and submissions.
func (r *Registry) Leave(s *Session, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.participants {
		if p == participantID {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			s.touch()
			return
		}
	}
}

// Start launches the idle/retention sweeper.  It returns immediately;
// call Stop to terminate the background goroutine.
func (r *Registry) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-t.C:
				r.sweep(time.Now().UTC())
			}
		}
	}()
}

// Stop terminates the sweeper goroutine.
func (r *Registry) Stop() { r.once.Do(func() { close(r.stop) }) }

// sweep closes sessions idle past the timeout and evicts closed
// sessions past the retention window.
func (r *Registry) sweep(now time.Time) {
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	for _, s := range candidates {
		s.mu.Lock()
		status := s.status
		idle := now.Sub(s.lastActivity)
		closedAt := s.closedAt
		s.mu.Unlock()

		if status != model.SessionClosed && r.idleTimeout > 0 && idle >= r.idleTimeout {
			s.Close("idle timeout")
			continue
		}
		if status == model.SessionClosed && closedAt != nil && now.Sub(*closedAt) >= r.retention {
			r.mu.Lock()
			if cur, ok := r.sessions[s.key]; ok && cur == s {
				delete(r.sessions, s.key)
			}
			r.mu.Unlock()
		}
	}
}
