// Package optimistic holds a session's in-memory mirror of the appointment store
// and applies status changes locally before the store confirms them.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
)

var (
	ErrNotFound       = errors.New("appointment not in the loaded collection")
	ErrUpdateInFlight = errors.New("an update for this appointment is already in flight")
	ErrClosed         = errors.New("console closed")
	ErrUpdateFailed   = errors.New("appointment update failed")
)

// Updater is the remote half of a status change.
type Updater interface {
	UpdateStatus(ctx context.Context, id string, status salon.Status, paymentMethod string) error
}

type Engine struct {
	store  Updater
	logger *slog.Logger

	mu       sync.Mutex
	appts    []salon.Appointment
	updating map[string]struct{}
	closed   bool
}

func NewEngine(store Updater, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger, updating: map[string]struct{}{}}
}

// Load replaces the mirror with a freshly fetched collection.
func (e *Engine) Load(appts []salon.Appointment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appts = salon.Clone(appts)
}

// Appointments returns a copy of the mirror.
func (e *Engine) Appointments() []salon.Appointment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return salon.Clone(e.appts)
}

// Updating lists in-flight appointment ids in sorted order.
func (e *Engine) Updating() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.updating))
	for id := range e.updating {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close tears the engine down. Mutations that finish afterwards change nothing.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.appts = nil
	e.updating = map[string]struct{}{}
}

// Mutation is one optimistic status change: Begin applied it locally, and
// exactly one of Commit or Rollback settles it.
type Mutation struct {
	engine   *Engine
	id       string
	snapshot []salon.Appointment
	settled  bool
}

// Begin snapshots the whole collection, marks id as updating and applies the
// new record locally.
func (e *Engine) Begin(id string, status salon.Status, paymentMethod string) (*Mutation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	idx := e.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, busy := e.updating[id]; busy {
		return nil, fmt.Errorf("%w: %s", ErrUpdateInFlight, id)
	}
	next, err := salon.Transition(e.appts[idx], status, paymentMethod)
	if err != nil {
		return nil, err
	}

	m := &Mutation{
		engine:   e,
		id:       id,
		snapshot: salon.Clone(e.appts),
	}
	e.updating[id] = struct{}{}
	e.appts[idx] = next
	return m, nil
}

// Commit keeps the local change and clears the updating mark.
func (m *Mutation) Commit() {
	e := m.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.settled {
		return
	}
	m.settled = true
	if e.closed {
		e.logger.Debug("late update completion dropped", "appointment_id", m.id, "outcome", "commit")
		return
	}
	delete(e.updating, m.id)
}

// Rollback restores the entire collection captured by Begin and clears the mark.
func (m *Mutation) Rollback() {
	e := m.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.settled {
		return
	}
	m.settled = true
	if e.closed {
		e.logger.Debug("late update completion dropped", "appointment_id", m.id, "outcome", "rollback")
		return
	}
	e.appts = m.snapshot
	delete(e.updating, m.id)
}

// SetStatus runs Begin, the remote update, then Commit or Rollback. The engine
// lock is not held during the remote call.
func (e *Engine) SetStatus(ctx context.Context, id string, status salon.Status, paymentMethod string) error {
	m, err := e.Begin(id, status, paymentMethod)
	if err != nil {
		return err
	}
	if err := e.store.UpdateStatus(ctx, id, status, paymentMethod); err != nil {
		m.Rollback()
		e.logger.Warn("console_event", "event", "update_rolled_back", "appointment_id", id, "status", status, "err", err)
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	m.Commit()
	e.logger.Info("console_event", "event", "update_committed", "appointment_id", id, "status", status)
	return nil
}

func (e *Engine) indexOf(id string) int {
	for i := range e.appts {
		if e.appts[i].ID == id {
			return i
		}
	}
	return -1
}
