// Package console is the staff console state machine: role selection, login,
// and the appointment view with optimistic status updates.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/credentials"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/optimistic"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/storeclient"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/visibility"
)

type View string

const (
	ViewSelectRole   View = "select_role"
	ViewLogin        View = "login"
	ViewAppointments View = "view_appointments"
	ViewError        View = "error"
)

type Tab string

const (
	TabProfessional Tab = "professional"
	TabAdmin        Tab = "admin"
)

func ParseTab(raw string) (Tab, error) {
	switch t := Tab(strings.TrimSpace(raw)); t {
	case TabProfessional, TabAdmin:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTab, raw)
	}
}

var (
	ErrClosed             = errors.New("console is closed")
	ErrWrongView          = errors.New("operation not available in the current view")
	ErrUnknownTab         = errors.New("unknown tab")
	ErrActorNotSelectable = errors.New("actor is not selectable from this tab")
	ErrFetchFailed        = errors.New("appointments could not be loaded; close and reopen the console")
	ErrLoading            = errors.New("appointments are still loading")
	ErrNotPermitted       = errors.New("not permitted for this actor")
	ErrStale              = errors.New("console state changed during the request")
	ErrNoPaymentDialog    = errors.New("no payment dialog is open")
	ErrInvalidFilter      = errors.New("professional filter must be an id or \"all\"")
)

// Authenticator is the credential check used by Login.
type Authenticator interface {
	Authenticate(ctx context.Context, actor salon.Actor, supplied string) error
}

// Directory lists the actors offered by each tab.
type Directory interface {
	Professionals() []salon.Actor
	Administrators() []salon.Actor
}

type Deps struct {
	Store    storeclient.Client
	Auth     Authenticator
	Roster   Directory
	Logger   *slog.Logger
	Location *time.Location
	Now      func() time.Time
}

// Session is one console instance. Every method is safe for concurrent use.
type Session struct {
	id   string
	deps Deps

	mu         sync.Mutex
	open       bool
	generation uint64
	cancel     context.CancelFunc
	loading    bool
	fetchErr   error
	view       View
	tab        Tab
	actor      salon.Actor
	loginErr   string
	date       time.Time
	filter     string
	engine     *optimistic.Engine
	alert      string
	dialog     string
	lastSeen   time.Time
}

func NewSession(id string, deps Deps) *Session {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Session{id: id, deps: deps}
	s.resetLocked()
	return s
}

func (s *Session) ID() string { return s.id }

// Open moves a closed console to open and starts the one fetch for this
// opening. The returned channel closes when that fetch settles. Opening an
// already open console starts nothing.
func (s *Session) Open(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(chan struct{})
	if s.open {
		close(done)
		return done
	}

	s.resetLocked()
	s.open = true
	s.generation++
	s.loading = true
	s.engine = optimistic.NewEngine(s.deps.Store, s.deps.Logger.With("session_id", s.id))
	s.touchLocked()

	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.fetch(fetchCtx, s.generation, s.engine, done)

	s.deps.Logger.Info("console_event", "event", "opened", "session_id", s.id)
	return done
}

func (s *Session) fetch(ctx context.Context, gen uint64, engine *optimistic.Engine, done chan struct{}) {
	defer close(done)
	appts, err := s.deps.Store.FetchAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.generation != gen {
		s.deps.Logger.Debug("stale fetch result dropped", "session_id", s.id)
		return
	}
	s.loading = false
	if err != nil {
		s.fetchErr = err
		s.deps.Logger.Error("console_event", "event", "fetch_failed", "session_id", s.id, "err", err)
		return
	}
	engine.Load(appts)
	s.deps.Logger.Info("console_event", "event", "fetched", "session_id", s.id, "count", len(appts))
}

// Close resets every field and tears the engine down. In-flight updates
// finish against the torn-down engine and are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.engine != nil {
		s.engine.Close()
	}
	s.resetLocked()
	s.deps.Logger.Info("console_event", "event", "closed", "session_id", s.id)
}

func (s *Session) resetLocked() {
	s.open = false
	s.cancel = nil
	s.loading = false
	s.fetchErr = nil
	s.view = ViewSelectRole
	s.tab = TabProfessional
	s.actor = nil
	s.loginErr = ""
	s.date = dayStart(s.deps.Now(), s.deps.Location)
	s.filter = visibility.AllProfessionals
	s.engine = nil
	s.alert = ""
	s.dialog = ""
}

// SelectTab switches the role list shown on the select_role view.
func (s *Session) SelectTab(tab Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(ViewSelectRole); err != nil {
		return err
	}
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	s.tab = tab
	return nil
}

// Selectable returns the actors offered by tab.
func (s *Session) Selectable(tab Tab) []salon.Actor {
	if tab == TabAdmin {
		return s.deps.Roster.Administrators()
	}
	return s.deps.Roster.Professionals()
}

// SelectActor picks an actor from the active tab: select_role -> login.
func (s *Session) SelectActor(actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(ViewSelectRole); err != nil {
		return err
	}
	for _, a := range s.Selectable(s.tab) {
		if a.ActorID() == actorID {
			s.actor = a
			s.loginErr = ""
			s.view = ViewLogin
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrActorNotSelectable, actorID)
}

// Login checks the password for the selected actor: login -> view_appointments.
// A wrong password keeps the actor and records a generic login error.
func (s *Session) Login(ctx context.Context, password string) (salon.Actor, error) {
	s.mu.Lock()
	if err := s.requireLocked(ViewLogin); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	actor, gen := s.actor, s.generation
	s.mu.Unlock()

	authErr := s.deps.Auth.Authenticate(ctx, actor, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.generation != gen || s.view != ViewLogin || s.actor != actor {
		return nil, ErrStale
	}
	switch {
	case authErr == nil:
		s.loginErr = ""
		s.view = ViewAppointments
		s.deps.Logger.Info("console_event", "event", "logged_in", "session_id", s.id, "actor_id", actor.ActorID())
		return actor, nil
	case errors.Is(authErr, credentials.ErrWrongPassword):
		s.loginErr = credentials.ErrWrongPassword.Error()
		return nil, credentials.ErrWrongPassword
	default:
		return nil, authErr
	}
}

// Back walks one step back: login -> select_role clears the actor,
// view_appointments -> login keeps it.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(""); err != nil {
		return err
	}
	switch s.view {
	case ViewLogin:
		s.actor = nil
		s.loginErr = ""
		s.view = ViewSelectRole
	case ViewAppointments:
		s.loginErr = ""
		s.dialog = ""
		s.view = ViewLogin
	default:
		return ErrWrongView
	}
	return nil
}

// SetDate selects the calendar day shown, in the console's location.
func (s *Session) SetDate(date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(ViewAppointments); err != nil {
		return err
	}
	s.date = dayStart(date, s.deps.Location)
	return nil
}

// SetProfessionalFilter narrows an administrative view to one professional or "all".
func (s *Session) SetProfessionalFilter(filter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(ViewAppointments); err != nil {
		return err
	}
	if !salon.IsAdministrative(s.actor) {
		return ErrNotPermitted
	}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return ErrInvalidFilter
	}
	s.filter = filter
	return nil
}

// SetStatus applies a status change optimistically. A store failure rolls the
// collection back and raises the alert.
func (s *Session) SetStatus(ctx context.Context, id string, status salon.Status, paymentMethod string) error {
	engine, err := s.engineFor(id)
	if err != nil {
		return err
	}

	err = engine.SetStatus(ctx, id, status, paymentMethod)
	if errors.Is(err, optimistic.ErrUpdateFailed) {
		s.mu.Lock()
		if s.engine == engine {
			s.alert = "could not update appointment " + id + "; the previous state was restored"
		}
		s.mu.Unlock()
	}
	return err
}

func (s *Session) engineFor(id string) (*optimistic.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(ViewAppointments); err != nil {
		return nil, err
	}
	if s.loading {
		return nil, ErrLoading
	}
	if p, ok := s.actor.(salon.Professional); ok {
		for _, a := range s.engine.Appointments() {
			if a.ID == id && a.Professional.ID != p.ID {
				return nil, ErrNotPermitted
			}
		}
	}
	return s.engine, nil
}

// OpenPaymentDialog starts payment capture for an appointment that can be
// completed or still owes payment.
func (s *Session) OpenPaymentDialog(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(ViewAppointments); err != nil {
		return err
	}
	if s.loading {
		return ErrLoading
	}
	for _, a := range s.engine.Appointments() {
		if a.ID != id {
			continue
		}
		if p, ok := s.actor.(salon.Professional); ok && a.Professional.ID != p.ID {
			return ErrNotPermitted
		}
		for _, act := range salon.ActionsFor(a) {
			if act == salon.ActionComplete || act == salon.ActionRegisterPayment {
				s.dialog = id
				return nil
			}
		}
		return fmt.Errorf("%w: %s -> paid", salon.ErrInvalidTransition, a.Status)
	}
	return fmt.Errorf("%w: %s", optimistic.ErrNotFound, id)
}

// ConfirmPayment resolves the chosen method and completes the appointment as paid.
// An empty "other" text keeps the dialog open.
func (s *Session) ConfirmPayment(ctx context.Context, choice, other string) error {
	s.mu.Lock()
	if err := s.requireLocked(ViewAppointments); err != nil {
		s.mu.Unlock()
		return err
	}
	id := s.dialog
	if id == "" {
		s.mu.Unlock()
		return ErrNoPaymentDialog
	}
	method, err := salon.ResolvePaymentMethod(choice, other)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.dialog = ""
	s.mu.Unlock()

	return s.SetStatus(ctx, id, salon.StatusCompleted, method)
}

func (s *Session) CancelPaymentDialog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialog = ""
}

func (s *Session) DismissAlert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = ""
}

// Actor returns the selected actor, or nil.
func (s *Session) Actor() salon.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor
}

// LoggedInAs reports whether the session is on the appointment view for actorID.
func (s *Session) LoggedInAs(actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && s.fetchErr == nil && s.view == ViewAppointments && s.actor != nil && s.actor.ActorID() == actorID
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touchLocked() {
	s.lastSeen = s.deps.Now()
}

// requireLocked checks the console is open, not pinned in the error view and,
// when want is set, showing want.
func (s *Session) requireLocked(want View) error {
	if !s.open {
		return ErrClosed
	}
	s.touchLocked()
	if s.fetchErr != nil {
		return ErrFetchFailed
	}
	if want != "" && s.view != want {
		return fmt.Errorf("%w: in %s, need %s", ErrWrongView, s.view, want)
	}
	return nil
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	start, _ := visibility.DayBounds(t, loc)
	return start
}
