package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/auth"
	"github.com/md-rashed-zaman/salonconsole/libs/httpx"
	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/libs/storewire"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/console"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/credentials"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/optimistic"
)

// PasswordAdmin is the credential administration used by the console API.
type PasswordAdmin interface {
	ResetMasterPassword(ctx context.Context, confirmed bool) error
	SetMasterPassword(ctx context.Context, by salon.Actor, password string) error
	SetActorPassword(ctx context.Context, by, target salon.Actor, password string) error
}

// Staff is the roster view the API needs: the tab listings plus lookup by id.
type Staff interface {
	console.Directory
	Lookup(id string) (salon.Actor, bool)
}

type ConsoleHandler struct {
	sessions *console.Manager
	roster   Staff
	creds    PasswordAdmin
	tokens   *auth.Issuer
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewConsoleHandler(sessions *console.Manager, roster Staff, creds PasswordAdmin, tokens *auth.Issuer, logger *slog.Logger, loc *time.Location) *ConsoleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ConsoleHandler{
		sessions: sessions,
		roster:   roster,
		creds:    creds,
		tokens:   tokens,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

func (h *ConsoleHandler) Register(mux *http.ServeMux) {
	const base = "/api/v1/console"
	mux.HandleFunc("GET "+base+"/roster", h.Roster)

	mux.HandleFunc("POST "+base+"/sessions", h.OpenSession)
	mux.HandleFunc("GET "+base+"/sessions/{id}", h.withSession(h.GetSession))
	mux.HandleFunc("DELETE "+base+"/sessions/{id}", h.CloseSession)
	mux.HandleFunc("POST "+base+"/sessions/{id}/tab", h.withSession(h.SelectTab))
	mux.HandleFunc("POST "+base+"/sessions/{id}/actor", h.withSession(h.SelectActor))
	mux.HandleFunc("POST "+base+"/sessions/{id}/login", h.withSession(h.Login))
	mux.HandleFunc("POST "+base+"/sessions/{id}/back", h.withSession(h.Back))

	mux.HandleFunc("POST "+base+"/sessions/{id}/date", h.withActor(h.SetDate))
	mux.HandleFunc("POST "+base+"/sessions/{id}/filter", h.withActor(h.SetFilter))
	mux.HandleFunc("POST "+base+"/sessions/{id}/appointments/{appointment_id}/status", h.withActor(h.SetStatus))
	mux.HandleFunc("POST "+base+"/sessions/{id}/payment-dialog", h.withActor(h.PaymentDialog))
	mux.HandleFunc("POST "+base+"/sessions/{id}/alert/dismiss", h.withActor(h.DismissAlert))
	mux.HandleFunc("POST "+base+"/sessions/{id}/passwords", h.withActor(h.SetPassword))
	mux.HandleFunc("POST "+base+"/sessions/{id}/master-password/reset", h.withActor(h.ResetMasterPassword))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *console.Session)

func (h *ConsoleHandler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Get(r.PathValue("id"))
		if err != nil {
			h.writeErr(w, err)
			return
		}
		next(w, r, s)
	}
}

// withActor additionally requires a bearer token minted for this session and
// for the actor currently logged into it.
func (h *ConsoleHandler) withActor(next sessionHandler) http.HandlerFunc {
	return h.withSession(func(w http.ResponseWriter, r *http.Request, s *console.Session) {
		token, ok := httpx.BearerToken(r)
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.tokens.Verify(token, h.now())
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Session != s.ID() || !s.LoggedInAs(claims.Sub) {
			httpx.WriteError(w, http.StatusForbidden, "token does not match the console session")
			return
		}
		next(w, r, s)
	})
}

type rosterResponse struct {
	Tab    console.Tab         `json:"tab"`
	Actors []console.ActorInfo `json:"actors"`
}

func (h *ConsoleHandler) Roster(w http.ResponseWriter, r *http.Request) {
	tab := console.TabProfessional
	if raw := r.URL.Query().Get("tab"); raw != "" {
		parsed, err := console.ParseTab(raw)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		tab = parsed
	}
	actors := h.roster.Professionals()
	if tab == console.TabAdmin {
		actors = h.roster.Administrators()
	}
	resp := rosterResponse{Tab: tab, Actors: make([]console.ActorInfo, 0, len(actors))}
	for _, a := range actors {
		resp.Actors = append(resp.Actors, console.NewActorInfo(a))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// OpenSession opens a console. With ?wait=true the response is held until the
// initial fetch settles.
func (h *ConsoleHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	s, done := h.sessions.Open(r.Context())
	if r.URL.Query().Get("wait") == "true" {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}
	httpx.WriteJSON(w, http.StatusCreated, s.State())
}

func (h *ConsoleHandler) GetSession(w http.ResponseWriter, _ *http.Request, s *console.Session) {
	httpx.WriteJSON(w, http.StatusOK, s.State())
}

func (h *ConsoleHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.PathValue("id")); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tabRequest struct {
	Tab string `json:"tab"`
}

func (h *ConsoleHandler) SelectTab(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req tabRequest
	if !h.decode(w, r, &req) {
		return
	}
	tab, err := console.ParseTab(req.Tab)
	if err == nil {
		err = s.SelectTab(tab)
	}
	h.respond(w, s, err)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *ConsoleHandler) SelectActor(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req actorRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, s, s.SelectActor(strings.TrimSpace(req.ActorID)))
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	State       console.State `json:"state"`
}

func (h *ConsoleHandler) Login(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, err := s.Login(r.Context(), req.Password)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	token, exp, err := h.tokens.Issue(s.ID(), actor.ActorID(), string(actor.AccessLevel()), h.now())
	if err != nil {
		h.logger.Error("token issue failed", "err", err, "session_id", s.ID())
		httpx.WriteError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		State:       s.State(),
	})
}

func (h *ConsoleHandler) Back(w http.ResponseWriter, _ *http.Request, s *console.Session) {
	h.respond(w, s, s.Back())
}

type dateRequest struct {
	Date string `json:"date"`
}

func (h *ConsoleHandler) SetDate(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req dateRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.Date), h.loc)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	h.respond(w, s, s.SetDate(date))
}

type filterRequest struct {
	ProfessionalID string `json:"professional_id"`
}

func (h *ConsoleHandler) SetFilter(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req filterRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, s, s.SetProfessionalFilter(req.ProfessionalID))
}

type statusRequest struct {
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
}

func (h *ConsoleHandler) SetStatus(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := salon.ParseStatus(req.Status)
	if err == nil {
		err = s.SetStatus(r.Context(), r.PathValue("appointment_id"), status, req.PaymentMethod)
	}
	h.respond(w, s, err)
}

type paymentDialogRequest struct {
	Action        string `json:"action"`
	AppointmentID string `json:"appointment_id"`
	Method        string `json:"method"`
	Other         string `json:"other"`
}

func (h *ConsoleHandler) PaymentDialog(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req paymentDialogRequest
	if !h.decode(w, r, &req) {
		return
	}
	var err error
	switch req.Action {
	case "open":
		err = s.OpenPaymentDialog(req.AppointmentID)
	case "confirm":
		err = s.ConfirmPayment(r.Context(), req.Method, req.Other)
	case "cancel":
		s.CancelPaymentDialog()
	default:
		httpx.WriteError(w, http.StatusBadRequest, "action must be open, confirm or cancel")
		return
	}
	h.respond(w, s, err)
}

func (h *ConsoleHandler) DismissAlert(w http.ResponseWriter, _ *http.Request, s *console.Session) {
	s.DismissAlert()
	h.respond(w, s, nil)
}

type passwordRequest struct {
	ActorID  string `json:"actor_id"`
	Master   bool   `json:"master"`
	Password string `json:"password"`
}

func (h *ConsoleHandler) SetPassword(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req passwordRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := s.Actor()
	if actor == nil {
		httpx.WriteError(w, http.StatusConflict, "no actor logged in")
		return
	}
	var err error
	if req.Master {
		err = h.creds.SetMasterPassword(r.Context(), actor, req.Password)
	} else {
		target, ok := h.roster.Lookup(strings.TrimSpace(req.ActorID))
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, "actor not found")
			return
		}
		err = h.creds.SetActorPassword(r.Context(), actor, target, req.Password)
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// ResetMasterPassword restores the default master password. Over HTTP only a
// logged-in super admin may do it; operators without a login use salonctl.
func (h *ConsoleHandler) ResetMasterPassword(w http.ResponseWriter, r *http.Request, s *console.Session) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, ok := s.Actor().(salon.SuperAdmin); !ok {
		h.writeErr(w, credentials.ErrNotPermitted)
		return
	}
	if err := h.creds.ResetMasterPassword(r.Context(), req.Confirm); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConsoleHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (h *ConsoleHandler) respond(w http.ResponseWriter, s *console.Session, err error) {
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.State())
}

func (h *ConsoleHandler) writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("console request failed", "err", err)
		msg = "internal error"
	}
	httpx.WriteError(w, code, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, console.ErrSessionNotFound),
		errors.Is(err, optimistic.ErrNotFound),
		errors.Is(err, storewire.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, credentials.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, console.ErrNotPermitted),
		errors.Is(err, credentials.ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, optimistic.ErrUpdateFailed):
		return http.StatusBadGateway
	case errors.Is(err, console.ErrWrongView),
		errors.Is(err, console.ErrClosed),
		errors.Is(err, console.ErrFetchFailed),
		errors.Is(err, console.ErrLoading),
		errors.Is(err, console.ErrStale),
		errors.Is(err, console.ErrNoPaymentDialog),
		errors.Is(err, optimistic.ErrUpdateInFlight),
		errors.Is(err, optimistic.ErrClosed),
		errors.Is(err, salon.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, console.ErrUnknownTab),
		errors.Is(err, console.ErrActorNotSelectable),
		errors.Is(err, console.ErrInvalidFilter),
		errors.Is(err, salon.ErrUnknownStatus),
		errors.Is(err, salon.ErrMethodNotCompleted),
		errors.Is(err, salon.ErrEmptyOtherMethod),
		errors.Is(err, salon.ErrUnknownPaymentType),
		errors.Is(err, credentials.ErrEmptyPassword),
		errors.Is(err, credentials.ErrResetNotConfirmed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
