package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/auth"
	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/console"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/credentials"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/roster"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	mu        sync.Mutex
	appts     []salon.Appointment
	updateErr error
}

func (f *fakeStore) FetchAll(context.Context) ([]salon.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return salon.Clone(f.appts), nil
}

func (f *fakeStore) UpdateStatus(context.Context, string, salon.Status, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateErr
}

func (f *fakeStore) failUpdates(err error) {
	f.mu.Lock()
	f.updateErr = err
	f.mu.Unlock()
}

var day = time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)

type testServer struct {
	srv   *httptest.Server
	store *fakeStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := &fakeStore{appts: []salon.Appointment{
		{ID: "a-9", Date: day.Add(9 * time.Hour), Professional: salon.Party{ID: "7"}, Service: salon.Service{Name: "Corte", PriceCents: 8000}, Status: salon.StatusScheduled},
		{ID: "a-10", Date: day.Add(10 * time.Hour), Professional: salon.Party{ID: "3"}, Service: salon.Service{Name: "Barba", PriceCents: 4000}, Status: salon.StatusScheduled},
	}}
	r, err := roster.New(
		[]salon.Professional{{ID: "7", Name: "Bia", Enabled: true}, {ID: "3", Name: "Caio", Enabled: true}},
		[]salon.Admin{{ID: "admin-1", Name: "Recepção"}},
		[]salon.SuperAdmin{{ID: "owner", Name: "Dona"}},
	)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return day.Add(12 * time.Hour) }
	creds := credentials.NewResolver(settings.NewMemoryStore(), logger, bcrypt.MinCost)
	sessions := console.NewManager(console.Deps{
		Store:  store,
		Auth:   creds,
		Roster: r,
		Logger: logger,
		Now:    now,
	})
	issuer, err := auth.NewIssuer("test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	h := NewConsoleHandler(sessions, r, creds, issuer, logger, time.UTC)
	h.now = now
	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 && res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (ts *testServer) openSession(t *testing.T) string {
	t.Helper()
	var st console.State
	code := ts.do(t, http.MethodPost, "/api/v1/console/sessions?wait=true", "", nil, &st)
	require.Equal(t, http.StatusCreated, code)
	require.False(t, st.Loading)
	return st.SessionID
}

func (ts *testServer) login(t *testing.T, sid, tab, actorID, password string) string {
	t.Helper()
	base := "/api/v1/console/sessions/" + sid
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/tab", "", map[string]string{"tab": tab}, nil))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/actor", "", map[string]string{"actor_id": actorID}, nil))
	var resp loginResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/login", "", map[string]string{"password": password}, &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRoster(t *testing.T) {
	ts := newTestServer(t)

	var resp rosterResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/console/roster?tab=admin", "", nil, &resp))
	require.Len(t, resp.Actors, 2)
	assert.Equal(t, "owner", resp.Actors[0].ID)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/console/roster?tab=guest", "", nil, nil))
}

func TestOpenSession_StartsOnRoleSelection(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)

	var st console.State
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/console/sessions/"+sid, "", nil, &st))
	assert.Equal(t, console.ViewSelectRole, st.View)
	assert.Equal(t, console.TabProfessional, st.Tab)
	assert.Len(t, st.Selectable, 2)
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/console/sessions/nope", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/v1/console/sessions/nope", "", nil, nil))
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)
	base := "/api/v1/console/sessions/" + sid

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/actor", "", map[string]string{"actor_id": "7"}, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, base+"/login", "", map[string]string{"password": "nope"}, nil))

	var st console.State
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base, "", nil, &st))
	assert.Equal(t, console.ViewLogin, st.View)
	assert.Equal(t, "wrong_password", st.LoginError)
}

func TestAdminFlow_StatusUpdate(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)
	base := "/api/v1/console/sessions/" + sid
	token := ts.login(t, sid, "admin", "owner", credentials.DefaultSuperAdminPassword)

	var st console.State
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/date", token, map[string]string{"date": "2025-10-15"}, &st))
	require.Len(t, st.Appointments, 2)
	assert.Equal(t, "a-9", st.Appointments[0].ID)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/appointments/a-9/status", token,
		map[string]string{"status": "completed", "payment_method": "Pix"}, &st))
	assert.Equal(t, salon.StatusCompleted, st.Appointments[0].Status)
	assert.Equal(t, salon.PaymentPaid, st.Appointments[0].PaymentStatus)
	assert.Equal(t, []salon.Action{salon.ActionRevert}, st.Appointments[0].Actions)

	ts.store.failUpdates(errors.New("store down"))
	assert.Equal(t, http.StatusBadGateway, ts.do(t, http.MethodPost, base+"/appointments/a-10/status", token,
		map[string]string{"status": "cancelled"}, nil))

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base, "", nil, &st))
	assert.NotEmpty(t, st.Alert)
	assert.Equal(t, salon.StatusScheduled, st.Appointments[1].Status)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, base+"/appointments/a-10/status", token,
		map[string]string{"status": "done"}, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, base+"/appointments/zz/status", token,
		map[string]string{"status": "cancelled"}, nil))
}

func TestPaymentDialog(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)
	base := "/api/v1/console/sessions/" + sid
	token := ts.login(t, sid, "admin", "admin-1", credentials.DefaultPassword)

	var st console.State
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/appointments/a-9/status", token,
		map[string]string{"status": "completed"}, &st))
	assert.Equal(t, salon.PaymentPending, st.Appointments[0].PaymentStatus)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/payment-dialog", token,
		map[string]string{"action": "confirm", "method": "Pix"}, nil))

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/payment-dialog", token,
		map[string]string{"action": "open", "appointment_id": "a-9"}, &st))
	require.NotNil(t, st.PaymentDialog)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, base+"/payment-dialog", token,
		map[string]string{"action": "confirm", "method": "other", "other": " "}, nil))

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/payment-dialog", token,
		map[string]string{"action": "confirm", "method": "other", "other": "Vale"}, &st))
	assert.Nil(t, st.PaymentDialog)
	assert.Equal(t, "Vale", st.Appointments[0].PaymentMethod)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, base+"/payment-dialog", token,
		map[string]string{"action": "archive"}, nil))
}

func TestProtectedRoutes_RequireMatchingToken(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)
	other := ts.openSession(t)
	token := ts.login(t, sid, "professional", "7", credentials.DefaultPassword)

	date := map[string]string{"date": "2025-10-15"}
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/v1/console/sessions/"+sid+"/date", "", date, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/v1/console/sessions/"+sid+"/date", "garbage", date, nil))
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/v1/console/sessions/"+other+"/date", token, date, nil))

	// Going back to login invalidates the token for protected routes.
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/console/sessions/"+sid+"/back", "", nil, nil))
	var st console.State
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/console/sessions/"+sid, "", nil, &st))
	require.Equal(t, console.ViewLogin, st.View)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/v1/console/sessions/"+sid+"/date", token, date, nil))
}

func TestProfessional_CannotFilterOrTouchOthers(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)
	base := "/api/v1/console/sessions/" + sid
	token := ts.login(t, sid, "professional", "7", credentials.DefaultPassword)

	var st console.State
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base, "", nil, &st))
	require.Len(t, st.Appointments, 1)
	assert.Equal(t, "a-9", st.Appointments[0].ID)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, base+"/filter", token, map[string]string{"professional_id": "3"}, nil))
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, base+"/appointments/a-10/status", token,
		map[string]string{"status": "cancelled"}, nil))
}

func TestPasswords(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)
	base := "/api/v1/console/sessions/" + sid
	token := ts.login(t, sid, "professional", "7", credentials.DefaultPassword)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, base+"/passwords", token,
		map[string]string{"actor_id": "7", "password": "nova-senha"}, nil))
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, base+"/passwords", token,
		map[string]string{"actor_id": "3", "password": "x"}, nil))
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, base+"/passwords", token,
		map[string]any{"master": true, "password": "x"}, nil))

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, base, "", nil, nil))

	sid = ts.openSession(t)
	ts.login(t, sid, "professional", "7", "nova-senha")
}

func TestResetMasterPassword_RequiresSuperAdmin(t *testing.T) {
	ts := newTestServer(t)
	confirm := map[string]bool{"confirm": true}

	sid := ts.openSession(t)
	ownerToken := ts.login(t, sid, "admin", "owner", credentials.DefaultSuperAdminPassword)
	reset := "/api/v1/console/sessions/" + sid + "/master-password/reset"
	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/api/v1/console/sessions/"+sid+"/passwords", ownerToken,
		map[string]any{"master": true, "password": "s3cret-master"}, nil))

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, reset, "", confirm, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/v1/console/master-password/reset", "", confirm, nil))

	adminSID := ts.openSession(t)
	adminToken := ts.login(t, adminSID, "admin", "admin-1", credentials.DefaultPassword)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost,
		"/api/v1/console/sessions/"+adminSID+"/master-password/reset", adminToken, confirm, nil))

	// The default master no longer unlocks anyone until a super admin resets it.
	fresh := ts.openSession(t)
	base := "/api/v1/console/sessions/" + fresh
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/actor", "", map[string]string{"actor_id": "7"}, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, base+"/login", "",
		map[string]string{"password": credentials.DefaultMasterPassword}, nil))

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, reset, ownerToken, map[string]bool{"confirm": false}, nil))
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, reset, ownerToken, confirm, nil))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/login", "",
		map[string]string{"password": credentials.DefaultMasterPassword}, nil))
}

func TestPasswords_AdminCannotTakeOverSuperAdmin(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.openSession(t)
	token := ts.login(t, sid, "admin", "admin-1", credentials.DefaultPassword)
	passwords := "/api/v1/console/sessions/" + sid + "/passwords"

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, passwords, token,
		map[string]string{"actor_id": "owner", "password": "pwned"}, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, passwords, token,
		map[string]string{"actor_id": "ghost", "password": "x"}, nil))
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, passwords, token,
		map[string]string{"actor_id": "7", "password": "tesoura"}, nil))

	other := ts.openSession(t)
	base := "/api/v1/console/sessions/" + other
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/tab", "", map[string]string{"tab": "admin"}, nil))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/actor", "", map[string]string{"actor_id": "owner"}, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, base+"/login", "", map[string]string{"password": "pwned"}, nil))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/login", "",
		map[string]string{"password": credentials.DefaultSuperAdminPassword}, nil))
}
