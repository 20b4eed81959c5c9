package storewire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type memStore struct {
	appts map[string]salon.Appointment
	order []string
	fail  error
}

func (s *memStore) FetchAll(context.Context) ([]salon.Appointment, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]salon.Appointment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.appts[id])
	}
	return out, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, st salon.Status, method string) (salon.Appointment, error) {
	a, ok := s.appts[id]
	if !ok {
		return salon.Appointment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next, err := salon.Transition(a, st, method)
	if err != nil {
		return salon.Appointment{}, err
	}
	s.appts[id] = next
	return next, nil
}

func startStore(t *testing.T, store Store) *Client {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	Register(srv, store)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func seeded() *memStore {
	a := salon.Appointment{
		ID:            "a-1",
		Date:          time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC),
		Client:        salon.Party{ID: "c-1", Name: "Ana"},
		Professional:  salon.Party{ID: "7", Name: "Bia"},
		Service:       salon.Service{Name: "Corte", PriceCents: 8000},
		Status:        salon.StatusScheduled,
		PaymentStatus: salon.PaymentPending,
	}
	b := a
	b.ID = "a-2"
	b.Status = salon.StatusCompleted
	b.PaymentStatus = salon.PaymentPaid
	b.PaymentMethod = salon.MethodCreditCard
	return &memStore{
		appts: map[string]salon.Appointment{"a-1": a, "a-2": b},
		order: []string{"a-1", "a-2"},
	}
}

func ctxTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetchAll_CarriesEveryField(t *testing.T) {
	store := seeded()
	client := startStore(t, store)

	got, err := client.FetchAll(ctxTimeout(t))
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := store.appts["a-2"]
	assert.Equal(t, want.ID, got[1].ID)
	assert.True(t, want.Date.Equal(got[1].Date))
	assert.Equal(t, want.Client, got[1].Client)
	assert.Equal(t, want.Professional, got[1].Professional)
	assert.Equal(t, want.Service, got[1].Service)
	assert.Equal(t, salon.StatusCompleted, got[1].Status)
	assert.Equal(t, salon.PaymentPaid, got[1].PaymentStatus)
	assert.Equal(t, salon.MethodCreditCard, got[1].PaymentMethod)
}

func TestFetchAll_EmptyCollection(t *testing.T) {
	client := startStore(t, &memStore{})

	got, err := client.FetchAll(ctxTimeout(t))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchAll_InternalErrorIsOpaque(t *testing.T) {
	client := startStore(t, &memStore{fail: errors.New("connection refused to 10.0.0.5")})

	_, err := client.FetchAll(ctxTimeout(t))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "10.0.0.5")
}

func TestUpdateStatus_CompleteWithPix(t *testing.T) {
	client := startStore(t, seeded())

	got, err := client.UpdateStatus(ctxTimeout(t), "a-1", salon.StatusCompleted, salon.MethodPix)
	require.NoError(t, err)
	assert.Equal(t, salon.StatusCompleted, got.Status)
	assert.Equal(t, salon.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, salon.MethodPix, got.PaymentMethod)
}

func TestUpdateStatus_ErrorMapping(t *testing.T) {
	client := startStore(t, seeded())

	_, err := client.UpdateStatus(ctxTimeout(t), "missing", salon.StatusCancelled, "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = client.UpdateStatus(ctxTimeout(t), "a-2", salon.StatusNoShow, "")
	require.ErrorIs(t, err, salon.ErrInvalidTransition)

	_, err = client.UpdateStatus(ctxTimeout(t), "a-1", salon.Status("archived"), "")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = client.UpdateStatus(ctxTimeout(t), "", salon.StatusCancelled, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}
