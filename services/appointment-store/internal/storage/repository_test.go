package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/db"
	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/libs/storewire"
	"github.com/md-rashed-zaman/salonconsole/services/appointment-store/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *int64:
			*p = r.values[i].(int64)
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

func TestScanAppointment(t *testing.T) {
	at := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
	a, err := scanAppointment(fakeRow{values: []any{
		"a-1", at, "c-1", "Ana", "7", "Bia", "Corte", int64(8000), "completed", "paid", "Pix",
	}})
	require.NoError(t, err)
	assert.Equal(t, salon.StatusCompleted, a.Status)
	assert.Equal(t, salon.PaymentPaid, a.PaymentStatus)
	assert.Equal(t, "Pix", a.PaymentMethod)
	assert.Equal(t, salon.Party{ID: "7", Name: "Bia"}, a.Professional)
	assert.Equal(t, int64(8000), a.Service.PriceCents)

	_, err = scanAppointment(fakeRow{err: errors.New("boom")})
	require.Error(t, err)
}

func TestSameState(t *testing.T) {
	a := salon.Appointment{ID: "a-1", Status: salon.StatusCancelled}
	assert.True(t, sameState(a, salon.ApplyStatus(a, salon.StatusCancelled, "")))
	assert.False(t, sameState(a, salon.ApplyStatus(salon.Appointment{Status: salon.StatusScheduled}, salon.StatusCompleted, "")))
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
appointments:
  - id: a-1
    starts_at: 2025-10-15T09:00:00Z
    client_id: c-1
    client_name: Ana
    professional_id: "7"
    professional_name: Bia
    service: Corte
    price_cents: 8000
  - id: a-2
    starts_at: 2025-10-15T11:00:00Z
    client_id: c-2
    professional_id: "8"
    status: completed
    payment_status: paid
    payment_method: Dinheiro
`), 0o600))

	appts, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, salon.StatusScheduled, appts[0].Status)
	assert.Equal(t, "7", appts[0].Professional.ID)
	assert.Equal(t, salon.PaymentPaid, appts[1].PaymentStatus)
}

func TestLoadSeed_RejectsPaidWithoutMethod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
appointments:
  - id: a-1
    starts_at: 2025-10-15T09:00:00Z
    professional_id: "7"
    status: completed
    payment_status: paid
`), 0o600))

	_, err := LoadSeed(path)
	require.ErrorIs(t, err, salon.ErrPaidWithoutMethod)
}

// TestRepository_Postgres runs against a disposable database named by TEST_DATABASE_URL.
func TestRepository_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, db.Options{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewRepository(pool, outbox.NewRepository())
	require.NoError(t, repo.Migrate(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE appointments, outbox_events`)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, salon.Appointment{
		ID:           "pg-1",
		Date:         time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC),
		Client:       salon.Party{ID: "c-1", Name: "Ana"},
		Professional: salon.Party{ID: "7", Name: "Bia"},
		Service:      salon.Service{Name: "Corte", PriceCents: 8000},
		Status:       salon.StatusScheduled,
	}))

	got, err := repo.UpdateStatus(ctx, "pg-1", salon.StatusCompleted, salon.MethodPix)
	require.NoError(t, err)
	assert.Equal(t, salon.PaymentPaid, got.PaymentStatus)

	_, err = repo.UpdateStatus(ctx, "pg-1", salon.StatusNoShow, "")
	require.ErrorIs(t, err, salon.ErrInvalidTransition)

	_, err = repo.UpdateStatus(ctx, "missing", salon.StatusCancelled, "")
	require.ErrorIs(t, err, storewire.ErrNotFound)

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, salon.MethodPix, all[0].PaymentMethod)

	var events int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox_events WHERE aggregate_id = 'pg-1'`).Scan(&events))
	assert.Equal(t, 1, events)
}
