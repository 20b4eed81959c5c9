package storage

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonconsole/libs/db"
	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/libs/storewire"
	"github.com/md-rashed-zaman/salonconsole/services/appointment-store/internal/outbox"
)

//go:embed schema.sql
var schema string

// Repository is the Postgres system of record for appointments.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
	now    func() time.Time
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo, now: time.Now}
}

// Migrate applies the idempotent schema.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

const selectColumns = `
	SELECT id, starts_at, client_id, client_name, professional_id, professional_name,
		service_name, service_price_cents, status, payment_status, payment_method
	FROM appointments`

func (r *Repository) FetchAll(ctx context.Context) ([]salon.Appointment, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` ORDER BY starts_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []salon.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// UpdateStatus re-validates the transition against the locked row, then writes
// the new status and a status_changed outbox event in the same transaction.
// Re-applying the current state is a no-op without an event.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status salon.Status, paymentMethod string) (salon.Appointment, error) {
	var updated salon.Appointment
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id))
		if db.IsNotFound(err) {
			return fmt.Errorf("%w: %s", storewire.ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		next, err := salon.Transition(current, status, paymentMethod)
		if err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		updated = next
		if sameState(current, next) {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2, payment_status = $3, payment_method = $4, updated_at = now()
			WHERE id = $1
		`, id, string(next.Status), string(next.PaymentStatus), next.PaymentMethod); err != nil {
			return err
		}

		evt, err := outbox.NewStatusChanged(current, next, r.now())
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return salon.Appointment{}, err
	}
	return updated, nil
}

// Upsert inserts or replaces an appointment, used for seeding.
func (r *Repository) Upsert(ctx context.Context, a salon.Appointment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, starts_at, client_id, client_name, professional_id, professional_name,
			 service_name, service_price_cents, status, payment_status, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			starts_at = EXCLUDED.starts_at,
			client_id = EXCLUDED.client_id,
			client_name = EXCLUDED.client_name,
			professional_id = EXCLUDED.professional_id,
			professional_name = EXCLUDED.professional_name,
			service_name = EXCLUDED.service_name,
			service_price_cents = EXCLUDED.service_price_cents,
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			payment_method = EXCLUDED.payment_method,
			updated_at = now()
	`, a.ID, a.Date, a.Client.ID, a.Client.Name, a.Professional.ID, a.Professional.Name,
		a.Service.Name, a.Service.PriceCents, string(a.Status), string(a.PaymentStatus), a.PaymentMethod)
	return err
}

func sameState(a, b salon.Appointment) bool {
	return a.Status == b.Status && a.PaymentStatus == b.PaymentStatus && a.PaymentMethod == b.PaymentMethod
}

func scanAppointment(row pgx.Row) (salon.Appointment, error) {
	var (
		a             salon.Appointment
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&a.ID,
		&a.Date,
		&a.Client.ID,
		&a.Client.Name,
		&a.Professional.ID,
		&a.Professional.Name,
		&a.Service.Name,
		&a.Service.PriceCents,
		&status,
		&paymentStatus,
		&a.PaymentMethod,
	)
	if err != nil {
		return salon.Appointment{}, err
	}
	a.Status = salon.Status(status)
	a.PaymentStatus = salon.PaymentStatus(paymentStatus)
	return a, nil
}
