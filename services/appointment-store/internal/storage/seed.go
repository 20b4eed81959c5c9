package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Appointments []seedAppointment `yaml:"appointments"`
}

type seedAppointment struct {
	ID               string    `yaml:"id"`
	StartsAt         time.Time `yaml:"starts_at"`
	ClientID         string    `yaml:"client_id"`
	ClientName       string    `yaml:"client_name"`
	ProfessionalID   string    `yaml:"professional_id"`
	ProfessionalName string    `yaml:"professional_name"`
	Service          string    `yaml:"service"`
	PriceCents       int64     `yaml:"price_cents"`
	Status           string    `yaml:"status"`
	PaymentStatus    string    `yaml:"payment_status"`
	PaymentMethod    string    `yaml:"payment_method"`
}

// LoadSeed reads demo appointments from a YAML file. A missing status means scheduled.
func LoadSeed(path string) ([]salon.Appointment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}

	out := make([]salon.Appointment, 0, len(f.Appointments))
	for i, s := range f.Appointments {
		if s.ID == "" || s.ProfessionalID == "" || s.StartsAt.IsZero() {
			return nil, fmt.Errorf("seed entry %d: id, professional_id and starts_at are required", i)
		}
		status := salon.StatusScheduled
		if s.Status != "" {
			if status, err = salon.ParseStatus(s.Status); err != nil {
				return nil, fmt.Errorf("seed entry %s: %w", s.ID, err)
			}
		}
		a := salon.Appointment{
			ID:            s.ID,
			Date:          s.StartsAt,
			Client:        salon.Party{ID: s.ClientID, Name: s.ClientName},
			Professional:  salon.Party{ID: s.ProfessionalID, Name: s.ProfessionalName},
			Service:       salon.Service{Name: s.Service, PriceCents: s.PriceCents},
			Status:        status,
			PaymentStatus: salon.PaymentStatus(s.PaymentStatus),
			PaymentMethod: s.PaymentMethod,
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %s: %w", s.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Seed upserts every appointment.
func (r *Repository) Seed(ctx context.Context, appts []salon.Appointment) error {
	for _, a := range appts {
		if err := r.Upsert(ctx, a); err != nil {
			return fmt.Errorf("seed %s: %w", a.ID, err)
		}
	}
	return nil
}
