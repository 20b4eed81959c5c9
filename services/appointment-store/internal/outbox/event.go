package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonconsole/libs/salon"
)

// TopicStatusChanged is both the event type and the Kafka topic.
const TopicStatusChanged = "store.appointment.status_changed.v1"

// Event is the envelope written to outbox_events.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type StatusChanged struct {
	AppointmentID  string    `json:"appointment_id"`
	ClientID       string    `json:"client_id"`
	ProfessionalID string    `json:"professional_id"`
	StartsAt       time.Time `json:"starts_at"`
	PreviousStatus string    `json:"previous_status"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status,omitempty"`
	PaymentMethod  string    `json:"payment_method,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}

func NewStatusChanged(prev, next salon.Appointment, at time.Time) (Event, error) {
	payload, err := json.Marshal(StatusChanged{
		AppointmentID:  next.ID,
		ClientID:       next.Client.ID,
		ProfessionalID: next.Professional.ID,
		StartsAt:       next.Date.UTC(),
		PreviousStatus: string(prev.Status),
		Status:         string(next.Status),
		PaymentStatus:  string(next.PaymentStatus),
		PaymentMethod:  next.PaymentMethod,
		ChangedAt:      at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: "appointment",
		AggregateID:   next.ID,
		EventType:     TopicStatusChanged,
		Payload:       payload,
	}, nil
}
