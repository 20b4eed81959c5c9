package salon

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// PaymentStatus is meaningful only while an appointment is completed.
// The zero value means unset.
type PaymentStatus string

const (
	PaymentUnset   PaymentStatus = ""
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Party struct {
	ID   string
	Name string
}

type Service struct {
	Name       string
	PriceCents int64
}

type Appointment struct {
	ID            string
	Date          time.Time
	Client        Party
	Professional  Party
	Service       Service
	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod string
}

var (
	ErrUnknownStatus      = errors.New("unknown appointment status")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrPaidWithoutMethod  = errors.New("paid appointment requires a payment method")
	ErrMethodNotCompleted = errors.New("payment method set on appointment that is not completed")
)

// Validate checks the payment invariants of a single record.
func (a Appointment) Validate() error {
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, a.Status)
	}
	if a.PaymentStatus == PaymentPaid && strings.TrimSpace(a.PaymentMethod) == "" {
		return ErrPaidWithoutMethod
	}
	if a.Status != StatusCompleted && a.PaymentMethod != "" {
		return ErrMethodNotCompleted
	}
	return nil
}

// CanTransition reports whether from -> to is part of the appointment state machine.
// cancelled and no-show are terminal but may be re-applied, which keeps repeated
// submissions idempotent. completed may be re-applied to register a payment.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	switch from {
	case StatusScheduled:
		return to == StatusCompleted || to == StatusCancelled || to == StatusNoShow
	case StatusCompleted:
		return to == StatusScheduled || to == StatusCompleted
	case StatusCancelled, StatusNoShow:
		return to == from
	default:
		return false
	}
}

// ApplyStatus computes the record that results from moving a to status with an
// optional payment method. It does not check CanTransition.
func ApplyStatus(a Appointment, status Status, paymentMethod string) Appointment {
	next := a
	next.Status = status
	paymentMethod = strings.TrimSpace(paymentMethod)

	switch status {
	case StatusCompleted:
		if paymentMethod != "" {
			next.PaymentStatus = PaymentPaid
			next.PaymentMethod = paymentMethod
		} else if a.PaymentStatus != PaymentPaid {
			next.PaymentStatus = PaymentPending
		}
	case StatusScheduled:
		next.PaymentStatus = PaymentPending
		next.PaymentMethod = ""
	}
	return next
}

// Transition validates and applies a status change.
func Transition(a Appointment, status Status, paymentMethod string) (Appointment, error) {
	if !status.Valid() {
		return Appointment{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	if !CanTransition(a.Status, status) {
		return Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
	}
	if strings.TrimSpace(paymentMethod) != "" && status != StatusCompleted {
		return Appointment{}, ErrMethodNotCompleted
	}
	return ApplyStatus(a, status, paymentMethod), nil
}

// Clone returns a copy of the collection that shares no backing array with in.
func Clone(in []Appointment) []Appointment {
	if in == nil {
		return nil
	}
	out := make([]Appointment, len(in))
	copy(out, in)
	return out
}
