package salon

import (
	"errors"
	"strings"
)

// Action is a per-row operation offered by the console.
type Action string

const (
	ActionComplete        Action = "complete"
	ActionNoShow          Action = "no_show"
	ActionCancel          Action = "cancel"
	ActionRegisterPayment Action = "register_payment"
	ActionRevert          Action = "revert"
)

// ActionsFor lists the actions available for a record in its current state.
func ActionsFor(a Appointment) []Action {
	switch a.Status {
	case StatusScheduled:
		return []Action{ActionComplete, ActionNoShow, ActionCancel}
	case StatusCompleted:
		if a.PaymentStatus == PaymentPaid {
			return []Action{ActionRevert}
		}
		return []Action{ActionRegisterPayment, ActionRevert}
	default:
		return nil
	}
}

// TargetStatus maps an action to the status it requests.
func (a Action) TargetStatus() (Status, bool) {
	switch a {
	case ActionComplete, ActionRegisterPayment:
		return StatusCompleted, true
	case ActionNoShow:
		return StatusNoShow, true
	case ActionCancel:
		return StatusCancelled, true
	case ActionRevert:
		return StatusScheduled, true
	default:
		return "", false
	}
}

// Fixed payment methods offered by the payment dialog.
const (
	MethodPix         = "Pix"
	MethodCreditCard  = "Cartão de Crédito"
	MethodDebitCard   = "Cartão de Débito"
	MethodCash        = "Dinheiro"
	MethodOtherChoice = "other"
)

var PaymentMethods = []string{MethodPix, MethodCreditCard, MethodDebitCard, MethodCash}

var (
	ErrEmptyOtherMethod   = errors.New("other payment method requires a description")
	ErrUnknownPaymentType = errors.New("unknown payment method")
)

// ResolvePaymentMethod turns a dialog choice into the stored method label.
// Choosing "other" requires non-empty free text.
func ResolvePaymentMethod(choice, other string) (string, error) {
	choice = strings.TrimSpace(choice)
	if choice == MethodOtherChoice {
		other = strings.TrimSpace(other)
		if other == "" {
			return "", ErrEmptyOtherMethod
		}
		return other, nil
	}
	for _, m := range PaymentMethods {
		if m == choice {
			return m, nil
		}
	}
	return "", ErrUnknownPaymentType
}
