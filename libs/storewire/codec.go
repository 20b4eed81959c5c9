package storewire

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrMalformed = errors.New("malformed store message")

func encodeAppointment(a salon.Appointment) map[string]any {
	return map[string]any{
		"id":   a.ID,
		"date": a.Date.UTC().Format(time.RFC3339Nano),
		"client": map[string]any{
			"id":   a.Client.ID,
			"name": a.Client.Name,
		},
		"professional": map[string]any{
			"id":   a.Professional.ID,
			"name": a.Professional.Name,
		},
		"service": map[string]any{
			"name":        a.Service.Name,
			"price_cents": float64(a.Service.PriceCents),
		},
		"status":         string(a.Status),
		"payment_status": string(a.PaymentStatus),
		"payment_method": a.PaymentMethod,
	}
}

func decodeAppointment(s *structpb.Struct) (salon.Appointment, error) {
	f := s.GetFields()
	id := f["id"].GetStringValue()
	if id == "" {
		return salon.Appointment{}, fmt.Errorf("%w: appointment without id", ErrMalformed)
	}
	date, err := time.Parse(time.RFC3339Nano, f["date"].GetStringValue())
	if err != nil {
		return salon.Appointment{}, fmt.Errorf("%w: appointment %s date: %v", ErrMalformed, id, err)
	}
	status, err := salon.ParseStatus(f["status"].GetStringValue())
	if err != nil {
		return salon.Appointment{}, fmt.Errorf("%w: appointment %s: %v", ErrMalformed, id, err)
	}

	client := f["client"].GetStructValue().GetFields()
	pro := f["professional"].GetStructValue().GetFields()
	svc := f["service"].GetStructValue().GetFields()
	a := salon.Appointment{
		ID:            id,
		Date:          date,
		Client:        salon.Party{ID: client["id"].GetStringValue(), Name: client["name"].GetStringValue()},
		Professional:  salon.Party{ID: pro["id"].GetStringValue(), Name: pro["name"].GetStringValue()},
		Service:       salon.Service{Name: svc["name"].GetStringValue(), PriceCents: int64(svc["price_cents"].GetNumberValue())},
		Status:        status,
		PaymentStatus: salon.PaymentStatus(f["payment_status"].GetStringValue()),
		PaymentMethod: f["payment_method"].GetStringValue(),
	}
	switch a.PaymentStatus {
	case salon.PaymentUnset, salon.PaymentPending, salon.PaymentPaid:
	default:
		return salon.Appointment{}, fmt.Errorf("%w: appointment %s: unknown payment status %q", ErrMalformed, id, a.PaymentStatus)
	}
	if err := a.Validate(); err != nil {
		return salon.Appointment{}, fmt.Errorf("%w: appointment %s: %w", ErrMalformed, id, err)
	}
	return a, nil
}

func encodeList(appts []salon.Appointment) (*structpb.Struct, error) {
	items := make([]any, 0, len(appts))
	for _, a := range appts {
		items = append(items, encodeAppointment(a))
	}
	return structpb.NewStruct(map[string]any{"appointments": items})
}

func decodeList(s *structpb.Struct) ([]salon.Appointment, error) {
	values := s.GetFields()["appointments"].GetListValue().GetValues()
	out := make([]salon.Appointment, 0, len(values))
	for _, v := range values {
		a, err := decodeAppointment(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

type updateRequest struct {
	ID            string
	Status        salon.Status
	PaymentMethod string
}

func encodeUpdate(r updateRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":             r.ID,
		"status":         string(r.Status),
		"payment_method": r.PaymentMethod,
	})
}

func decodeUpdate(s *structpb.Struct) updateRequest {
	f := s.GetFields()
	return updateRequest{
		ID:            f["id"].GetStringValue(),
		Status:        salon.Status(f["status"].GetStringValue()),
		PaymentMethod: f["payment_method"].GetStringValue(),
	}
}
