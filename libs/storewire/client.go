package storewire

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote Store over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) FetchAll(ctx context.Context) ([]salon.Appointment, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FetchAllMethod, &structpb.Struct{}, out); err != nil {
		return nil, fromStatus(err)
	}
	return decodeList(out)
}

func (c *Client) UpdateStatus(ctx context.Context, id string, st salon.Status, paymentMethod string) (salon.Appointment, error) {
	in, err := encodeUpdate(updateRequest{ID: id, Status: st, PaymentMethod: paymentMethod})
	if err != nil {
		return salon.Appointment{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, UpdateStatusMethod, in, out); err != nil {
		return salon.Appointment{}, fromStatus(err)
	}
	return decodeAppointment(out.GetFields()["appointment"].GetStructValue())
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", salon.ErrInvalidTransition, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrUnavailable, context.DeadlineExceeded)
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("store: %s", st.Message())
	}
}
