// Package storewire is the gRPC contract of the appointment store. Messages are
// google.protobuf.Struct values so the service needs no generated stubs.
package storewire

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName        = "salon.appointments.v1.AppointmentStore"
	FetchAllMethod     = "/" + ServiceName + "/FetchAll"
	UpdateStatusMethod = "/" + ServiceName + "/UpdateStatus"
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrInvalidArgument = errors.New("invalid store request")
	ErrUnavailable     = errors.New("appointment store unavailable")
)

// Store is implemented by the system of record.
type Store interface {
	FetchAll(ctx context.Context) ([]salon.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status salon.Status, paymentMethod string) (salon.Appointment, error)
}

// Register exposes impl on s under ServiceName.
func Register(s grpc.ServiceRegistrar, impl Store) {
	s.RegisterService(&serviceDesc, impl)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Store)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchAll", Handler: fetchAllHandler},
		{MethodName: "UpdateStatus", Handler: updateStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salon/appointments/v1/store.proto",
}

func fetchAllHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, _ any) (any, error) {
		appts, err := srv.(Store).FetchAll(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := encodeList(appts)
		if err != nil {
			return nil, status.Error(codes.Internal, "encode appointments")
		}
		return out, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: FetchAllMethod}, call)
}

func updateStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		r := decodeUpdate(req.(*structpb.Struct))
		if r.ID == "" {
			return nil, status.Error(codes.InvalidArgument, "id is required")
		}
		updated, err := srv.(Store).UpdateStatus(ctx, r.ID, r.Status, r.PaymentMethod)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := structpb.NewStruct(map[string]any{"appointment": encodeAppointment(updated)})
		if err != nil {
			return nil, status.Error(codes.Internal, "encode appointment")
		}
		return out, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: UpdateStatusMethod}, call)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, salon.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, salon.ErrUnknownStatus),
		errors.Is(err, salon.ErrMethodNotCompleted),
		errors.Is(err, salon.ErrPaidWithoutMethod),
		errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
