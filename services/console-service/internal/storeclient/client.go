// Package storeclient is the console's view of the remote appointment store.
package storeclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/grpcx"
	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/libs/storewire"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
)

// Client is the store contract. Both calls either succeed entirely or fail.
type Client interface {
	FetchAll(ctx context.Context) ([]salon.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status salon.Status, paymentMethod string) error
}

const DefaultTimeout = 10 * time.Second

// GRPCClient bounds every call with a deadline and does not retry.
type GRPCClient struct {
	wire    *storewire.Client
	conn    *grpc.ClientConn
	timeout time.Duration
}

func Dial(addr string, timeout time.Duration, logger *slog.Logger) (*GRPCClient, error) {
	conn, err := grpcx.NewClient(addr, logger)
	if err != nil {
		return nil, fmt.Errorf("store client %s: %w", addr, err)
	}
	c := New(conn, timeout)
	c.conn = conn
	return c, nil
}

func New(conn grpc.ClientConnInterface, timeout time.Duration) *GRPCClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GRPCClient{wire: storewire.NewClient(conn), timeout: timeout}
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

var tracer = otel.Tracer("github.com/md-rashed-zaman/salonconsole/services/console-service/internal/storeclient")

func (c *GRPCClient) FetchAll(ctx context.Context) ([]salon.Appointment, error) {
	ctx, span := tracer.Start(ctx, "store.FetchAll")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	appts, err := c.wire.FetchAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("appointments.count", len(appts)))
	return appts, nil
}

func (c *GRPCClient) UpdateStatus(ctx context.Context, id string, status salon.Status, paymentMethod string) error {
	ctx, span := tracer.Start(ctx, "store.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", id),
		attribute.String("appointment.status", string(status)),
	)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.wire.UpdateStatus(ctx, id, status, paymentMethod); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return nil
}
