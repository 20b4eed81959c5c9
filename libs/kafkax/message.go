// Package kafkax holds the Kafka conventions shared by event producers.
package kafkax

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EventMessage builds a message keyed by aggregate id with the event id, event
// type and the W3C trace context of ctx as headers. The topic is the event type.
func EventMessage(ctx context.Context, eventID, eventType, key string, payload []byte) kafka.Message {
	h := headers{
		{Key: HeaderEventID, Value: []byte(eventID)},
		{Key: HeaderEventType, Value: []byte(eventType)},
	}
	otel.GetTextMapPropagator().Inject(ctx, &h)
	return kafka.Message{
		Topic:   eventType,
		Key:     []byte(key),
		Value:   payload,
		Headers: h,
	}
}

func HeaderValue(hs []kafka.Header, key string) string {
	return (*headers)(&hs).Get(key)
}

// headers adapts message headers to the propagation carrier interface.
type headers []kafka.Header

var _ propagation.TextMapCarrier = (*headers)(nil)

func (h *headers) Get(key string) string {
	for _, kv := range *h {
		if kv.Key == key {
			return string(kv.Value)
		}
	}
	return ""
}

func (h *headers) Set(key, value string) {
	for i := range *h {
		if (*h)[i].Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *headers) Keys() []string {
	keys := make([]string, len(*h))
	for i, kv := range *h {
		keys[i] = kv.Key
	}
	return keys
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewWriter returns a hash-balanced writer, so every event of one appointment
// lands on the same partition. Topics are created on first write.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
