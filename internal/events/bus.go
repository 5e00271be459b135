// Package events carries login outcomes to whoever wants to observe them.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler processes a message received from a topic.
type Handler func(ctx context.Context, msg *message.Message) error

// Bus is an in-process publish/subscribe bus backed by watermill's GoChannel.
type Bus struct {
	pub        message.Publisher
	sub        message.Subscriber
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithTracer traces every publish and every handled message.
func WithTracer(t trace.Tracer) BusOption {
	return func(b *Bus) { b.tracer = t }
}

// NewBus creates an in-memory bus.
func NewBus(opts ...BusOption) *Bus {
	logger := watermill.NewStdLogger(false, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		logger,
	)
	b := &Bus{
		pub:        goChannel,
		sub:        goChannel,
		tracer:     noop.NewTracerProvider().Tracer("events"),
		propagator: propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func spanAttributes(operation, topic string, msg *message.Message) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("messaging.system", "watermill"),
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.destination", topic),
		attribute.String("messaging.message_id", msg.UUID),
		attribute.Int("messaging.message_payload_size_bytes", len(msg.Payload)),
	)
}

// Publish sends payload on topic. The span context of ctx travels in the
// message metadata so handlers continue the same trace.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte, metadata map[string]string) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}

	ctx, span := b.tracer.Start(ctx, fmt.Sprintf("events.publish.%s", topic),
		trace.WithSpanKind(trace.SpanKindProducer), spanAttributes("publish", topic, msg))
	defer span.End()

	b.propagator.Inject(ctx, propagation.MapCarrier(msg.Metadata))
	if err := b.pub.Publish(topic, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Subscribe starts consuming topic in the background until ctx is done or
// the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			b.handle(ctx, topic, msg, handler)
			// Failed events are acked too; GoChannel redelivers nacked
			// messages without limit.
			msg.Ack()
		}
		slog.Debug("Event subscription ended", "topic", topic)
	}()
	return nil
}

func (b *Bus) handle(ctx context.Context, topic string, msg *message.Message, handler Handler) {
	ctx = b.propagator.Extract(ctx, propagation.MapCarrier(msg.Metadata))
	ctx, span := b.tracer.Start(ctx, fmt.Sprintf("events.process.%s", topic),
		trace.WithSpanKind(trace.SpanKindConsumer), spanAttributes("process", topic, msg))
	defer span.End()

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to handle event", "topic", topic, "msg_id", msg.UUID, "error", err)
	}
}

// Close shuts the bus down and ends every subscription.
func (b *Bus) Close() error {
	return b.sub.Close()
}
