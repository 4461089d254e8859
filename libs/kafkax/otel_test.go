package kafkax

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestMessageCarriesEventAndTraceHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg := Message(ctx, Event{ID: "e-1", Type: "appointment.booked.v1", Key: "appt-1", Payload: []byte(`{}`)})
	if msg.Topic != "appointment.booked.v1" || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected routing: topic=%q key=%q", msg.Topic, msg.Key)
	}
	if HeaderValue(msg.Headers, HeaderEventID) != "e-1" || HeaderValue(msg.Headers, HeaderEventType) != "appointment.booked.v1" {
		t.Fatalf("missing event headers: %+v", msg.Headers)
	}

	h := headerCarrier(msg.Headers)
	extracted := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), &h))
	if extracted.TraceID() != traceID {
		t.Fatalf("trace id mismatch: %s", extracted.TraceID())
	}
}

func TestMessageWithoutTraceHasOnlyEventHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	msg := Message(context.Background(), Event{ID: "e-2", Type: "appointment.deleted.v1", Key: "appt-2"})
	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %+v", msg.Headers)
	}
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	var h headerCarrier
	h.Set("traceparent", "a")
	h.Set("traceparent", "b")
	if len(h) != 1 || h.Get("traceparent") != "b" {
		t.Fatalf("unexpected headers %+v", h)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %#v", got)
	}
}
