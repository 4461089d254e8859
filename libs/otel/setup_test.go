package otelx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("SERVICE_VERSION", "")
	t.Setenv("DEPLOY_ENV", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg, err := ConfigFromEnv("appointment-service")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRatio)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "jaeger:4317", cfg.OTLPEndpoint)
}

func TestConfigFromEnvRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "1.5")
	_, err := ConfigFromEnv("appointment-service")
	assert.ErrorContains(t, err, "OTEL_SAMPLING_RATIO")
}

func TestSampler(t *testing.T) {
	params := sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: trace.TraceID{0xff}}
	assert.Equal(t, sdktrace.RecordAndSample, Sampler(1).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.Drop, Sampler(0).ShouldSample(params).Decision)

	sampledParent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	params.ParentContext = trace.ContextWithRemoteSpanContext(context.Background(), sampledParent)
	assert.Equal(t, sdktrace.RecordAndSample, Sampler(0.001).ShouldSample(params).Decision)
}

func TestResourceCarriesServiceAttributes(t *testing.T) {
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")
	res, err := Resource(context.Background(), Config{ServiceName: "appointment-service", ServiceVersion: "1.4.0", Environment: "staging"})
	require.NoError(t, err)

	set := res.Set()
	name, ok := set.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "appointment-service", name.AsString())
	version, _ := set.Value(semconv.ServiceVersionKey)
	assert.Equal(t, "1.4.0", version.AsString())
	env, _ := set.Value(semconv.DeploymentEnvironmentKey)
	assert.Equal(t, "staging", env.AsString())
}

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	assert.True(t, Capture(context.Background()).IsZero())
	assert.Equal(t, context.Background(), TraceContext{}.Restore(context.Background()))

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x0c},
		TraceFlags: trace.FlagsSampled,
	})
	tc := Capture(trace.ContextWithSpanContext(context.Background(), parent))
	require.False(t, tc.IsZero())

	restored := trace.SpanContextFromContext(tc.Restore(context.Background()))
	assert.Equal(t, parent.TraceID(), restored.TraceID())
	assert.Equal(t, parent.SpanID(), restored.SpanID())
	assert.True(t, restored.IsRemote())
}
