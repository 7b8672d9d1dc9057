package telemetry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

var setupTestEnvironments = map[string]bool{}

// SetupForTesting installs a debug slog handler and an exporter-less
// tracer provider, ensuring it isn't set up more than once per
// service name. Spans are still created (so span-dependent code runs)
// but nothing leaves the process.
func SetupForTesting(t testing.TB, serviceName string) func() {
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	provider := trace.NewTracerProvider()
	otel.SetTracerProvider(provider)

	return func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}
