package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("test", "debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	logger, err = NewLogger("test", "warn", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(0))

	_, err = NewLogger("test", "loud", "json")
	assert.Error(t, err)
}

func TestSetupTracing_WithoutExporter(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "test", "")
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestSetupTracing_ResourceCarriesServiceName(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "stock-ledger-test", "")
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ro, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	name, found := ro.Resource().Set().Value("service.name")
	require.True(t, found)
	assert.Equal(t, "stock-ledger-test", name.AsString())
}
