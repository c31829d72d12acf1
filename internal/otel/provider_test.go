package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Equal(t, noop.Meter{}, p.Meter("sentry"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSinks(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "sentry"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log writer or endpoint")
}

func TestNew_FileLogs(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "sentry",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)

	assert.True(t, p.Enabled())
	assert.NotNil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_FileMetrics(t *testing.T) {
	var logs, metrics bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "sentry",
		BatchTimeout:   time.Second,
		LogWriter:      &logs,
		MetricWriter:   &metrics,
		MetricInterval: time.Hour,
	})
	require.NoError(t, err)

	counter, err := p.Meter("test").Int64Counter("turret.shots.fired")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, metrics.String(), "turret.shots.fired")
	assert.NoError(t, p.Shutdown(context.Background()))
}
