package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger, string, ...any)
	}{
		{"debug", (*DispatcherLogger).Debug},
		{"info", (*DispatcherLogger).Info},
		{"warn", (*DispatcherLogger).Warn},
		{"error", (*DispatcherLogger).Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(dl, "frame handled", "sink", "storage", "queued", 42)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "frame handled", entry["message"])
			assert.Equal(t, "storage", entry["sink"])
			assert.Equal(t, float64(42), entry["queued"])
			assert.Equal(t, "dispatcher", entry["component"])
		})
	}
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestToFields(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "skipped", "dangling"})
	assert.Equal(t, map[string]any{"a": 1}, fields)
	assert.Empty(t, toFields(nil))
}

func TestDispatcherLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("sink failed", "sink", "storage", "error", errors.New("disk full"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "disk full", entry["error"])
	assert.Equal(t, "storage", entry["sink"])
}
