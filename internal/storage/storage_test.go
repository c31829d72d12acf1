// internal/storage/storage_test.go
package storage_test

import (
	"errors"
	"testing"

	"github.com/OCAP2/sentry/internal/storage"
	"github.com/OCAP2/sentry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	frames  []uint64
	shots   []core.FireSource
	failFor string
}

func (b *recordingBackend) Init() error { return nil }
func (b *recordingBackend) Close() error { return nil }
func (b *recordingBackend) StartSession(s *core.Session) error { return nil }
func (b *recordingBackend) EndSession() error { return nil }

func (b *recordingBackend) RecordTelemetry(frame uint64, t *core.Telemetry) error {
	if b.failFor == "telemetry" {
		return errors.New("telemetry rejected")
	}
	b.frames = append(b.frames, frame)
	return nil
}

func (b *recordingBackend) RecordFireEvent(frame uint64, e *core.FireEvent) error {
	if b.failFor == "fire" {
		return errors.New("fire rejected")
	}
	b.shots = append(b.shots, e.Source)
	return nil
}

var _ storage.Backend = (*recordingBackend)(nil)

func TestRecord_WritesFrameAndShots(t *testing.T) {
	b := &recordingBackend{}
	tel := &core.Telemetry{
		Fired: true,
		Shots: []core.FireEvent{
			{Source: core.FireSourceBurst},
			{Source: core.FireSourceManual},
		},
	}

	require.NoError(t, storage.Record(b, 3, tel))

	assert.Equal(t, []uint64{3}, b.frames)
	assert.Equal(t, []core.FireSource{core.FireSourceBurst, core.FireSourceManual}, b.shots)
}

func TestRecord_StopsOnTelemetryError(t *testing.T) {
	b := &recordingBackend{failFor: "telemetry"}
	tel := &core.Telemetry{Shots: []core.FireEvent{{Source: core.FireSourceAutonomous}}}

	err := storage.Record(b, 0, tel)

	assert.EqualError(t, err, "telemetry rejected")
	assert.Empty(t, b.shots)
}

func TestRecord_PropagatesFireError(t *testing.T) {
	b := &recordingBackend{failFor: "fire"}
	tel := &core.Telemetry{Shots: []core.FireEvent{{Source: core.FireSourceAutonomous}}}

	assert.EqualError(t, storage.Record(b, 0, tel), "fire rejected")
}
