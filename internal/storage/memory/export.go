// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/sentry/pkg/core"
)

// ExportVersion identifies the export layout.
const ExportVersion = "1.0"

// SessionExport is the root JSON structure
type SessionExport struct {
	Version      string    `json:"version"`
	SessionName  string    `json:"sessionName"`
	Turret       string    `json:"turret"`
	StartTime    time.Time `json:"startTime"`
	TickRate     float64   `json:"tickRate"`
	CaptureDelay float64   `json:"captureDelay"`
	EndFrame     uint64    `json:"endFrame"`
	Frames       [][]any   `json:"frames"`
	Shots        [][]any   `json:"shots"`
	Events       [][]any   `json:"events"`
	Summary      Summary   `json:"summary"`
}

// Summary aggregates the session.
type Summary struct {
	Frames        int            `json:"frames"`
	Shots         int            `json:"shots"`
	ShotsBySource map[string]int `json:"shotsBySource"`
	Refusals      map[string]int `json:"refusals"`
	Diagnostics   int            `json:"diagnostics"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	name := sanitizeName(b.session.Name)
	if b.session.Turret != "" {
		name += "_" + sanitizeName(b.session.Turret)
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func sanitizeName(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	if s == "" {
		return "session"
	}
	return s
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		Version:     ExportVersion,
		SessionName: b.session.Name,
		Turret:      b.session.Turret,
		StartTime:   b.session.StartTime,
		TickRate:    b.session.TickRate,
		Frames:      make([][]any, 0, len(b.frames)),
		Shots:       make([][]any, 0, len(b.shots)),
		Events:      make([][]any, 0),
		Summary: Summary{
			Frames:        len(b.frames),
			Shots:         len(b.shots),
			ShotsBySource: make(map[string]int),
			Refusals:      make(map[string]int),
		},
	}
	if b.session.TickRate > 0 {
		export.CaptureDelay = 1 / b.session.TickRate
	}

	// Frames
	// Format: [frame, tick, authority, [yaw, pitch], targetId, fired, refusal, heat, power, overrideState]
	var prev *core.Telemetry
	for i := range b.frames {
		record := &b.frames[i]
		t := &record.Telemetry

		export.Frames = append(export.Frames, []any{
			record.Frame,
			t.Tick,
			t.Authority,
			[]float64{t.Yaw, t.Pitch},
			t.TargetID,
			boolToInt(t.Fired),
			t.Refusal,
			t.Heat,
			t.Power,
			t.OverrideState,
		})
		if record.Frame > export.EndFrame {
			export.EndFrame = record.Frame
		}
		if t.Refusal != core.RefusalNone {
			export.Summary.Refusals[string(t.Refusal)]++
		}
		export.Summary.Diagnostics += len(t.Diagnostics)

		export.Events = append(export.Events, transitionEvents(record.Frame, prev, t)...)
		prev = t
	}

	// Shots
	// Format: [frame, source, targetId, ammunition, damage, [x, y, z], interceptTime]
	for _, record := range b.shots {
		e := record.Event
		export.Shots = append(export.Shots, []any{
			record.Frame,
			e.Source,
			e.TargetID,
			e.Ammunition,
			e.Damage,
			[]float64{e.AimPoint.X, e.AimPoint.Y, e.AimPoint.Z},
			e.InterceptTime,
		})
		export.Summary.ShotsBySource[string(e.Source)]++
	}

	return export
}

// transitionEvents reports latch and authority changes between consecutive
// frames plus every diagnostic on the frame.
// Format: [frame, "type", detail]
func transitionEvents(frame uint64, prev, cur *core.Telemetry) [][]any {
	var events [][]any
	if prev != nil {
		if cur.Overheated != prev.Overheated {
			if cur.Overheated {
				events = append(events, []any{frame, "overheated", cur.Heat})
			} else {
				events = append(events, []any{frame, "cooled", cur.Heat})
			}
		}
		if cur.Depleted != prev.Depleted {
			if cur.Depleted {
				events = append(events, []any{frame, "depleted", cur.Power})
			} else {
				events = append(events, []any{frame, "recharged", cur.Power})
			}
		}
		if cur.Authority != prev.Authority {
			events = append(events, []any{frame, "authority", cur.Authority})
		}
	}
	for _, d := range cur.Diagnostics {
		events = append(events, []any{frame, "diagnostic", []string{d.Callback, d.Message}})
	}
	return events
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
