package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/OCAP2/sentry/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidZone is returned when an engagement zone polygon cannot be built.
var ErrInvalidZone = errors.New("invalid engagement zone")

// EnvelopeConfig bounds where the turret may engage.
type EnvelopeConfig struct {
	// MaxRange of zero means unlimited.
	MaxRange float64
	MinRange float64
	// Elevation limits in degrees. Equal limits disable the check.
	MinElevation float64
	MaxElevation float64
	// Zone is an optional horizontal polygon (X east, Y north) in turret coordinates.
	Zone []core.Vector2
}

// Envelope tests whether a point lies inside the engagement volume.
type Envelope struct {
	cfg  EnvelopeConfig
	zone *geom.Geometry
}

// NewEnvelope validates cfg and builds the zone polygon.
func NewEnvelope(cfg EnvelopeConfig) (*Envelope, error) {
	if cfg.MaxRange < 0 || cfg.MinRange < 0 {
		return nil, fmt.Errorf("%w: negative range", ErrInvalidZone)
	}
	if cfg.MaxRange > 0 && cfg.MinRange > cfg.MaxRange {
		return nil, fmt.Errorf("%w: min range %.2f exceeds max range %.2f", ErrInvalidZone, cfg.MinRange, cfg.MaxRange)
	}
	if cfg.MinElevation > cfg.MaxElevation {
		return nil, fmt.Errorf("%w: min elevation exceeds max elevation", ErrInvalidZone)
	}

	e := &Envelope{cfg: cfg}
	if len(cfg.Zone) == 0 {
		return e, nil
	}

	zone, err := zonePolygon(cfg.Zone)
	if err != nil {
		return nil, err
	}
	e.zone = &zone
	return e, nil
}

// zonePolygon builds a closed polygon from the ring vertices.
func zonePolygon(ring []core.Vector2) (geom.Geometry, error) {
	pts := ring
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return geom.Geometry{}, fmt.Errorf("%w: need at least 3 vertices, got %d", ErrInvalidZone, len(pts))
	}

	var area float64
	coords := make([]string, 0, len(pts)+1)
	for i, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return geom.Geometry{}, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidZone, i)
		}
		next := pts[(i+1)%len(pts)]
		area += p.X*next.Y - next.X*p.Y
		coords = append(coords, fmt.Sprintf("%g %g", p.X, p.Y))
	}
	if math.Abs(area) < 1e-9 {
		return geom.Geometry{}, fmt.Errorf("%w: zone has no area", ErrInvalidZone)
	}
	coords = append(coords, coords[0])

	g, err := geom.UnmarshalWKT("POLYGON((" + strings.Join(coords, ", ") + "))")
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrInvalidZone, err)
	}
	return g, nil
}

// Contains reports whether point is engageable from shooter.
func (e *Envelope) Contains(shooter, point core.Vector3) bool {
	rel := point.Sub(shooter)
	dist := rel.Length()

	if e.cfg.MaxRange > 0 && dist > e.cfg.MaxRange {
		return false
	}
	if dist < e.cfg.MinRange {
		return false
	}

	if e.cfg.MinElevation < e.cfg.MaxElevation && dist > core.DegenerateEpsilon {
		_, pitch, err := YawPitch(rel)
		if err == nil && (pitch < e.cfg.MinElevation || pitch > e.cfg.MaxElevation) {
			return false
		}
	}

	if e.zone != nil {
		h := rel.Horizontal()
		pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: h.X, Y: h.Y}})
		if err != nil || !geom.Intersects(*e.zone, pt.AsGeometry()) {
			return false
		}
	}

	return true
}

// ClampPitch limits a pitch to the elevation limits when they are set.
func (e *Envelope) ClampPitch(pitch float64) float64 {
	if e.cfg.MinElevation < e.cfg.MaxElevation {
		return Clamp(pitch, e.cfg.MinElevation, e.cfg.MaxElevation)
	}
	return pitch
}

// MaxRange returns the configured detection radius.
func (e *Envelope) MaxRange() float64 {
	return e.cfg.MaxRange
}
