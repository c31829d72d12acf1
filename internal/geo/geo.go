package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/sentry/pkg/core"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Geodetic is a WGS84 position: longitude and latitude in degrees, altitude in meters.
type Geodetic struct {
	Longitude float64
	Latitude  float64
	Altitude  float64
}

// GeodeticFromString parses "long,lat" or "long,lat,alt" into a Geodetic.
func GeodeticFromString(coords string) (Geodetic, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return Geodetic{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Geodetic{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Geodetic{}, ErrInvalidCoordinates
	}
	var alt float64
	if len(parts) > 2 {
		alt, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return Geodetic{}, ErrInvalidCoordinates
		}
	}
	if lat < -85 || lat > 85 || long < -180 || long > 180 {
		return Geodetic{}, ErrInvalidCoordinates
	}
	return Geodetic{Longitude: long, Latitude: lat, Altitude: alt}, nil
}

// LocalFrame maps geodetic reports onto the turret's local frame: X east,
// Y up, Z north, origin at the turret mount.
//
// Positions are projected through EPSG:3857 and rescaled by the Mercator
// scale factor at the origin latitude, which is accurate over the few
// kilometers a sensor net covers.
type LocalFrame struct {
	origin     Geodetic
	originX    float64
	originY    float64
	scale      float64
	toMercator func(a, b, c float64) (float64, float64, float64)
}

// NewLocalFrame anchors a local frame at origin.
func NewLocalFrame(origin Geodetic) *LocalFrame {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(origin.Longitude, origin.Latitude, 0)
	return &LocalFrame{
		origin:     origin,
		originX:    x,
		originY:    y,
		scale:      math.Cos(origin.Latitude * math.Pi / 180),
		toMercator: f,
	}
}

// Origin returns the anchor of the frame.
func (l *LocalFrame) Origin() Geodetic {
	return l.origin
}

// ToLocal converts a geodetic position into turret-local coordinates.
func (l *LocalFrame) ToLocal(g Geodetic) core.Vector3 {
	x, y, _ := l.toMercator(g.Longitude, g.Latitude, 0)
	return core.Vector3{
		X: (x - l.originX) * l.scale,
		Y: g.Altitude - l.origin.Altitude,
		Z: (y - l.originY) * l.scale,
	}
}
