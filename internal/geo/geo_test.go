package geo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeodeticFromString_ValidWithAltitude(t *testing.T) {
	g, err := GeodeticFromString("13.4050,52.5200,34.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Longitude != 13.405 {
		t.Errorf("expected longitude=13.405, got %f", g.Longitude)
	}
	if g.Latitude != 52.52 {
		t.Errorf("expected latitude=52.52, got %f", g.Latitude)
	}
	if g.Altitude != 34.5 {
		t.Errorf("expected altitude=34.5, got %f", g.Altitude)
	}
}

func TestGeodeticFromString_Invalid(t *testing.T) {
	for _, in := range []string{"", "13.4", "abc,52", "13,xyz", "13,52,alt", "200,10", "10,89"} {
		_, err := GeodeticFromString(in)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", in, err)
		}
	}
}

func TestLocalFrame_OriginMapsToZero(t *testing.T) {
	origin := Geodetic{Longitude: 13.405, Latitude: 52.52, Altitude: 30}
	f := NewLocalFrame(origin)

	p := f.ToLocal(origin)
	assert.InDelta(t, 0, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)
	assert.InDelta(t, 0, p.Z, 1e-6)
}

func TestLocalFrame_Axes(t *testing.T) {
	origin := Geodetic{Longitude: 10, Latitude: 45}
	f := NewLocalFrame(origin)

	// one arc-minute of latitude is about 1852m
	north := f.ToLocal(Geodetic{Longitude: 10, Latitude: 45 + 1.0/60, Altitude: 12})
	assert.InDelta(t, 0, north.X, 1e-3)
	assert.InDelta(t, 12, north.Y, 1e-9)
	assert.InDelta(t, 1852, north.Z, 15)

	east := f.ToLocal(Geodetic{Longitude: 10.01, Latitude: 45})
	assert.Greater(t, east.X, 0.0)
	assert.InDelta(t, 0, east.Z, 1e-3)
	// 0.01 degrees of longitude at 45N is about 787m
	assert.InDelta(t, 787, east.X, 5)
}
