// pkg/core/vector.go
package core

import (
	"errors"
	"math"
)

// DegenerateEpsilon is the length below which a vector has no usable direction.
const DegenerateEpsilon = 1e-9

// ErrDegenerateVector is returned when normalizing a near-zero vector.
var ErrDegenerateVector = errors.New("degenerate vector")

// Vector2 is a point or direction on the horizontal plane.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the sum of two vectors
func (v Vector2) Add(other Vector2) Vector2 {
	return Vector2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns the difference between two vectors
func (v Vector2) Sub(other Vector2) Vector2 {
	return Vector2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale multiplies the vector by a scalar value
func (v Vector2) Scale(factor float64) Vector2 {
	return Vector2{X: v.X * factor, Y: v.Y * factor}
}

// Dot returns the dot product of two vectors
func (v Vector2) Dot(other Vector2) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Length returns the magnitude of the vector
func (v Vector2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns a unit vector in the same direction.
func (v Vector2) Normalize() (Vector2, error) {
	length := v.Length()
	if length < DegenerateEpsilon {
		return Vector2{}, ErrDegenerateVector
	}
	return v.Scale(1 / length), nil
}

// Vector3 is a point or direction in turret space. Y is up.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the sum of two vectors
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns the difference between two vectors
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale multiplies the vector by a scalar value
func (v Vector3) Scale(factor float64) Vector3 {
	return Vector3{X: v.X * factor, Y: v.Y * factor, Z: v.Z * factor}
}

// Dot returns the dot product of two vectors
func (v Vector3) Dot(other Vector3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// LengthSquared avoids the square root when only comparing magnitudes.
func (v Vector3) LengthSquared() float64 {
	return v.Dot(v)
}

// Length returns the magnitude of the vector
func (v Vector3) Length() float64 {
	return math.Sqrt(v.LengthSquared())
}

// Distance returns the distance between two points
func (v Vector3) Distance(other Vector3) float64 {
	return v.Sub(other).Length()
}

// Normalize returns a unit vector in the same direction.
// Vectors shorter than DegenerateEpsilon yield ErrDegenerateVector.
func (v Vector3) Normalize() (Vector3, error) {
	length := v.Length()
	if length < DegenerateEpsilon {
		return Vector3{}, ErrDegenerateVector
	}
	return v.Scale(1 / length), nil
}

// Horizontal drops the vertical component, mapping X/Z onto the plane.
func (v Vector3) Horizontal() Vector2 {
	return Vector2{X: v.X, Y: v.Z}
}

// IsFinite reports whether every component is a finite number.
func (v Vector3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
