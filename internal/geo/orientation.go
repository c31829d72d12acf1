package geo

import (
	"math"

	"github.com/OCAP2/sentry/pkg/core"
)

const (
	degPerRad = 180 / math.Pi
	radPerDeg = math.Pi / 180
)

// YawPitch returns heading and elevation in degrees for a direction.
// Yaw is measured from +Z toward +X, pitch from the horizontal plane toward +Y.
func YawPitch(direction core.Vector3) (yaw, pitch float64, err error) {
	n, err := direction.Normalize()
	if err != nil {
		return 0, 0, err
	}
	yaw = math.Atan2(n.X, n.Z) * degPerRad
	pitch = math.Asin(Clamp(n.Y, -1, 1)) * degPerRad
	return yaw, pitch, nil
}

// Direction is the unit vector for a yaw and pitch in degrees.
func Direction(yaw, pitch float64) core.Vector3 {
	y := yaw * radPerDeg
	p := pitch * radPerDeg
	return core.Vector3{
		X: math.Cos(p) * math.Sin(y),
		Y: math.Sin(p),
		Z: math.Cos(p) * math.Cos(y),
	}
}

// WrapDegrees maps an angle onto (-180, 180].
func WrapDegrees(angle float64) float64 {
	a := math.Mod(angle+180, 360)
	if a <= 0 {
		a += 360
	}
	return a - 180
}

// StepYaw moves current toward target along the shortest arc by at most maxStep degrees.
func StepYaw(current, target, maxStep float64) float64 {
	delta := WrapDegrees(target - current)
	return WrapDegrees(current + Clamp(delta, -maxStep, maxStep))
}

// StepPitch moves current toward target by at most maxStep degrees.
func StepPitch(current, target, maxStep float64) float64 {
	return current + Clamp(target-current, -maxStep, maxStep)
}

// AngularSeparation is the angle in degrees between two orientations.
func AngularSeparation(yawA, pitchA, yawB, pitchB float64) float64 {
	dot := Direction(yawA, pitchA).Dot(Direction(yawB, pitchB))
	return math.Acos(Clamp(dot, -1, 1)) * degPerRad
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
