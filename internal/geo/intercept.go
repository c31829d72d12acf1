package geo

import (
	"errors"
	"math"

	"github.com/OCAP2/sentry/pkg/core"
)

// ErrNoSolution is returned when no projectile fired now can meet the target
// within the prediction horizon.
var ErrNoSolution = errors.New("no intercept solution")

const linearEpsilon = 1e-9

// Intercept is a predicted meeting point of projectile and target.
type Intercept struct {
	AimPoint core.Vector3
	Time     float64
}

// SolveIntercept finds the earliest time t >= 0 at which a projectile of
// speed fired from shooter meets a constant-velocity target, by solving
// (|v|^2 - s^2) t^2 + 2 (r.v) t + |r|^2 = 0. A maxTime of zero or less
// disables the horizon check.
func SolveIntercept(shooter, target, velocity core.Vector3, speed, maxTime float64) (Intercept, error) {
	if speed <= 0 || !target.IsFinite() || !velocity.IsFinite() {
		return Intercept{}, ErrNoSolution
	}

	r := target.Sub(shooter)
	c := r.LengthSquared()
	if c < core.DegenerateEpsilon*core.DegenerateEpsilon {
		return Intercept{AimPoint: target, Time: 0}, nil
	}

	a := velocity.LengthSquared() - speed*speed
	b := 2 * r.Dot(velocity)

	var t float64
	if math.Abs(a) < linearEpsilon*math.Max(1, speed*speed) {
		// Target speed matches projectile speed: the quadratic collapses to b t + c = 0.
		if math.Abs(b) < linearEpsilon {
			return Intercept{}, ErrNoSolution
		}
		t = -c / b
		if t < 0 {
			return Intercept{}, ErrNoSolution
		}
	} else {
		disc := b*b - 4*a*c
		if disc < 0 {
			return Intercept{}, ErrNoSolution
		}
		sq := math.Sqrt(disc)
		t1 := (-b - sq) / (2 * a)
		t2 := (-b + sq) / (2 * a)
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		switch {
		case t1 >= 0:
			t = t1
		case t2 >= 0:
			t = t2
		default:
			return Intercept{}, ErrNoSolution
		}
	}

	if maxTime > 0 && t > maxTime {
		return Intercept{}, ErrNoSolution
	}

	return Intercept{
		AimPoint: target.Add(velocity.Scale(t)),
		Time:     t,
	}, nil
}
