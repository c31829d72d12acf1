package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector3_Arithmetic(t *testing.T) {
	a := Vector3{X: 1, Y: 2, Z: 3}
	b := Vector3{X: 4, Y: -5, Z: 6}

	assert.Equal(t, Vector3{X: 5, Y: -3, Z: 9}, a.Add(b))
	assert.Equal(t, Vector3{X: -3, Y: 7, Z: -3}, a.Sub(b))
	assert.Equal(t, Vector3{X: 2, Y: 4, Z: 6}, a.Scale(2))
	assert.Equal(t, 12.0, a.Dot(b))
	assert.InDelta(t, math.Sqrt(14), a.Length(), 1e-12)
	assert.InDelta(t, 14.0, a.LengthSquared(), 1e-12)
}

func TestVector3_Normalize(t *testing.T) {
	n, err := Vector3{X: 0, Y: 3, Z: 4}.Normalize()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, n.Length(), 1e-12)
	assert.InDelta(t, 0.6, n.Y, 1e-12)
	assert.InDelta(t, 0.8, n.Z, 1e-12)
}

func TestVector3_NormalizeDegenerate(t *testing.T) {
	_, err := Vector3{X: 1e-12}.Normalize()
	assert.ErrorIs(t, err, ErrDegenerateVector)

	_, err = Vector3{}.Normalize()
	assert.ErrorIs(t, err, ErrDegenerateVector)
}

func TestVector2_Normalize(t *testing.T) {
	n, err := Vector2{X: 3, Y: 4}.Normalize()
	require.NoError(t, err)
	assert.InDelta(t, 0.6, n.X, 1e-12)

	_, err = Vector2{}.Normalize()
	assert.ErrorIs(t, err, ErrDegenerateVector)
}

func TestVector3_Horizontal(t *testing.T) {
	assert.Equal(t, Vector2{X: 1, Y: 3}, Vector3{X: 1, Y: 2, Z: 3}.Horizontal())
}

func TestVector3_IsFinite(t *testing.T) {
	assert.True(t, Vector3{X: 1, Y: 2, Z: 3}.IsFinite())
	assert.False(t, Vector3{X: math.NaN()}.IsFinite())
	assert.False(t, Vector3{Z: math.Inf(1)}.IsFinite())
}
