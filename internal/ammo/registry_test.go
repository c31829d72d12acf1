package ammo

import (
	"math"
	"testing"

	"github.com/OCAP2/sentry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	standard = core.AmmunitionType{Name: "standard", ProjectileSpeed: 55, Damage: 10, HeatCost: 1.2, PowerDraw: 1.5}
	piercing = core.AmmunitionType{Name: "piercing", ProjectileSpeed: 70, Damage: 14, HeatCost: 1.8, PowerDraw: 1.5}
	rapid    = core.AmmunitionType{Name: "rapid", ProjectileSpeed: 45, Damage: 6, HeatCost: 0.8}
)

func newLoaded(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, a := range []core.AmmunitionType{standard, piercing, rapid} {
		require.NoError(t, r.Register(a))
	}
	return r
}

func TestRegister_FirstBecomesActive(t *testing.T) {
	r := newLoaded(t)

	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, "standard", active.Name)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"standard", "piercing", "rapid"}, r.Names())
}

func TestRegister_Duplicate(t *testing.T) {
	r := newLoaded(t)

	err := r.Register(core.AmmunitionType{Name: "rapid", ProjectileSpeed: 10})
	assert.ErrorIs(t, err, ErrDuplicateAmmunition)
	assert.Equal(t, 3, r.Len())
}

func TestRegister_Invalid(t *testing.T) {
	r := NewRegistry()

	tests := []core.AmmunitionType{
		{Name: "", ProjectileSpeed: 10},
		{Name: "slow", ProjectileSpeed: 0},
		{Name: "hot", ProjectileSpeed: 10, HeatCost: -1},
		{Name: "hungry", ProjectileSpeed: 10, PowerDraw: -1},
		{Name: "nan heat", ProjectileSpeed: 10, HeatCost: math.NaN()},
		{Name: "inf heat", ProjectileSpeed: 10, HeatCost: math.Inf(1)},
		{Name: "nan power", ProjectileSpeed: 10, PowerDraw: math.NaN()},
		{Name: "nan damage", ProjectileSpeed: 10, Damage: math.NaN()},
	}
	for _, a := range tests {
		assert.ErrorIs(t, r.Register(a), ErrInvalidAmmunition, a.Name)
	}
	assert.Equal(t, 0, r.Len())
}

func TestSelect(t *testing.T) {
	r := newLoaded(t)

	got, err := r.Select("rapid")
	require.NoError(t, err)
	assert.Equal(t, rapid, got)
	assert.Equal(t, 2, r.Index())
}

func TestSelect_UnknownKeepsSelection(t *testing.T) {
	r := newLoaded(t)
	_, err := r.Select("piercing")
	require.NoError(t, err)

	_, err = r.Select("plasma")
	assert.ErrorIs(t, err, ErrUnknownAmmunition)

	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, "piercing", active.Name)
}

func TestCycle_Wraps(t *testing.T) {
	r := newLoaded(t)

	var seen []string
	for i := 0; i < 4; i++ {
		a, err := r.Cycle()
		require.NoError(t, err)
		seen = append(seen, a.Name)
	}
	assert.Equal(t, []string{"piercing", "rapid", "standard", "piercing"}, seen)
}

func TestEmptyRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Cycle()
	assert.ErrorIs(t, err, ErrEmptyRegistry)

	_, err = r.Active()
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}
