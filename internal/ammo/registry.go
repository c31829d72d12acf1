// Package ammo holds the named ammunition loadouts a turret can switch between.
package ammo

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/OCAP2/sentry/pkg/core"
)

var (
	ErrDuplicateAmmunition = errors.New("duplicate ammunition")
	ErrUnknownAmmunition   = errors.New("unknown ammunition")
	ErrEmptyRegistry       = errors.New("ammunition registry is empty")
	ErrInvalidAmmunition   = errors.New("invalid ammunition")
)

// Registry keeps ammunition types in registration order with exactly one active
// once anything is registered.
type Registry struct {
	mu     sync.RWMutex
	types  []core.AmmunitionType
	index  map[string]int
	active int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Validate checks the physical fields of an ammunition type.
func Validate(a core.AmmunitionType) error {
	switch {
	case a.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidAmmunition)
	case !(a.ProjectileSpeed > 0) || math.IsInf(a.ProjectileSpeed, 0):
		return fmt.Errorf("%w: %s projectile speed must be positive", ErrInvalidAmmunition, a.Name)
	case !(a.HeatCost >= 0) || math.IsInf(a.HeatCost, 0):
		return fmt.Errorf("%w: %s heat cost must not be negative", ErrInvalidAmmunition, a.Name)
	case !(a.PowerDraw >= 0) || math.IsInf(a.PowerDraw, 0):
		return fmt.Errorf("%w: %s power draw must not be negative", ErrInvalidAmmunition, a.Name)
	case !(a.Damage >= 0) || math.IsInf(a.Damage, 0):
		return fmt.Errorf("%w: %s damage must not be negative", ErrInvalidAmmunition, a.Name)
	}
	return nil
}

// Register adds a type. The first registered type becomes active.
func (r *Registry) Register(a core.AmmunitionType) error {
	if err := Validate(a); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[a.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAmmunition, a.Name)
	}
	r.index[a.Name] = len(r.types)
	r.types = append(r.types, a)
	return nil
}

// Select makes the named type active. On failure the selection is unchanged.
func (r *Registry) Select(name string) (core.AmmunitionType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[name]
	if !ok {
		return core.AmmunitionType{}, fmt.Errorf("%w: %s", ErrUnknownAmmunition, name)
	}
	r.active = i
	return r.types[i], nil
}

// Cycle advances to the next registered type, wrapping around.
func (r *Registry) Cycle() (core.AmmunitionType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.types) == 0 {
		return core.AmmunitionType{}, ErrEmptyRegistry
	}
	r.active = (r.active + 1) % len(r.types)
	return r.types[r.active], nil
}

// Active returns the selected type.
func (r *Registry) Active() (core.AmmunitionType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.types) == 0 {
		return core.AmmunitionType{}, ErrEmptyRegistry
	}
	return r.types[r.active], nil
}

// Index returns the position of the active type.
func (r *Registry) Index() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Names lists registered types in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.types))
	for i, a := range r.types {
		names[i] = a.Name
	}
	return names
}
