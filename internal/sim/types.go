package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/integrators"
	"github.com/san-kum/revsim/internal/potentials"
)

// System is everything needed to run one forward/backward cycle.
type System struct {
	Masses     []float64         `json:"masses" yaml:"masses"`
	X0         [][3]float64      `json:"x0" yaml:"x0"`
	V0         [][3]float64      `json:"v0,omitempty" yaml:"v0,omitempty"`
	Terms      []potentials.Spec `json:"terms" yaml:"terms"`
	Integrator Integrator        `json:"integrator" yaml:"integrator"`
}

// Integrator configures the reversible Langevin integrator. When Ca, Cb
// and Cc are omitted they are derived from Friction and Temperature.
type Integrator struct {
	Dt           float64   `json:"dt" yaml:"dt"`
	Lambdas      []float64 `json:"lambdas" yaml:"lambdas"`
	Seed         int64     `json:"seed" yaml:"seed"`
	Friction     float64   `json:"friction" yaml:"friction"`
	Temperature  float64   `json:"temperature" yaml:"temperature"`
	Ca           []float64 `json:"ca,omitempty" yaml:"ca,omitempty"`
	Cb           []float64 `json:"cb,omitempty" yaml:"cb,omitempty"`
	Cc           []float64 `json:"cc,omitempty" yaml:"cc,omitempty"`
	DisableNoise bool      `json:"disable_noise,omitempty" yaml:"disable_noise,omitempty"`
}

func (s System) NumAtoms() int { return len(s.Masses) }

// Steps is the length of the λ schedule.
func (s System) Steps() int { return len(s.Integrator.Lambdas) }

// Velocities returns V0, or zeros when it is omitted.
func (s System) Velocities() [][3]float64 {
	if s.V0 == nil {
		return make([][3]float64, len(s.X0))
	}
	return s.V0
}

// Coefficients returns the per-atom integrator coefficients.
func (s System) Coefficients() integrators.Coefficients {
	in := s.Integrator
	var c integrators.Coefficients
	if in.Ca == nil && in.Cb == nil && in.Cc == nil {
		c = integrators.LangevinCoefficients(s.Masses, in.Dt, in.Friction, in.Temperature)
	} else {
		c = integrators.Coefficients{Ca: in.Ca, Cb: in.Cb, Cc: in.Cc, Dt: in.Dt}
	}
	if in.DisableNoise {
		c = c.WithoutNoise()
	}
	return c
}

// Validate checks shapes and physical ranges. Term arguments are checked
// when the terms are built.
func (s System) Validate() error {
	n := s.NumAtoms()
	if n == 0 {
		return dynamo.Configf("system has no atoms")
	}
	for i, m := range s.Masses {
		if !(m > 0) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: mass of atom %d is %v", dynamo.ErrNonPositiveParam, i, m)
		}
	}
	if len(s.X0) != n {
		return fmt.Errorf("%w: %d positions for %d atoms", dynamo.ErrDimensionMismatch, len(s.X0), n)
	}
	if s.V0 != nil && len(s.V0) != n {
		return fmt.Errorf("%w: %d velocities for %d atoms", dynamo.ErrDimensionMismatch, len(s.V0), n)
	}
	if !dynamo.FromRows[float64](s.X0).IsValid() || !dynamo.FromRows[float64](s.Velocities()).IsValid() {
		return dynamo.Configf("initial state is not finite")
	}
	if s.Steps() == 0 {
		return dynamo.Configf("empty lambda schedule")
	}
	in := s.Integrator
	if in.Friction < 0 || in.Temperature < 0 {
		return dynamo.Configf("friction %v and temperature %v must be non-negative", in.Friction, in.Temperature)
	}
	if (in.Ca == nil) != (in.Cb == nil) || (in.Ca == nil) != (in.Cc == nil) {
		return dynamo.Configf("ca, cb and cc must be given together")
	}
	if err := s.Coefficients().Validate(n); err != nil {
		return err
	}
	return checkGeometry(s.X0)
}

// checkGeometry rejects coincident atoms, which make every pair term
// singular.
func checkGeometry(x [][3]float64) error {
	for i := range x {
		for j := i + 1; j < len(x); j++ {
			if x[i] == x[j] {
				return fmt.Errorf("%w: atoms %d and %d", dynamo.ErrSingularGeometry, i, j)
			}
		}
	}
	return nil
}
