package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/revsim/internal/dynamo"
)

// Boltzmann is kB in kJ/(mol·K).
const Boltzmann = 0.008314462618

// Coefficients are the per-atom factors of the reversible Langevin update
//
//	v' = Ca·v - Cb·∇E(x) + Cc·η
//	x' = x + v'·Dt
type Coefficients struct {
	Ca []float64 `json:"ca" yaml:"ca"`
	Cb []float64 `json:"cb" yaml:"cb"`
	Cc []float64 `json:"cc" yaml:"cc"`
	Dt float64   `json:"dt" yaml:"dt"`
}

// LangevinCoefficients derives coefficients from masses, friction (1/ps)
// and temperature (K). Zero friction yields Ca = 1 and Cb = Dt/m.
func LangevinCoefficients(masses []float64, dt, friction, temperature float64) Coefficients {
	vscale := math.Exp(-dt * friction)
	fscale := dt
	if friction != 0 {
		fscale = (1 - vscale) / friction
	}
	nscale := math.Sqrt(Boltzmann * temperature * (1 - vscale*vscale))

	c := Coefficients{
		Ca: make([]float64, len(masses)),
		Cb: make([]float64, len(masses)),
		Cc: make([]float64, len(masses)),
		Dt: dt,
	}
	for i, m := range masses {
		c.Ca[i] = vscale
		c.Cb[i] = fscale / m
		c.Cc[i] = nscale * math.Sqrt(1/m)
	}
	return c
}

// WithoutNoise returns a copy with Cc zeroed.
func (c Coefficients) WithoutNoise() Coefficients {
	out := Coefficients{
		Ca: append([]float64(nil), c.Ca...),
		Cb: append([]float64(nil), c.Cb...),
		Cc: make([]float64, len(c.Cc)),
		Dt: c.Dt,
	}
	return out
}

// Validate checks shapes against numAtoms and that every Ca is invertible.
func (c Coefficients) Validate(numAtoms int) error {
	if !(c.Dt > 0) {
		return dynamo.Configf("timestep %v must be positive", c.Dt)
	}
	for _, f := range []struct {
		name string
		v    []float64
	}{{"ca", c.Ca}, {"cb", c.Cb}, {"cc", c.Cc}} {
		name, v := f.name, f.v
		if len(v) != numAtoms {
			return fmt.Errorf("%w: %s has %d entries for %d atoms", dynamo.ErrDimensionMismatch, name, len(v), numAtoms)
		}
		for i, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return dynamo.Configf("%s[%d] is not finite", name, i)
			}
		}
	}
	for i, a := range c.Ca {
		if a == 0 {
			return fmt.Errorf("%w: atom %d", dynamo.ErrSingularCoefficient, i)
		}
	}
	return nil
}

func (c Coefficients) noiseless() bool {
	for _, v := range c.Cc {
		if v != 0 {
			return false
		}
	}
	return true
}
