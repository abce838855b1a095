package metrics

import (
	"math"

	"github.com/san-kum/revsim/internal/integrators"
)

// Metric is a trajectory observer that reduces a forward pass to one
// number.
type Metric interface {
	integrators.Observer
	Name() string
	Value() float64
	Reset()
}

// kinetic returns the kinetic energy at the positions between two
// consecutive half-step velocities.
func kinetic(masses, prevV, v []float64) float64 {
	ke := 0.0
	for i := range v {
		mid := 0.5 * (v[i] + prevV[i])
		ke += 0.5 * masses[i/3] * mid * mid
	}
	return ke
}

// EnergyDrift tracks the largest relative change of total energy from its
// first sample. Only meaningful without friction and noise.
type EnergyDrift struct {
	name          string
	masses        []float64
	prevV         []float64
	prevE         float64
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(masses []float64) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		masses: masses,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(step int, x, v []float64, potential float64) {
	if e.prevV != nil {
		energy := kinetic(e.masses, e.prevV, v) + e.prevE

		if e.samples == 0 {
			e.initialEnergy = energy
		}
		e.currentEnergy = energy
		e.samples++

		if e.initialEnergy != 0 {
			drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
			e.maxDrift = math.Max(e.maxDrift, drift)
		}
	}
	e.prevV = append(e.prevV[:0], v...)
	e.prevE = potential
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

// Current is the most recent total energy.
func (e *EnergyDrift) Current() float64 {
	return e.currentEnergy
}

func (e *EnergyDrift) Reset() {
	e.prevV = nil
	e.prevE = 0
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// Temperature averages the instantaneous kinetic temperature in kelvin.
type Temperature struct {
	name    string
	masses  []float64
	prevV   []float64
	sum     float64
	samples int
}

func NewTemperature(masses []float64) *Temperature {
	return &Temperature{
		name:   "temperature",
		masses: masses,
	}
}

func (t *Temperature) Name() string { return t.name }

func (t *Temperature) Observe(step int, x, v []float64, potential float64) {
	if t.prevV != nil {
		dof := float64(len(v))
		t.sum += 2 * kinetic(t.masses, t.prevV, v) / (dof * integrators.Boltzmann)
		t.samples++
	}
	t.prevV = append(t.prevV[:0], v...)
}

func (t *Temperature) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return t.sum / float64(t.samples)
}

func (t *Temperature) Reset() {
	t.prevV = nil
	t.sum = 0
	t.samples = 0
}

// SpeedLimit reports the fraction of steps in which every atom stayed
// under limit (nm/ps). A low value means dt is too large for the stiffest
// term. Peak is the fastest atom seen.
type SpeedLimit struct {
	limit   float64
	peak    float64
	within  int
	samples int
}

func NewSpeedLimit(limit float64) *SpeedLimit {
	return &SpeedLimit{limit: limit}
}

func (s *SpeedLimit) Name() string { return "speed_limit" }

func (s *SpeedLimit) Observe(step int, x, v []float64, potential float64) {
	fastest := 0.0
	for i := 0; i+2 < len(v); i += 3 {
		fastest = math.Max(fastest, math.Sqrt(v[i]*v[i]+v[i+1]*v[i+1]+v[i+2]*v[i+2]))
	}
	s.peak = math.Max(s.peak, fastest)
	if fastest <= s.limit {
		s.within++
	}
	s.samples++
}

func (s *SpeedLimit) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return float64(s.within) / float64(s.samples)
}

func (s *SpeedLimit) Peak() float64 { return s.peak }

func (s *SpeedLimit) Reset() {
	*s = SpeedLimit{limit: s.limit}
}
