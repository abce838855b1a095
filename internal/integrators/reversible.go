package integrators

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
)

// Potential supplies forces for one step of the λ schedule.
type Potential[T dynamo.Float] interface {
	BeginStep(t int)
	// Evaluate writes ∇E(x) into grad and records step outputs.
	Evaluate(x, grad dynamo.Vec[T]) T
	// Replay writes ∇E(x) into grad without recording.
	Replay(x, grad dynamo.Vec[T]) T
	// Backward adds to xAdj the position adjoint induced by gradAdj on the
	// force and by any seeded output adjoints of the current step.
	Backward(x, gradAdj, xAdj dynamo.Vec[T])
}

// Observer receives the state at the start of every forward step.
type Observer interface {
	Observe(step int, x, v []float64, potential float64)
}

// Reversible integrates Langevin dynamics whose every step can be undone
// in closed form:
//
//	x_t = x_{t+1} - v_{t+1}·dt
//	v_t = (v_{t+1} + cb·∇E(x_t) - cc·η_t) / ca
//
// η_t is regenerated from (seed, t), so Backward reconstructs the forward
// trajectory without storing it and runs the adjoint recursion alongside.
// Any replacement update rule must keep this closed-form inverse.
type Reversible[T dynamo.Float] struct {
	pot   Potential[T]
	ca    []T
	cb    []T
	cc    []T
	dt    T
	seed  int64
	steps int
	quiet bool

	x0, v0 dynamo.Vec[T]
	x, v   dynamo.Vec[T]
	grad   dynamo.Vec[T]
	noise  dynamo.Vec[T]

	xAdj, vAdj, gAdj dynamo.Vec[T]

	integrated bool
	observers  []Observer
}

func NewReversible[T dynamo.Float](pot Potential[T], coeff Coefficients, seed int64, steps int, x0, v0 [][3]float64) (*Reversible[T], error) {
	n := len(x0)
	if len(v0) != n {
		return nil, fmt.Errorf("%w: %d positions and %d velocities", dynamo.ErrDimensionMismatch, n, len(v0))
	}
	if steps <= 0 {
		return nil, dynamo.Configf("step count %d must be positive", steps)
	}
	if err := coeff.Validate(n); err != nil {
		return nil, err
	}

	r := &Reversible[T]{
		pot:   pot,
		ca:    make([]T, n),
		cb:    make([]T, n),
		cc:    make([]T, n),
		dt:    T(coeff.Dt),
		seed:  seed,
		steps: steps,
		quiet: coeff.noiseless(),
		x0:    dynamo.FromRows[T](x0),
		v0:    dynamo.FromRows[T](v0),
		grad:  dynamo.NewVec[T](n),
		noise: dynamo.NewVec[T](n),
		xAdj:  dynamo.NewVec[T](n),
		vAdj:  dynamo.NewVec[T](n),
		gAdj:  dynamo.NewVec[T](n),
	}
	for i := 0; i < n; i++ {
		r.ca[i], r.cb[i], r.cc[i] = T(coeff.Ca[i]), T(coeff.Cb[i]), T(coeff.Cc[i])
	}
	if !r.x0.IsValid() || !r.v0.IsValid() {
		return nil, dynamo.ErrInvalidState
	}
	r.x = r.x0.Clone()
	r.v = r.v0.Clone()
	return r, nil
}

func (r *Reversible[T]) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

func (r *Reversible[T]) Steps() int { return r.steps }

// State returns the current positions and velocities.
func (r *Reversible[T]) State() (x, v dynamo.Vec[T]) {
	return r.x, r.v
}

func (r *Reversible[T]) drawNoise(t int) {
	if r.quiet {
		return
	}
	Noise[T](r.seed, t, r.noise)
}

// Forward integrates from (x0, v0) over every step and returns the frames
// x_t for t a multiple of FrameStride(steps, frameCount).
func (r *Reversible[T]) Forward(frameCount int) ([][][3]float64, error) {
	copy(r.x, r.x0)
	copy(r.v, r.v0)
	r.integrated = false

	stride := FrameStride(r.steps, frameCount)
	var frames [][][3]float64

	for t := 0; t < r.steps; t++ {
		if stride > 0 && t%stride == 0 {
			frames = append(frames, r.x.Rows())
		}

		r.pot.BeginStep(t)
		e := r.pot.Evaluate(r.x, r.grad)
		r.drawNoise(t)

		if len(r.observers) > 0 {
			xs, vs := r.x.Float64s(), r.v.Float64s()
			for _, o := range r.observers {
				o.Observe(t, xs, vs, float64(e))
			}
		}

		for i := range r.x {
			a := i / 3
			r.v[i] = r.ca[a]*r.v[i] - r.cb[a]*r.grad[i] + r.cc[a]*r.noise[i]
			r.x[i] += r.v[i] * r.dt
		}

		if !r.x.IsValid() || !r.v.IsValid() {
			return nil, &dynamo.StepError{Step: t, Phase: "forward", Wrapped: dynamo.ErrInvalidState}
		}
	}

	r.integrated = true
	return frames, nil
}

// Backward walks the trajectory from step T back to 0, restoring (x0, v0)
// to round-off. xTAdj is the adjoint of the final positions; nil means
// zero. Seeded output adjoints are consumed by the Potential.
func (r *Reversible[T]) Backward(xTAdj dynamo.Vec[T]) error {
	if !r.integrated {
		return dynamo.ErrNotIntegrated
	}
	if xTAdj != nil && len(xTAdj) != len(r.x) {
		return fmt.Errorf("%w: final position adjoint has %d entries, want %d", dynamo.ErrDimensionMismatch, len(xTAdj), len(r.x))
	}
	r.xAdj.Zero()
	r.vAdj.Zero()
	if xTAdj != nil {
		copy(r.xAdj, xTAdj)
	}

	for t := r.steps - 1; t >= 0; t-- {
		for i := range r.x {
			r.x[i] -= r.v[i] * r.dt
		}

		r.pot.BeginStep(t)
		r.pot.Replay(r.x, r.grad)
		r.drawNoise(t)

		for i := range r.v {
			a := i / 3
			r.v[i] = (r.v[i] + r.cb[a]*r.grad[i] - r.cc[a]*r.noise[i]) / r.ca[a]

			r.vAdj[i] += r.dt * r.xAdj[i]
			r.gAdj[i] = -r.cb[a] * r.vAdj[i]
			r.vAdj[i] *= r.ca[a]
		}
		r.pot.Backward(r.x, r.gAdj, r.xAdj)

		if !r.x.IsValid() || !r.v.IsValid() {
			return &dynamo.StepError{Step: t, Phase: "backward", Wrapped: dynamo.ErrInvalidState}
		}
	}

	r.integrated = false
	return nil
}
