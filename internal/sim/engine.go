package sim

import (
	"fmt"

	"github.com/san-kum/revsim/internal/alchemy"
	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/integrators"
	"github.com/san-kum/revsim/internal/potentials"
)

// ForwardResult holds the outputs of one forward pass. DuDls has one entry
// per term; a nil entry is a series that was zero at every step.
type ForwardResult struct {
	DuDls        [][]float64    `json:"du_dls"`
	Energies     []float64      `json:"energies"`
	TermEnergies [][]float64    `json:"term_energies,omitempty"`
	Frames       [][][3]float64 `json:"frames,omitempty"`
}

// Adjoint seeds a backward pass. DuDl is aligned with ForwardResult.DuDls
// and may be nil or hold nil entries. XT is the adjoint of the final
// positions and may be nil.
type Adjoint struct {
	DuDl [][]float64
	XT   [][3]float64
}

type runner interface {
	forward(par alchemy.Parallel, frames int) (*ForwardResult, error)
	checkAdjoint(adj Adjoint) error
	backward(par alchemy.Parallel, adj Adjoint) ([][]float64, error)
	state() (x, v [][3]float64)
	observe(o integrators.Observer)
}

// Engine is a system assembled at a fixed precision.
type Engine struct {
	sys       System
	precision dynamo.Precision
	r         runner
}

// Assemble validates sys and builds its terms, stepper and integrator at
// the requested precision.
func Assemble(sys System, prec dynamo.Precision) (*Engine, error) {
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	var (
		r   runner
		err error
	)
	switch prec {
	case dynamo.Single:
		r, err = newEngine[float32](sys)
	case dynamo.Double:
		r, err = newEngine[float64](sys)
	default:
		return nil, fmt.Errorf("%w: %v", dynamo.ErrUnknownPrecision, prec)
	}
	if err != nil {
		return nil, err
	}
	return &Engine{sys: sys, precision: prec, r: r}, nil
}

func (e *Engine) System() System                 { return e.sys }
func (e *Engine) Precision() dynamo.Precision    { return e.precision }
func (e *Engine) Observe(o integrators.Observer) { e.r.observe(o) }

// State returns the current positions and velocities.
func (e *Engine) State() (x, v [][3]float64) { return e.r.state() }

// Forward integrates the full λ schedule from the initial state. par may
// be nil.
func (e *Engine) Forward(par alchemy.Parallel, frames int) (*ForwardResult, error) {
	return e.r.forward(par, frames)
}

// ValidateAdjoint reports whether adj matches the shape of this engine's
// outputs.
func (e *Engine) ValidateAdjoint(adj Adjoint) error {
	return e.r.checkAdjoint(adj)
}

// Backward replays the last forward pass in reverse and returns one
// gradient payload per term.
func (e *Engine) Backward(par alchemy.Parallel, adj Adjoint) ([]potentials.ParamGrad, error) {
	raw, err := e.r.backward(par, adj)
	if err != nil {
		return nil, err
	}
	grads := make([]potentials.ParamGrad, len(e.sys.Terms))
	for i, spec := range e.sys.Terms {
		if grads[i], err = potentials.AssembleGrad(spec, raw[i]); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

type engine[T dynamo.Float] struct {
	numAtoms int
	stepper  *alchemy.Stepper[T]
	ctx      *integrators.Reversible[T]
}

func newEngine[T dynamo.Float](sys System) (*engine[T], error) {
	terms := make([]potentials.Term[T], len(sys.Terms))
	for i, spec := range sys.Terms {
		t, err := potentials.Build[T](spec, sys.NumAtoms())
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		terms[i] = t
	}
	st := alchemy.New(terms, sys.Integrator.Lambdas, sys.NumAtoms())
	ctx, err := integrators.NewReversible[T](st, sys.Coefficients(), sys.Integrator.Seed, sys.Steps(), sys.X0, sys.Velocities())
	if err != nil {
		return nil, err
	}
	return &engine[T]{numAtoms: sys.NumAtoms(), stepper: st, ctx: ctx}, nil
}

func (e *engine[T]) observe(o integrators.Observer) { e.ctx.AddObserver(o) }

func (e *engine[T]) state() (x, v [][3]float64) {
	xs, vs := e.ctx.State()
	return xs.Rows(), vs.Rows()
}

func (e *engine[T]) forward(par alchemy.Parallel, frames int) (*ForwardResult, error) {
	e.stepper.Use(par)
	fr, err := e.ctx.Forward(frames)
	if err != nil {
		return nil, err
	}
	return &ForwardResult{
		DuDls:        e.stepper.DuDl(),
		Energies:     e.stepper.Energies(),
		TermEnergies: e.stepper.TermEnergies(),
		Frames:       fr,
	}, nil
}

func (e *engine[T]) checkAdjoint(adj Adjoint) error {
	if err := e.stepper.CheckAdjoint(adj.DuDl); err != nil {
		return err
	}
	if adj.XT != nil && len(adj.XT) != e.numAtoms {
		return fmt.Errorf("%w: final position adjoint has %d rows, want %d", dynamo.ErrDimensionMismatch, len(adj.XT), e.numAtoms)
	}
	return nil
}

func (e *engine[T]) backward(par alchemy.Parallel, adj Adjoint) ([][]float64, error) {
	if err := e.checkAdjoint(adj); err != nil {
		return nil, err
	}
	e.stepper.Use(par)
	e.stepper.ResetAdjoints()
	if err := e.stepper.SetDuDlAdjoint(adj.DuDl); err != nil {
		return nil, err
	}
	var xT dynamo.Vec[T]
	if adj.XT != nil {
		xT = dynamo.FromRows[T](adj.XT)
	}
	if err := e.ctx.Backward(xT); err != nil {
		return nil, err
	}
	return e.stepper.ParamGrads(), nil
}
