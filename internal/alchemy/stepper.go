// Package alchemy evaluates a set of energy terms along a per-step λ
// schedule, records the dU/dλ series of each term, and routes adjoints of
// those series back into per-term parameter gradients.
package alchemy

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/potentials"
)

// Parallel runs independent work items. compute.Backend satisfies it.
type Parallel interface {
	ParallelFor(n, minChunk int, fn func(start, end int))
}

type serial struct{}

func (serial) ParallelFor(n, _ int, fn func(start, end int)) {
	if n > 0 {
		fn(0, n)
	}
}

// Stepper sums the forces of its terms at the λ of the current step.
// Each term writes to its own buffer and buffers are summed in term order,
// so results do not depend on the Parallel in use.
type Stepper[T dynamo.Float] struct {
	terms   []potentials.Term[T]
	lambdas []T
	par     Parallel

	step int

	energies     []float64
	termEnergies [][]float64
	duDl         [][]float64
	duDlAdj      [][]T
	paramAdj     [][]T

	grads []dynamo.Vec[T]
	xAdjs []dynamo.Vec[T]
	e, dl []T
}

func New[T dynamo.Float](terms []potentials.Term[T], lambdas []float64, numAtoms int) *Stepper[T] {
	s := &Stepper[T]{
		terms:        terms,
		lambdas:      make([]T, len(lambdas)),
		par:          serial{},
		energies:     make([]float64, len(lambdas)),
		termEnergies: make([][]float64, len(terms)),
		duDl:         make([][]float64, len(terms)),
		duDlAdj:      make([][]T, len(terms)),
		paramAdj:     make([][]T, len(terms)),
		grads:        make([]dynamo.Vec[T], len(terms)),
		xAdjs:        make([]dynamo.Vec[T], len(terms)),
		e:            make([]T, len(terms)),
		dl:           make([]T, len(terms)),
	}
	for i, l := range lambdas {
		s.lambdas[i] = T(l)
	}
	for i, t := range terms {
		s.termEnergies[i] = make([]float64, len(lambdas))
		s.duDl[i] = make([]float64, len(lambdas))
		s.duDlAdj[i] = make([]T, len(lambdas))
		s.paramAdj[i] = make([]T, t.NumParams())
		s.grads[i] = dynamo.NewVec[T](numAtoms)
		s.xAdjs[i] = dynamo.NewVec[T](numAtoms)
	}
	return s
}

// Use sets the Parallel used for term evaluation. A nil p evaluates
// terms one after another.
func (s *Stepper[T]) Use(p Parallel) {
	if p == nil {
		p = serial{}
	}
	s.par = p
}

func (s *Stepper[T]) Steps() int { return len(s.lambdas) }

// BeginStep selects the λ of step t.
func (s *Stepper[T]) BeginStep(t int) {
	s.step = t
}

// Evaluate writes the total energy gradient at x into grad and records
// the energy and per-term dU/dλ of the current step.
func (s *Stepper[T]) Evaluate(x, grad dynamo.Vec[T]) T {
	total := s.eval(x, grad)
	s.energies[s.step] = float64(total)
	for i := range s.terms {
		s.termEnergies[i][s.step] = float64(s.e[i])
		s.duDl[i][s.step] = float64(s.dl[i])
	}
	return total
}

// Replay is Evaluate without recording.
func (s *Stepper[T]) Replay(x, grad dynamo.Vec[T]) T {
	return s.eval(x, grad)
}

func (s *Stepper[T]) eval(x, grad dynamo.Vec[T]) T {
	lam := s.lambdas[s.step]
	s.par.ParallelFor(len(s.terms), 1, func(start, end int) {
		for i := start; i < end; i++ {
			s.grads[i].Zero()
			s.e[i], s.dl[i] = s.terms[i].Evaluate(x, lam, s.grads[i])
		}
	})

	grad.Zero()
	var total T
	for i := range s.terms {
		grad.AddInPlace(s.grads[i])
		total += s.e[i]
	}
	return total
}

// Backward runs AccumulateParamGrad for every term at the current step.
func (s *Stepper[T]) Backward(x, gradAdj, xAdj dynamo.Vec[T]) {
	lam := s.lambdas[s.step]
	s.par.ParallelFor(len(s.terms), 1, func(start, end int) {
		for i := start; i < end; i++ {
			s.xAdjs[i].Zero()
			s.terms[i].VJP(x, lam, gradAdj, s.duDlAdj[i][s.step], s.xAdjs[i], s.paramAdj[i])
		}
	})
	for i := range s.terms {
		xAdj.AddInPlace(s.xAdjs[i])
	}
}

// AccumulateParamGrad projects the adjoint of term i's force and of its
// seeded dU/dλ at the current step into the term's parameter accumulator,
// adding the induced position adjoint into xAdj.
func (s *Stepper[T]) AccumulateParamGrad(i int, x, gradAdj, xAdj dynamo.Vec[T]) {
	s.terms[i].VJP(x, s.lambdas[s.step], gradAdj, s.duDlAdj[i][s.step], xAdj, s.paramAdj[i])
}

// SeedAdjoint sets the adjoint of term's dU/dλ output at step.
func (s *Stepper[T]) SeedAdjoint(step, term int, value float64) {
	s.duDlAdj[term][step] = T(value)
}

// SetDuDlAdjoint seeds every step of every term. A nil entry seeds zeros.
func (s *Stepper[T]) SetDuDlAdjoint(adj [][]float64) error {
	if err := s.CheckAdjoint(adj); err != nil {
		return err
	}
	for i := range s.duDlAdj {
		clear(s.duDlAdj[i])
		if i < len(adj) {
			for t, v := range adj[i] {
				s.duDlAdj[i][t] = T(v)
			}
		}
	}
	return nil
}

// CheckAdjoint reports whether adj is aligned with the dU/dλ series.
func (s *Stepper[T]) CheckAdjoint(adj [][]float64) error {
	if adj != nil && len(adj) != len(s.terms) {
		return fmt.Errorf("%w: %d dU/dλ adjoints for %d terms", dynamo.ErrDimensionMismatch, len(adj), len(s.terms))
	}
	for i, a := range adj {
		if a != nil && len(a) != len(s.lambdas) {
			return fmt.Errorf("%w: term %d adjoint has %d steps, want %d", dynamo.ErrDimensionMismatch, i, len(a), len(s.lambdas))
		}
	}
	return nil
}

// ResetAdjoints zeroes the parameter accumulators.
func (s *Stepper[T]) ResetAdjoints() {
	for i := range s.paramAdj {
		clear(s.paramAdj[i])
	}
}

// ParamGrads returns a copy of each term's accumulated parameter gradient.
func (s *Stepper[T]) ParamGrads() [][]float64 {
	out := make([][]float64, len(s.paramAdj))
	for i, p := range s.paramAdj {
		out[i] = make([]float64, len(p))
		for j, v := range p {
			out[i][j] = float64(v)
		}
	}
	return out
}

// Energies returns the total energy recorded at every step.
func (s *Stepper[T]) Energies() []float64 {
	return append([]float64(nil), s.energies...)
}

// TermEnergies returns the per-term energy series.
func (s *Stepper[T]) TermEnergies() [][]float64 {
	out := make([][]float64, len(s.termEnergies))
	for i, e := range s.termEnergies {
		out[i] = append([]float64(nil), e...)
	}
	return out
}

// DuDl returns the per-term dU/dλ series. A series that is zero at every
// step is returned as nil.
func (s *Stepper[T]) DuDl() [][]float64 {
	out := make([][]float64, len(s.duDl))
	for i, series := range s.duDl {
		for _, v := range series {
			if v != 0 {
				out[i] = append([]float64(nil), series...)
				break
			}
		}
	}
	return out
}
