package potentials

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
)

// Kind names an energy term implementation.
type Kind string

const (
	HarmonicBond      Kind = "HarmonicBond"
	HarmonicAngle     Kind = "HarmonicAngle"
	PeriodicTorsion   Kind = "PeriodicTorsion"
	LennardJones      Kind = "LennardJones"
	Electrostatics    Kind = "Electrostatics"
	Nonbonded         Kind = "Nonbonded"
	GBSA              Kind = "GBSA"
	Restraint         Kind = "Restraint"
	CentroidRestraint Kind = "CentroidRestraint"
)

// Kinds lists every supported term kind.
func Kinds() []Kind {
	return []Kind{
		HarmonicBond, HarmonicAngle, PeriodicTorsion,
		LennardJones, Electrostatics, Nonbonded, GBSA,
		Restraint, CentroidRestraint,
	}
}

// Term is one energy contribution of a system at alchemical coefficient λ.
//
// Evaluate accumulates ∂E/∂x into grad and returns E and ∂E/∂λ.
//
// VJP differentiates L = gradAdj·∂E/∂x + duDlAdj·∂E/∂λ. It accumulates
// ∂L/∂x into xAdj and ∂L/∂p into paramAdj, which has length NumParams.
// Neither call allocates per atom; both are safe to call repeatedly.
type Term[T dynamo.Float] interface {
	Kind() Kind
	NumParams() int
	Params() []T
	Evaluate(x dynamo.Vec[T], lambda T, grad dynamo.Vec[T]) (energy, duDl T)
	VJP(x dynamo.Vec[T], lambda T, gradAdj dynamo.Vec[T], duDlAdj T, xAdj dynamo.Vec[T], paramAdj []T)
}

// interaction is one group of atoms and the parameter slots its energy reads.
type interaction struct {
	atoms  []int
	params []int
}

// energyFunc evaluates the energy of interaction k from its local
// coordinates (3 per atom), its parameters and λ.
type energyFunc[T dynamo.Float] func(k int, xs, ps []hyper[T], lam hyper[T]) hyper[T]

// localTerm differentiates a sum of interaction energies with hyper-dual
// arithmetic. Every derivative it reports is exact to round-off.
type localTerm[T dynamo.Float] struct {
	kind   Kind
	params []T
	inter  []interaction
	energy energyFunc[T]

	xs, ps []hyper[T]
}

func newLocalTerm[T dynamo.Float](kind Kind, params []T, inter []interaction, fn energyFunc[T]) *localTerm[T] {
	maxAtoms, maxParams := 0, 0
	for _, in := range inter {
		maxAtoms = max(maxAtoms, len(in.atoms))
		maxParams = max(maxParams, len(in.params))
	}
	return &localTerm[T]{
		kind:   kind,
		params: params,
		inter:  inter,
		energy: fn,
		xs:     make([]hyper[T], 3*maxAtoms),
		ps:     make([]hyper[T], maxParams),
	}
}

func (t *localTerm[T]) Kind() Kind     { return t.kind }
func (t *localTerm[T]) NumParams() int { return len(t.params) }
func (t *localTerm[T]) Params() []T    { return t.params }

func (t *localTerm[T]) load(in interaction, x dynamo.Vec[T]) (xs, ps []hyper[T]) {
	xs = t.xs[:3*len(in.atoms)]
	for c, atom := range in.atoms {
		for d := 0; d < 3; d++ {
			xs[3*c+d] = konst(x[3*atom+d])
		}
	}
	ps = t.ps[:len(in.params)]
	for j, p := range in.params {
		ps[j] = konst(t.params[p])
	}
	return xs, ps
}

func (t *localTerm[T]) Evaluate(x dynamo.Vec[T], lambda T, grad dynamo.Vec[T]) (T, T) {
	var energy, duDl T
	for k, in := range t.inter {
		xs, ps := t.load(in, x)

		lam := hyper[T]{a: lambda, b: 1}
		e := t.energy(k, xs, ps, lam)
		energy += e.a
		duDl += e.b
		lam.b = 0

		for c := range xs {
			xs[c].b = 1
			grad[3*in.atoms[c/3]+c%3] += t.energy(k, xs, ps, lam).b
			xs[c].b = 0
		}
	}
	return energy, duDl
}

func (t *localTerm[T]) VJP(x dynamo.Vec[T], lambda T, gradAdj dynamo.Vec[T], duDlAdj T, xAdj dynamo.Vec[T], paramAdj []T) {
	for k, in := range t.inter {
		xs, ps := t.load(in, x)
		nonzero := duDlAdj != 0
		for c := range xs {
			xs[c].c = gradAdj[3*in.atoms[c/3]+c%3]
			nonzero = nonzero || xs[c].c != 0
		}
		if !nonzero {
			continue
		}
		lam := hyper[T]{a: lambda, c: duDlAdj}

		for c := range xs {
			xs[c].b = 1
			xAdj[3*in.atoms[c/3]+c%3] += t.energy(k, xs, ps, lam).d
			xs[c].b = 0
		}
		for j := range ps {
			ps[j].b = 1
			paramAdj[in.params[j]] += t.energy(k, xs, ps, lam).d
			ps[j].b = 0
		}
	}
}

// checkAtoms rejects out-of-range or repeated atoms within one interaction.
func checkAtoms(numAtoms int, atoms []int) error {
	for i, a := range atoms {
		if a < 0 || a >= numAtoms {
			return dynamo.Configf("atom index %d out of range [0, %d)", a, numAtoms)
		}
		for _, b := range atoms[:i] {
			if a == b {
				return dynamo.Configf("atom %d repeated in %v", a, atoms)
			}
		}
	}
	return nil
}

// rowIndex resolves the parameter row used by interaction i.
func rowIndex(idxs []int, i, rows int) (int, error) {
	r := i
	if idxs != nil {
		r = idxs[i]
	}
	if r < 0 || r >= rows {
		return 0, dynamo.Configf("parameter row %d out of range [0, %d)", r, rows)
	}
	return r, nil
}

func checkIdxLen(name string, idxs []int, n int) error {
	if idxs != nil && len(idxs) != n {
		return fmt.Errorf("%w: %s has %d entries, want %d", dynamo.ErrDimensionMismatch, name, len(idxs), n)
	}
	return nil
}
