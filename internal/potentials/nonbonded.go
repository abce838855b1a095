package potentials

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
)

// OneFourPiEps0 is the Coulomb constant in kJ·nm/(mol·e²).
const OneFourPiEps0 = 138.935456

type pairConst[T dynamo.Float] struct {
	qKeep, ljKeep T
	dw            T
}

// newPairTerm builds a LennardJones, Electrostatics or Nonbonded term over
// all atom pairs not fully excluded.
func newPairTerm[T dynamo.Float](kind Kind, a *NonbondedArgs, numAtoms int, useQ, useLJ bool) (*localTerm[T], error) {
	var params []float64
	ljOff := 0
	if useQ {
		if err := checkIdxLen("charge_idxs", a.ChargeIdxs, numAtoms); err != nil {
			return nil, err
		}
		params = append(params, a.Charges...)
		ljOff = len(a.Charges)
	}
	if useLJ {
		if err := checkIdxLen("lj_idxs", a.LJIdxs, numAtoms); err != nil {
			return nil, err
		}
		for i, row := range a.LJ {
			if row[1] <= 0 {
				return nil, fmt.Errorf("%w: lj row %d eps %v", dynamo.ErrNonPositiveParam, i, row[1])
			}
			if row[0] <= 0 {
				return nil, fmt.Errorf("%w: lj row %d sigma %v", dynamo.ErrNonPositiveParam, i, row[0])
			}
		}
		params = append(params, flatten2(a.LJ)...)
	}
	if a.LambdaFlags != nil && len(a.LambdaFlags) != numAtoms {
		return nil, dynamo.Configf("%d lambda flags for %d atoms", len(a.LambdaFlags), numAtoms)
	}
	for _, f := range a.LambdaFlags {
		if f < -1 || f > 1 {
			return nil, dynamo.Configf("lambda flag %d not in {-1, 0, 1}", f)
		}
	}
	excl, err := CanonicalExclusions(numAtoms, a.Exclusions)
	if err != nil {
		return nil, err
	}

	qRow := make([]int, numAtoms)
	ljRow := make([]int, numAtoms)
	for i := 0; i < numAtoms; i++ {
		if useQ {
			if qRow[i], err = rowIndex(a.ChargeIdxs, i, len(a.Charges)); err != nil {
				return nil, err
			}
		}
		if useLJ {
			if ljRow[i], err = rowIndex(a.LJIdxs, i, len(a.LJ)); err != nil {
				return nil, err
			}
		}
	}

	lambdaScale := a.LambdaScale
	if lambdaScale == 0 {
		lambdaScale = 1
	}
	flag := func(i int) float64 {
		if a.LambdaFlags == nil {
			return 0
		}
		return float64(a.LambdaFlags[i])
	}

	var (
		inter  []interaction
		consts []pairConst[T]
	)
	for i := 0; i < numAtoms; i++ {
		for j := i + 1; j < numAtoms; j++ {
			qKeep, ljKeep := 1.0, 1.0
			if e, ok := excl[pair{i, j}]; ok {
				qKeep, ljKeep = 1-e.ChargeScale, 1-e.LJScale
			}
			if !useQ {
				qKeep = 0
			}
			if !useLJ {
				ljKeep = 0
			}
			if qKeep == 0 && ljKeep == 0 {
				continue
			}
			var ps []int
			if useQ {
				ps = append(ps, qRow[i], qRow[j])
			}
			if useLJ {
				ps = append(ps, ljOff+2*ljRow[i], ljOff+2*ljRow[i]+1, ljOff+2*ljRow[j], ljOff+2*ljRow[j]+1)
			}
			inter = append(inter, interaction{atoms: []int{i, j}, params: ps})
			consts = append(consts, pairConst[T]{
				qKeep:  T(qKeep),
				ljKeep: T(ljKeep),
				dw:     T((flag(i) - flag(j)) * lambdaScale),
			})
		}
	}

	cutoff2 := T(a.Cutoff * a.Cutoff)
	fn := func(k int, xs, ps []hyper[T], lam hyper[T]) hyper[T] {
		c := consts[k]
		r2 := at(xs, 1).sub(at(xs, 0)).norm2()
		if c.dw != 0 {
			r2 = r2.add(lam.scale(c.dw).sq())
		}
		if cutoff2 > 0 && r2.a > cutoff2 {
			return hyper[T]{}
		}
		var e hyper[T]
		off := 0
		if useQ {
			if c.qKeep != 0 {
				e = ps[0].mul(ps[1]).mul(r2.sqrt().inv()).scale(OneFourPiEps0 * c.qKeep)
			}
			off = 2
		}
		if useLJ && c.ljKeep != 0 {
			sig := ps[off].add(ps[off+2]).scale(0.5)
			eps := ps[off+1].mul(ps[off+3]).sqrt()
			s2 := sig.sq().div(r2)
			s6 := s2.mul(s2).mul(s2)
			e = e.add(eps.mul(s6.sq().sub(s6)).scale(4 * c.ljKeep))
		}
		return e
	}
	return newLocalTerm[T](kind, convert[T](params), inter, fn), nil
}
