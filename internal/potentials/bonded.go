package potentials

import (
	"github.com/san-kum/revsim/internal/dynamo"
)

func newBond[T dynamo.Float](a *BondArgs, numAtoms int) (*localTerm[T], error) {
	if err := checkIdxLen("param_idxs", a.ParamIdxs, len(a.Bonds)); err != nil {
		return nil, err
	}
	inter := make([]interaction, len(a.Bonds))
	for i, b := range a.Bonds {
		if err := checkAtoms(numAtoms, b[:]); err != nil {
			return nil, err
		}
		row, err := rowIndex(a.ParamIdxs, i, len(a.Params))
		if err != nil {
			return nil, err
		}
		inter[i] = interaction{atoms: []int{b[0], b[1]}, params: []int{2 * row, 2*row + 1}}
	}
	return newLocalTerm[T](HarmonicBond, convert[T](flatten2(a.Params)), inter, bondEnergy[T]), nil
}

func bondEnergy[T dynamo.Float](_ int, xs, ps []hyper[T], _ hyper[T]) hyper[T] {
	r := at(xs, 1).sub(at(xs, 0)).norm()
	dr := r.sub(ps[1])
	return ps[0].mul(dr.sq()).scale(0.5)
}

func newAngle[T dynamo.Float](a *AngleArgs, numAtoms int) (*localTerm[T], error) {
	if err := checkIdxLen("param_idxs", a.ParamIdxs, len(a.Angles)); err != nil {
		return nil, err
	}
	inter := make([]interaction, len(a.Angles))
	for i, ang := range a.Angles {
		if err := checkAtoms(numAtoms, ang[:]); err != nil {
			return nil, err
		}
		row, err := rowIndex(a.ParamIdxs, i, len(a.Params))
		if err != nil {
			return nil, err
		}
		inter[i] = interaction{atoms: []int{ang[0], ang[1], ang[2]}, params: []int{2 * row, 2*row + 1}}
	}
	return newLocalTerm[T](HarmonicAngle, convert[T](flatten2(a.Params)), inter, angleEnergy[T]), nil
}

func angleEnergy[T dynamo.Float](_ int, xs, ps []hyper[T], _ hyper[T]) hyper[T] {
	vi := at(xs, 0).sub(at(xs, 1))
	vk := at(xs, 2).sub(at(xs, 1))
	theta := atan2(vi.cross(vk).norm(), vi.dot(vk))
	dt := theta.sub(ps[1])
	return ps[0].mul(dt.sq()).scale(0.5)
}

func newTorsion[T dynamo.Float](a *TorsionArgs, numAtoms int) (*localTerm[T], error) {
	if err := checkIdxLen("param_idxs", a.ParamIdxs, len(a.Torsions)); err != nil {
		return nil, err
	}
	inter := make([]interaction, len(a.Torsions))
	for i, tor := range a.Torsions {
		if err := checkAtoms(numAtoms, tor[:]); err != nil {
			return nil, err
		}
		row, err := rowIndex(a.ParamIdxs, i, len(a.Params))
		if err != nil {
			return nil, err
		}
		inter[i] = interaction{
			atoms:  []int{tor[0], tor[1], tor[2], tor[3]},
			params: []int{3 * row, 3*row + 1, 3*row + 2},
		}
	}
	return newLocalTerm[T](PeriodicTorsion, convert[T](flatten3(a.Params)), inter, torsionEnergy[T]), nil
}

func torsionEnergy[T dynamo.Float](_ int, xs, ps []hyper[T], _ hyper[T]) hyper[T] {
	b1 := at(xs, 1).sub(at(xs, 0))
	b2 := at(xs, 2).sub(at(xs, 1))
	b3 := at(xs, 3).sub(at(xs, 2))
	n1 := b1.cross(b2)
	n2 := b2.cross(b3)
	phi := atan2(b2.norm().mul(b1.dot(n2)), n1.dot(n2))
	arg := ps[2].mul(phi).sub(ps[1])
	return ps[0].mul(arg.cos().shift(1))
}

func newRestraint[T dynamo.Float](a *RestraintArgs, numAtoms int) (*localTerm[T], error) {
	if len(a.Params) != len(a.Pairs) {
		return nil, dynamo.Configf("restraint has %d pairs and %d parameter rows", len(a.Pairs), len(a.Params))
	}
	inter := make([]interaction, len(a.Pairs))
	for i, p := range a.Pairs {
		if err := checkAtoms(numAtoms, p[:]); err != nil {
			return nil, err
		}
		inter[i] = interaction{atoms: []int{p[0], p[1]}}
	}
	consts := convert[T](flatten2(a.Params))
	fn := func(k int, xs, _ []hyper[T], lam hyper[T]) hyper[T] {
		r := at(xs, 1).sub(at(xs, 0)).norm()
		dr := r.shift(-consts[2*k+1])
		return lam.mul(dr.sq()).scale(0.5 * consts[2*k])
	}
	return newLocalTerm[T](Restraint, nil, inter, fn), nil
}

func newCentroid[T dynamo.Float](a *CentroidArgs, numAtoms int) (*localTerm[T], error) {
	if len(a.GroupA) == 0 || len(a.GroupB) == 0 {
		return nil, dynamo.Configf("centroid restraint needs two non-empty groups")
	}
	if err := checkAtoms(numAtoms, a.GroupA); err != nil {
		return nil, err
	}
	if err := checkAtoms(numAtoms, a.GroupB); err != nil {
		return nil, err
	}
	wa, err := normWeights[T](a.WeightsA, len(a.GroupA))
	if err != nil {
		return nil, err
	}
	wb, err := normWeights[T](a.WeightsB, len(a.GroupB))
	if err != nil {
		return nil, err
	}
	na := len(a.GroupA)
	atoms := append(append([]int{}, a.GroupA...), a.GroupB...)
	k, b0 := T(a.K), T(a.B0)

	fn := func(_ int, xs, _ []hyper[T], _ hyper[T]) hyper[T] {
		var ca, cb vec3[T]
		for i, w := range wa {
			ca = ca.add(at(xs, i).scale(w))
		}
		for i, w := range wb {
			cb = cb.add(at(xs, na+i).scale(w))
		}
		d := ca.sub(cb)
		if b0 == 0 {
			return d.norm2().scale(0.5 * k)
		}
		return d.norm().shift(-b0).sq().scale(0.5 * k)
	}
	return newLocalTerm[T](CentroidRestraint, nil, []interaction{{atoms: atoms}}, fn), nil
}

func normWeights[T dynamo.Float](w []float64, n int) ([]T, error) {
	out := make([]T, n)
	if w == nil {
		for i := range out {
			out[i] = T(1 / float64(n))
		}
		return out, nil
	}
	if len(w) != n {
		return nil, dynamo.Configf("%d weights for %d atoms", len(w), n)
	}
	sum := 0.0
	for _, v := range w {
		if v <= 0 {
			return nil, dynamo.ErrNonPositiveParam
		}
		sum += v
	}
	for i, v := range w {
		out[i] = T(v / sum)
	}
	return out, nil
}
