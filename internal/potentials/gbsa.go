package potentials

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
)

// OBC defaults, nm and kJ/mol.
const (
	DefaultDielectricOffset  = 0.009
	DefaultGBCutoff          = 2.0
	DefaultAlphaOBC          = 1.0
	DefaultBetaOBC           = 0.8
	DefaultGammaOBC          = 4.85
	DefaultSoluteDielectric  = 1.0
	DefaultSolventDielectric = 78.5
	DefaultSurfaceTension    = 28.3919551
	DefaultProbeRadius       = 0.14
)

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// newGBSA builds the OBC generalized Born term with an ACE surface-area
// contribution. The whole system is a single interaction, so every
// derivative costs O(N²) per coordinate.
func newGBSA[T dynamo.Float](a *GBSAArgs, numAtoms int) (*localTerm[T], error) {
	if err := checkIdxLen("charge_idxs", a.ChargeIdxs, numAtoms); err != nil {
		return nil, err
	}
	if err := checkIdxLen("radius_idxs", a.RadiusIdxs, numAtoms); err != nil {
		return nil, err
	}
	offset := orDefault(a.DielectricOffset, DefaultDielectricOffset)
	for i, row := range a.Radii {
		if row[0]-offset <= 0 {
			return nil, fmt.Errorf("%w: gb row %d radius %v not above offset %v", dynamo.ErrNonPositiveParam, i, row[0], offset)
		}
		if row[1] <= 0 {
			return nil, fmt.Errorf("%w: gb row %d scale %v", dynamo.ErrNonPositiveParam, i, row[1])
		}
	}

	nq := len(a.Charges)
	atoms := make([]int, numAtoms)
	slots := make([]int, 0, 3*numAtoms)
	for i := range atoms {
		atoms[i] = i
		q, err := rowIndex(a.ChargeIdxs, i, nq)
		if err != nil {
			return nil, err
		}
		r, err := rowIndex(a.RadiusIdxs, i, len(a.Radii))
		if err != nil {
			return nil, err
		}
		slots = append(slots, q, nq+2*r, nq+2*r+1)
	}

	var (
		off     = T(offset)
		cutoff  = T(orDefault(a.Cutoff, DefaultGBCutoff))
		alpha   = T(orDefault(a.Alpha, DefaultAlphaOBC))
		beta    = T(orDefault(a.Beta, DefaultBetaOBC))
		gamma   = T(orDefault(a.Gamma, DefaultGammaOBC))
		pre     = T(-0.5 * OneFourPiEps0 * (1/orDefault(a.SoluteDielectric, DefaultSoluteDielectric) - 1/orDefault(a.SolventDielectric, DefaultSolventDielectric)))
		surface = T(orDefault(a.SurfaceTension, DefaultSurfaceTension))
		probe   = T(orDefault(a.ProbeRadius, DefaultProbeRadius))
	)
	born := make([]hyper[T], numAtoms)

	fn := func(_ int, xs, ps []hyper[T], _ hyper[T]) hyper[T] {
		n := len(born)
		for i := 0; i < n; i++ {
			radius := ps[3*i+1]
			oRI := radius.shift(-off)
			var sum hyper[T]
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				d := at(xs, i).sub(at(xs, j)).norm()
				if d.a >= cutoff {
					continue
				}
				sRJ := ps[3*j+1].shift(-off).mul(ps[3*j+2])
				rSRJ := d.add(sRJ)
				if oRI.a >= rSRJ.a {
					continue
				}
				l := hmax(oRI, d.sub(sRJ).abs()).inv()
				u := rSRJ.inv()
				l2, u2 := l.sq(), u.sq()
				dInv := d.inv()
				term := l.sub(u).
					add(d.mul(u2.sub(l2)).scale(0.25)).
					add(u.div(l).log().mul(dInv).scale(0.5)).
					add(sRJ.sq().mul(dInv).mul(l2.sub(u2)).scale(0.25))
				if oRI.a < sRJ.a-d.a {
					term = term.add(oRI.inv().sub(l).scale(2))
				}
				sum = sum.add(term)
			}
			psi := sum.mul(oRI).scale(0.5)
			psi2 := psi.sq()
			arg := psi.scale(alpha).sub(psi2.scale(beta)).add(psi2.mul(psi).scale(gamma))
			born[i] = oRI.inv().sub(arg.tanh().div(radius)).inv()
		}

		var e hyper[T]
		for i := 0; i < n; i++ {
			qi := ps[3*i]
			e = e.add(qi.sq().div(born[i]).scale(pre))
			for j := i + 1; j < n; j++ {
				r2 := at(xs, i).sub(at(xs, j)).norm2()
				bb := born[i].mul(born[j])
				f := r2.add(bb.mul(r2.div(bb).scale(-0.25).exp())).sqrt()
				e = e.add(qi.mul(ps[3*j]).div(f).scale(2 * pre))
			}
			ratio := ps[3*i+1].div(born[i])
			r6 := ratio.sq().mul(ratio.sq()).mul(ratio.sq())
			e = e.add(ps[3*i+1].shift(probe).sq().mul(r6).scale(surface))
		}
		return e
	}

	params := append(append([]float64{}, a.Charges...), flatten2(a.Radii)...)
	return newLocalTerm[T](GBSA, convert[T](params), []interaction{{atoms: atoms, params: slots}}, fn), nil
}
