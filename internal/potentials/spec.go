package potentials

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
)

// Spec describes one energy term of a system. Exactly one argument block
// must be set, matching Kind. LennardJones, Electrostatics and Nonbonded
// all read the nonbonded block.
type Spec struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Bond      *BondArgs      `json:"bond,omitempty" yaml:"bond,omitempty"`
	Angle     *AngleArgs     `json:"angle,omitempty" yaml:"angle,omitempty"`
	Torsion   *TorsionArgs   `json:"torsion,omitempty" yaml:"torsion,omitempty"`
	Nonbonded *NonbondedArgs `json:"nonbonded,omitempty" yaml:"nonbonded,omitempty"`
	GBSA      *GBSAArgs      `json:"gbsa,omitempty" yaml:"gbsa,omitempty"`
	Restraint *RestraintArgs `json:"restraint,omitempty" yaml:"restraint,omitempty"`
	Centroid  *CentroidArgs  `json:"centroid,omitempty" yaml:"centroid,omitempty"`

	// GlobalIdxs maps each gradient block to positions in a shared
	// force-field parameter vector. Missing blocks map to 0..n-1.
	GlobalIdxs map[string][]int `json:"global_idxs,omitempty" yaml:"global_idxs,omitempty"`
}

// Label is the term name, falling back to its kind.
func (s Spec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Kind)
}

// BondArgs: E = k/2 (r - r0)^2. Params rows are (k, r0); ParamIdxs picks a
// row per bond and defaults to one row per bond.
type BondArgs struct {
	Bonds     [][2]int     `json:"bonds" yaml:"bonds"`
	Params    [][2]float64 `json:"params" yaml:"params"`
	ParamIdxs []int        `json:"param_idxs,omitempty" yaml:"param_idxs,omitempty"`
}

// AngleArgs: E = k/2 (θ - θ0)^2 with the middle atom at the vertex.
type AngleArgs struct {
	Angles    [][3]int     `json:"angles" yaml:"angles"`
	Params    [][2]float64 `json:"params" yaml:"params"`
	ParamIdxs []int        `json:"param_idxs,omitempty" yaml:"param_idxs,omitempty"`
}

// TorsionArgs: E = k (1 + cos(n φ - phase)). Params rows are (k, phase, n).
type TorsionArgs struct {
	Torsions  [][4]int     `json:"torsions" yaml:"torsions"`
	Params    [][3]float64 `json:"params" yaml:"params"`
	ParamIdxs []int        `json:"param_idxs,omitempty" yaml:"param_idxs,omitempty"`
}

// Exclusion removes a fraction of one pair interaction. A scale of 1
// removes it entirely.
type Exclusion struct {
	I           int     `json:"i" yaml:"i"`
	J           int     `json:"j" yaml:"j"`
	ChargeScale float64 `json:"charge_scale" yaml:"charge_scale"`
	LJScale     float64 `json:"lj_scale" yaml:"lj_scale"`
}

// NonbondedArgs holds per-atom charges and Lennard-Jones (σ, ε) rows.
// Atoms with a nonzero LambdaFlag are moved along a fourth dimension by
// flag·λ·LambdaScale, which decouples them as λ grows.
type NonbondedArgs struct {
	Charges     []float64    `json:"charges,omitempty" yaml:"charges,omitempty"`
	ChargeIdxs  []int        `json:"charge_idxs,omitempty" yaml:"charge_idxs,omitempty"`
	LJ          [][2]float64 `json:"lj,omitempty" yaml:"lj,omitempty"`
	LJIdxs      []int        `json:"lj_idxs,omitempty" yaml:"lj_idxs,omitempty"`
	Exclusions  []Exclusion  `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	LambdaFlags []int        `json:"lambda_flags,omitempty" yaml:"lambda_flags,omitempty"`
	LambdaScale float64      `json:"lambda_scale,omitempty" yaml:"lambda_scale,omitempty"`
	Cutoff      float64      `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
}

// GBSAArgs holds per-atom charges and (radius, scale) rows for the OBC
// generalized Born model. Zero-valued constants take their defaults.
type GBSAArgs struct {
	Charges           []float64    `json:"charges" yaml:"charges"`
	ChargeIdxs        []int        `json:"charge_idxs,omitempty" yaml:"charge_idxs,omitempty"`
	Radii             [][2]float64 `json:"radii" yaml:"radii"`
	RadiusIdxs        []int        `json:"radius_idxs,omitempty" yaml:"radius_idxs,omitempty"`
	DielectricOffset  float64      `json:"dielectric_offset,omitempty" yaml:"dielectric_offset,omitempty"`
	Cutoff            float64      `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
	Alpha             float64      `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Beta              float64      `json:"beta,omitempty" yaml:"beta,omitempty"`
	Gamma             float64      `json:"gamma,omitempty" yaml:"gamma,omitempty"`
	SoluteDielectric  float64      `json:"solute_dielectric,omitempty" yaml:"solute_dielectric,omitempty"`
	SolventDielectric float64      `json:"solvent_dielectric,omitempty" yaml:"solvent_dielectric,omitempty"`
	SurfaceTension    float64      `json:"surface_tension,omitempty" yaml:"surface_tension,omitempty"`
	ProbeRadius       float64      `json:"probe_radius,omitempty" yaml:"probe_radius,omitempty"`
}

// RestraintArgs: E = λ k/2 (r - b0)^2 per pair. Rows are (k, b0) and are
// not trainable.
type RestraintArgs struct {
	Pairs  [][2]int     `json:"pairs" yaml:"pairs"`
	Params [][2]float64 `json:"params" yaml:"params"`
}

// CentroidArgs: E = k/2 (|cA - cB| - b0)^2 between weighted centroids.
// Nil weights are uniform.
type CentroidArgs struct {
	GroupA   []int     `json:"group_a" yaml:"group_a"`
	GroupB   []int     `json:"group_b" yaml:"group_b"`
	WeightsA []float64 `json:"weights_a,omitempty" yaml:"weights_a,omitempty"`
	WeightsB []float64 `json:"weights_b,omitempty" yaml:"weights_b,omitempty"`
	K        float64   `json:"k" yaml:"k"`
	B0       float64   `json:"b0" yaml:"b0"`
}

// block is a named slice of a term's flat parameter vector.
type block struct {
	name string
	size int
}

// layout returns the gradient blocks of a term in parameter order.
// A nil layout means the term has no trainable parameters.
func layout(s Spec) ([]block, error) {
	switch s.Kind {
	case HarmonicBond:
		if s.Bond == nil {
			return nil, missing(s)
		}
		return []block{{"params", 2 * len(s.Bond.Params)}}, nil
	case HarmonicAngle:
		if s.Angle == nil {
			return nil, missing(s)
		}
		return []block{{"params", 2 * len(s.Angle.Params)}}, nil
	case PeriodicTorsion:
		if s.Torsion == nil {
			return nil, missing(s)
		}
		return []block{{"params", 3 * len(s.Torsion.Params)}}, nil
	case LennardJones:
		if s.Nonbonded == nil {
			return nil, missing(s)
		}
		return []block{{"lj", 2 * len(s.Nonbonded.LJ)}}, nil
	case Electrostatics:
		if s.Nonbonded == nil {
			return nil, missing(s)
		}
		return []block{{"charge", len(s.Nonbonded.Charges)}}, nil
	case Nonbonded:
		if s.Nonbonded == nil {
			return nil, missing(s)
		}
		return []block{{"charge", len(s.Nonbonded.Charges)}, {"lj", 2 * len(s.Nonbonded.LJ)}}, nil
	case GBSA:
		if s.GBSA == nil {
			return nil, missing(s)
		}
		return []block{{"charge", len(s.GBSA.Charges)}, {"gb", 2 * len(s.GBSA.Radii)}}, nil
	case Restraint:
		if s.Restraint == nil {
			return nil, missing(s)
		}
		return nil, nil
	case CentroidRestraint:
		if s.Centroid == nil {
			return nil, missing(s)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", dynamo.ErrUnknownTerm, s.Kind)
}

func missing(s Spec) error {
	return dynamo.Configf("term %s: missing argument block for kind %s", s.Label(), s.Kind)
}

// Build constructs the term described by s for a system of numAtoms atoms.
// All validation happens here.
func Build[T dynamo.Float](s Spec, numAtoms int) (Term[T], error) {
	if _, err := layout(s); err != nil {
		return nil, err
	}
	var (
		t   Term[T]
		err error
	)
	switch s.Kind {
	case HarmonicBond:
		t, err = newBond[T](s.Bond, numAtoms)
	case HarmonicAngle:
		t, err = newAngle[T](s.Angle, numAtoms)
	case PeriodicTorsion:
		t, err = newTorsion[T](s.Torsion, numAtoms)
	case LennardJones:
		t, err = newPairTerm[T](s.Kind, s.Nonbonded, numAtoms, false, true)
	case Electrostatics:
		t, err = newPairTerm[T](s.Kind, s.Nonbonded, numAtoms, true, false)
	case Nonbonded:
		t, err = newPairTerm[T](s.Kind, s.Nonbonded, numAtoms, true, true)
	case GBSA:
		t, err = newGBSA[T](s.GBSA, numAtoms)
	case Restraint:
		t, err = newRestraint[T](s.Restraint, numAtoms)
	case CentroidRestraint:
		t, err = newCentroid[T](s.Centroid, numAtoms)
	default:
		return nil, fmt.Errorf("%w: %q", dynamo.ErrUnknownTerm, s.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("term %s: %w", s.Label(), err)
	}
	if err := checkGlobalIdxs(s); err != nil {
		return nil, err
	}
	return t, nil
}

func checkGlobalIdxs(s Spec) error {
	blocks, _ := layout(s)
	for name, idxs := range s.GlobalIdxs {
		found := false
		for _, b := range blocks {
			if b.name != name {
				continue
			}
			found = true
			if len(idxs) != b.size {
				return fmt.Errorf("%w: term %s global_idxs[%s] has %d entries, want %d",
					dynamo.ErrDimensionMismatch, s.Label(), name, len(idxs), b.size)
			}
		}
		if !found {
			return dynamo.Configf("term %s has no gradient block %q", s.Label(), name)
		}
	}
	return nil
}

func flatten2(rows [][2]float64) []float64 {
	out := make([]float64, 0, 2*len(rows))
	for _, r := range rows {
		out = append(out, r[0], r[1])
	}
	return out
}

func flatten3(rows [][3]float64) []float64 {
	out := make([]float64, 0, 3*len(rows))
	for _, r := range rows {
		out = append(out, r[0], r[1], r[2])
	}
	return out
}

func convert[T dynamo.Float](vs []float64) []T {
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = T(v)
	}
	return out
}
