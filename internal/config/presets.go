package config

import (
	"sort"

	"github.com/san-kum/revsim/internal/potentials"
	"github.com/san-kum/revsim/internal/sim"
)

// Preset is a built-in system. Build returns a fresh copy each call.
type Preset struct {
	Description string
	Build       func() sim.System
}

var Presets = map[string]Preset{
	"diatomic": {
		Description: "harmonic bond between a light and a heavy atom",
		Build:       diatomic,
	},
	"lj-decouple": {
		Description: "charged LJ pair with one atom decoupled through the fourth dimension",
		Build:       ljDecouple,
	},
	"water-gbsa": {
		Description: "three-site water in OBC implicit solvent",
		Build:       waterGBSA,
	},
	"butane": {
		Description: "united-atom butane with 1-4 scaled nonbonded interactions",
		Build:       butane,
	},
	"restrained-dimer": {
		Description: "two diatomics pulled together by a centroid restraint",
		Build:       restrainedDimer,
	},
}

func GetPreset(name string) (sim.System, bool) {
	p, ok := Presets[name]
	if !ok {
		return sim.System{}, false
	}
	return p.Build(), true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ramp returns steps values going linearly from a to b inclusive.
func ramp(steps int, a, b float64) []float64 {
	out := make([]float64, steps)
	if steps == 1 {
		out[0] = a
		return out
	}
	for i := range out {
		out[i] = a + (b-a)*float64(i)/float64(steps-1)
	}
	return out
}

func langevin(dt float64, lambdas []float64) sim.Integrator {
	return sim.Integrator{
		Dt:          dt,
		Lambdas:     lambdas,
		Seed:        2024,
		Friction:    1.0,
		Temperature: 300,
	}
}

func diatomic() sim.System {
	return sim.System{
		Masses: []float64{1.008, 12.011},
		X0:     [][3]float64{{0.11, 0, 0}, {0, 0, 0}},
		Terms: []potentials.Spec{{
			Kind: potentials.HarmonicBond,
			Name: "c-h",
			Bond: &potentials.BondArgs{
				Bonds:  [][2]int{{0, 1}},
				Params: [][2]float64{{284512, 0.109}},
			},
		}},
		Integrator: langevin(0.0005, make([]float64, 200)),
	}
}

func ljDecouple() sim.System {
	return sim.System{
		Masses: []float64{39.948, 39.948},
		X0:     [][3]float64{{0, 0, 0}, {0.38, 0.02, -0.01}},
		Terms: []potentials.Spec{{
			Kind: potentials.Nonbonded,
			Name: "pair",
			Nonbonded: &potentials.NonbondedArgs{
				Charges:     []float64{0.4, -0.4},
				LJ:          [][2]float64{{0.34, 0.996}, {0.34, 0.996}},
				LambdaFlags: []int{0, 1},
				Cutoff:      1.2,
			},
		}},
		Integrator: langevin(0.002, ramp(500, 0, 1)),
	}
}

func waterGBSA() sim.System {
	const (
		qO = -0.834
		qH = 0.417
	)
	return sim.System{
		Masses: []float64{15.999, 1.008, 1.008},
		X0:     [][3]float64{{0, 0, 0}, {0.09572, 0, 0}, {-0.02400, 0.09266, 0}},
		Terms: []potentials.Spec{
			{Kind: potentials.HarmonicBond, Name: "o-h", Bond: &potentials.BondArgs{
				Bonds:     [][2]int{{0, 1}, {0, 2}},
				Params:    [][2]float64{{462750, 0.09572}},
				ParamIdxs: []int{0, 0},
			}},
			{Kind: potentials.HarmonicAngle, Name: "h-o-h", Angle: &potentials.AngleArgs{
				Angles: [][3]int{{1, 0, 2}},
				Params: [][2]float64{{836.8, 1.82421813}},
			}},
			{Kind: potentials.GBSA, Name: "obc", GBSA: &potentials.GBSAArgs{
				Charges:    []float64{qO, qH},
				ChargeIdxs: []int{0, 1, 1},
				Radii:      [][2]float64{{0.15, 0.85}, {0.12, 0.85}},
				RadiusIdxs: []int{0, 1, 1},
			}},
		},
		Integrator: langevin(0.0005, make([]float64, 400)),
	}
}

func butane() sim.System {
	bonds := [][2]int{{0, 1}, {1, 2}, {2, 3}}
	excl, err := potentials.ExclusionsFromBonds(4, bonds, 0.5, 0.5)
	if err != nil {
		panic(err)
	}
	return sim.System{
		Masses: []float64{15.035, 14.027, 14.027, 15.035},
		X0: [][3]float64{
			{0.000, 0.000, 0.000},
			{0.153, 0.000, 0.000},
			{0.204, 0.144, 0.000},
			{0.357, 0.150, 0.040},
		},
		Terms: []potentials.Spec{
			{Kind: potentials.HarmonicBond, Name: "c-c", Bond: &potentials.BondArgs{
				Bonds:     bonds,
				Params:    [][2]float64{{224262, 0.1526}},
				ParamIdxs: []int{0, 0, 0},
			}},
			{Kind: potentials.HarmonicAngle, Name: "c-c-c", Angle: &potentials.AngleArgs{
				Angles:    [][3]int{{0, 1, 2}, {1, 2, 3}},
				Params:    [][2]float64{{527, 1.9548}},
				ParamIdxs: []int{0, 0},
			}},
			{Kind: potentials.PeriodicTorsion, Name: "dihedral", Torsion: &potentials.TorsionArgs{
				Torsions: [][4]int{{0, 1, 2, 3}, {0, 1, 2, 3}},
				Params:   [][3]float64{{5.9, 0, 3}, {1.2, 0, 1}},
			}},
			{Kind: potentials.LennardJones, Name: "lj", Nonbonded: &potentials.NonbondedArgs{
				LJ:         [][2]float64{{0.3905, 0.7322}, {0.3905, 0.4937}},
				LJIdxs:     []int{0, 1, 1, 0},
				Exclusions: excl,
				Cutoff:     1.0,
			}},
		},
		Integrator: langevin(0.001, make([]float64, 300)),
	}
}

func restrainedDimer() sim.System {
	return sim.System{
		Masses: []float64{12, 12, 14, 14},
		X0: [][3]float64{
			{0, 0, 0}, {0.15, 0, 0},
			{0.9, 0.1, 0}, {1.02, 0.1, 0.05},
		},
		Terms: []potentials.Spec{
			{Kind: potentials.HarmonicBond, Name: "intra", Bond: &potentials.BondArgs{
				Bonds:  [][2]int{{0, 1}, {2, 3}},
				Params: [][2]float64{{300000, 0.15}, {300000, 0.12}},
			}},
			{Kind: potentials.CentroidRestraint, Name: "pull", Centroid: &potentials.CentroidArgs{
				GroupA:   []int{0, 1},
				GroupB:   []int{2, 3},
				WeightsA: []float64{12, 12},
				WeightsB: []float64{14, 14},
				K:        500,
				B0:       0.5,
			}},
			{Kind: potentials.Restraint, Name: "tether", Restraint: &potentials.RestraintArgs{
				Pairs:  [][2]int{{1, 2}},
				Params: [][2]float64{{200, 0.6}},
			}},
		},
		Integrator: langevin(0.001, ramp(300, 0, 1)),
	}
}
