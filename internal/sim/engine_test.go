package sim

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/revsim/internal/compute"
	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/potentials"
)

const (
	bondK  = 50.0
	bondR0 = 0.6
)

func diatomic() System {
	return System{
		Masses: []float64{1.0, 12.0},
		X0:     [][3]float64{{1.0, 0.5, -0.5}, {0.2, 0.1, -0.3}},
		V0:     [][3]float64{{0, 0, 0}, {0, 0, 0}},
		Terms: []potentials.Spec{{Kind: potentials.HarmonicBond, Name: "bond", Bond: &potentials.BondArgs{
			Bonds:  [][2]int{{0, 1}},
			Params: [][2]float64{{bondK, bondR0}},
		}}},
		Integrator: Integrator{
			Dt:           0.003,
			Lambdas:      make([]float64, 4),
			Friction:     10,
			Temperature:  300,
			DisableNoise: true,
		},
	}
}

// bondForce returns ∇E for atom 0 (atom 1 gets the negative), its
// derivative with respect to k, and the Jacobian with respect to x0-x1.
func bondForce(x [2][3]float64, k, r0 float64) (g, dgdk [3]float64, jac [3][3]float64) {
	var d [3]float64
	for c := 0; c < 3; c++ {
		d[c] = x[0][c] - x[1][c]
	}
	r := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	for a := 0; a < 3; a++ {
		u := d[a] / r
		g[a] = k * (r - r0) * u
		dgdk[a] = (r - r0) * u
		for b := 0; b < 3; b++ {
			ub := d[b] / r
			id := 0.0
			if a == b {
				id = 1
			}
			jac[a][b] = k * (u*ub + (r-r0)/r*(id-u*ub))
		}
	}
	return g, dgdk, jac
}

func TestDiatomicMatchesReferenceLeapfrog(t *testing.T) {
	sys := diatomic()
	eng, err := Assemble(sys, dynamo.Double)
	require.NoError(t, err)
	res, err := eng.Forward(nil, 4)
	require.NoError(t, err)
	require.Len(t, res.Frames, 4)
	assert.Equal(t, []float64(nil), res.DuDls[0], "bond has no λ dependence")

	ca := math.Exp(-0.03)
	fscale := (1 - ca) / 10
	x := [2][3]float64{sys.X0[0], sys.X0[1]}
	var v [2][3]float64
	var dx, dv [2][3]float64
	for step := 0; step < 4; step++ {
		for a := 0; a < 2; a++ {
			for c := 0; c < 3; c++ {
				assert.InDelta(t, x[a][c], res.Frames[step][a][c], 1e-14, "step %d atom %d", step, a)
			}
		}
		g, dgdk, jac := bondForce(x, bondK, bondR0)
		var hdx [3]float64
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				hdx[a] += jac[a][b] * (dx[0][b] - dx[1][b])
			}
		}
		for a := 0; a < 2; a++ {
			sign := 1.0
			if a == 1 {
				sign = -1
			}
			cb := fscale / sys.Masses[a]
			for c := 0; c < 3; c++ {
				v[a][c] = ca*v[a][c] - cb*sign*g[c]
				x[a][c] += v[a][c] * sys.Integrator.Dt
				dv[a][c] = ca*dv[a][c] - cb*sign*(hdx[c]+dgdk[c])
				dx[a][c] += dv[a][c] * sys.Integrator.Dt
			}
		}
	}

	final, _ := eng.State()
	for a := 0; a < 2; a++ {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, x[a][c], final[a][c], 1e-14)
		}
	}

	for a := 0; a < 2; a++ {
		for c := 0; c < 3; c++ {
			_, err := eng.Forward(nil, 0)
			require.NoError(t, err)
			xt := make([][3]float64, 2)
			xt[a][c] = 1
			grads, err := eng.Backward(nil, Adjoint{XT: xt})
			require.NoError(t, err)
			require.Len(t, grads, 1)
			values := grads[0].Block("params").Values
			assert.InDelta(t, dx[a][c], values[0], 1e-14, "d x_T[%d][%d] / dk", a, c)
		}
	}
}

func TestBackwardRestoresInitialState(t *testing.T) {
	sys := diatomic()
	sys.Integrator.DisableNoise = false
	sys.Integrator.Lambdas = make([]float64, 50)
	sys.Integrator.Seed = 99

	for _, prec := range []dynamo.Precision{dynamo.Double, dynamo.Single} {
		eng, err := Assemble(sys, prec)
		require.NoError(t, err)
		_, err = eng.Forward(compute.NewCPUBackend(2), 0)
		require.NoError(t, err)
		_, err = eng.Backward(nil, Adjoint{})
		require.NoError(t, err)

		x, v := eng.State()
		tol := 1e-10
		if prec == dynamo.Single {
			tol = 1e-3
		}
		for a := range x {
			for c := 0; c < 3; c++ {
				assert.InDelta(t, sys.X0[a][c], x[a][c], tol*math.Max(1, math.Abs(sys.X0[a][c])), "%v x", prec)
				assert.InDelta(t, sys.V0[a][c], v[a][c], tol, "%v v", prec)
			}
		}
	}
}

func ljSystem(sigma, eps float64) System {
	steps := 20
	lambdas := make([]float64, steps)
	for i := range lambdas {
		lambdas[i] = 0.2 + 0.3*float64(i)/float64(steps)
	}
	return System{
		Masses: []float64{12, 14, 16},
		X0:     [][3]float64{{0, 0, 0}, {0.38, 0.05, 0}, {0.1, 0.4, 0.08}},
		V0:     [][3]float64{{0.1, 0, 0}, {0, -0.2, 0}, {0, 0, 0.3}},
		Terms: []potentials.Spec{{Kind: potentials.LennardJones, Name: "lj", Nonbonded: &potentials.NonbondedArgs{
			LJ:          [][2]float64{{sigma, eps}, {0.32, 0.6}},
			LJIdxs:      []int{0, 1, 0},
			LambdaFlags: []int{0, 0, 1},
		}}},
		Integrator: Integrator{Dt: 0.001, Lambdas: lambdas, Seed: 11, Friction: 5, Temperature: 300},
	}
}

func lastStepDuDl(t *testing.T, sys System) float64 {
	t.Helper()
	eng, err := Assemble(sys, dynamo.Double)
	require.NoError(t, err)
	res, err := eng.Forward(nil, 0)
	require.NoError(t, err)
	series := res.DuDls[0]
	require.NotNil(t, series)
	return series[len(series)-1]
}

func TestGradientMatchesFiniteDifference(t *testing.T) {
	const (
		sigma = 0.3
		eps   = 0.5
		h     = 1e-6
	)
	sys := ljSystem(sigma, eps)
	eng, err := Assemble(sys, dynamo.Double)
	require.NoError(t, err)
	res, err := eng.Forward(nil, 0)
	require.NoError(t, err)

	adj := make([]float64, sys.Steps())
	adj[len(adj)-1] = 1
	grads, err := eng.Backward(nil, Adjoint{DuDl: [][]float64{adj}})
	require.NoError(t, err)
	assert.Len(t, res.Energies, sys.Steps())

	lj := grads[0].Block("lj")
	require.NotNil(t, lj)
	require.Len(t, lj.Values, 4)

	for j := 0; j < 4; j++ {
		plus, minus := ljSystem(sigma, eps), ljSystem(sigma, eps)
		plus.Terms[0].Nonbonded.LJ[j/2][j%2] += h
		minus.Terms[0].Nonbonded.LJ[j/2][j%2] -= h
		fd := (lastStepDuDl(t, plus) - lastStepDuDl(t, minus)) / (2 * h)
		assert.InDelta(t, fd, lj.Values[j], 1e-5*math.Max(1, math.Abs(fd)), "parameter %d", j)
	}
}

func TestAssembleRejectsBadSystems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*System)
		target error
	}{
		{"coincident atoms", func(s *System) { s.X0[1] = s.X0[0] }, dynamo.ErrSingularGeometry},
		{"no atoms", func(s *System) { s.Masses = nil }, dynamo.ErrInvalidConfig},
		{"zero mass", func(s *System) { s.Masses[0] = 0 }, dynamo.ErrNonPositiveParam},
		{"short positions", func(s *System) { s.X0 = s.X0[:1] }, dynamo.ErrDimensionMismatch},
		{"empty schedule", func(s *System) { s.Integrator.Lambdas = nil }, dynamo.ErrInvalidConfig},
		{"zero ca", func(s *System) {
			s.Integrator.Ca = []float64{0, 1}
			s.Integrator.Cb = []float64{1, 1}
			s.Integrator.Cc = []float64{0, 0}
		}, dynamo.ErrSingularCoefficient},
		{"partial coefficients", func(s *System) { s.Integrator.Ca = []float64{1, 1} }, dynamo.ErrInvalidConfig},
		{"unknown term", func(s *System) { s.Terms[0].Kind = "Morse" }, dynamo.ErrUnknownTerm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := diatomic()
			tt.mutate(&sys)
			_, err := Assemble(sys, dynamo.Double)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, dynamo.IsConfigError(err))
		})
	}

	_, err := Assemble(diatomic(), dynamo.Precision(7))
	assert.ErrorIs(t, err, dynamo.ErrUnknownPrecision)
}

func TestValidateAdjoint(t *testing.T) {
	eng, err := Assemble(diatomic(), dynamo.Double)
	require.NoError(t, err)

	assert.NoError(t, eng.ValidateAdjoint(Adjoint{}))
	assert.NoError(t, eng.ValidateAdjoint(Adjoint{DuDl: [][]float64{nil}}))
	assert.ErrorIs(t, eng.ValidateAdjoint(Adjoint{DuDl: [][]float64{{1}}}), dynamo.ErrDimensionMismatch)
	assert.ErrorIs(t, eng.ValidateAdjoint(Adjoint{DuDl: [][]float64{nil, nil}}), dynamo.ErrDimensionMismatch)
	assert.ErrorIs(t, eng.ValidateAdjoint(Adjoint{XT: make([][3]float64, 3)}), dynamo.ErrDimensionMismatch)

	_, err = eng.Backward(nil, Adjoint{})
	assert.ErrorIs(t, err, dynamo.ErrNotIntegrated)
}

func TestEnsembleSeedsReplicas(t *testing.T) {
	sys := ljSystem(0.3, 0.5)
	results, err := NewEnsemble(sys, dynamo.Double, 3, 2).Run(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	eng, err := Assemble(sys, dynamo.Double)
	require.NoError(t, err)
	single, err := eng.Forward(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, single.Energies, results[0].Energies)
	assert.NotEqual(t, results[0].Energies, results[1].Energies)

	bad := sys
	bad.Masses = []float64{1}
	_, err = NewEnsemble(bad, dynamo.Double, 2, 0).Run(context.Background(), 0)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}
