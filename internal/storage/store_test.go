package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/potentials"
	"github.com/san-kum/revsim/internal/sim"
)

func testRun() Run {
	sys := sim.System{
		Masses: []float64{1, 2},
		X0:     [][3]float64{{0, 0, 0}, {0.1, 0, 0}},
		Terms: []potentials.Spec{
			{Kind: potentials.HarmonicBond, Name: "bond", Bond: &potentials.BondArgs{
				Bonds: [][2]int{{0, 1}}, Params: [][2]float64{{100, 0.1}},
			}},
			{Kind: potentials.Restraint, Restraint: &potentials.RestraintArgs{
				Pairs: [][2]int{{0, 1}}, Params: [][2]float64{{10, 0.2}},
			}},
		},
		Integrator: sim.Integrator{Dt: 0.001, Lambdas: []float64{0, 0.5, 1}, Seed: 42},
	}
	return Run{
		Name:      "pair",
		System:    sys,
		Precision: dynamo.Single,
		Result: &sim.ForwardResult{
			DuDls:        [][]float64{nil, {0.05, 0.049, 1.0 / 3}},
			Energies:     []float64{1.5, 1.25, 1e-9},
			TermEnergies: [][]float64{{1.5, 1.2, 0}, {0, 0.05, 1e-9}},
			Frames:       [][][3]float64{{{0, 0, 0}, {0.1, 0, 0}}},
		},
		Grads: []potentials.ParamGrad{
			{Term: "bond", Kind: potentials.HarmonicBond, Blocks: []potentials.Block{
				{Name: "params", GlobalIdxs: []int{0, 1}, Values: []float64{0.25, -3}},
			}},
			{Term: "Restraint", Kind: potentials.Restraint, Absent: true},
		},
		Metrics: map[string]float64{"delta_g": -1.5},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	runID, err := st.Save(testRun())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, "pair", meta.Name)
	assert.Equal(t, "single", meta.Precision)
	assert.Equal(t, 3, meta.Steps)
	assert.Equal(t, []string{"bond", "Restraint"}, meta.Terms)
	assert.True(t, meta.Backward)
	assert.Equal(t, -1.5, meta.Metrics["delta_g"])
}

func TestStoreSeriesAreLossless(t *testing.T) {
	st := New(t.TempDir())
	run := testRun()
	runID, err := st.Save(run)
	require.NoError(t, err)

	series, err := st.LoadSeries(runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bond", "Restraint"}, series.Terms)
	assert.Equal(t, run.System.Integrator.Lambdas, series.Lambdas)
	assert.Equal(t, run.Result.Energies, series.Energies)
	assert.Equal(t, run.Result.TermEnergies, series.TermEnergies)
	assert.Equal(t, []float64{0, 0, 0}, series.DuDl[0], "nil series stored as zeros")
	assert.Equal(t, run.Result.DuDls[1], series.DuDl[1])
}

func TestStoreGradientsAndSystem(t *testing.T) {
	st := New(t.TempDir())
	run := testRun()
	runID, err := st.Save(run)
	require.NoError(t, err)

	grads, err := st.LoadGradients(runID)
	require.NoError(t, err)
	require.Len(t, grads, 2)
	assert.Equal(t, []float64{0.25, -3}, grads[0].Block("params").Values)
	assert.True(t, grads[1].Absent)

	frames, err := st.LoadFrames(runID)
	require.NoError(t, err)
	assert.Equal(t, run.Result.Frames, frames)

	sys, err := st.LoadSystem(runID)
	require.NoError(t, err)
	assert.Equal(t, run.System.Masses, sys.Masses)
	assert.Equal(t, potentials.HarmonicBond, sys.Terms[0].Kind)
}

func TestStoreForwardOnlyRun(t *testing.T) {
	st := New(t.TempDir())
	run := testRun()
	run.Grads = nil
	run.Result.Frames = nil
	runID, err := st.Save(run)
	require.NoError(t, err)

	frames, err := st.LoadFrames(runID)
	require.NoError(t, err)
	assert.Nil(t, frames)

	grads, err := st.LoadGradients(runID)
	require.NoError(t, err)
	assert.Nil(t, grads)
	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.False(t, meta.Backward)
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	first, err := st.Save(testRun())
	require.NoError(t, err)
	second, err := st.Save(testRun())
	require.NoError(t, err)

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(t.TempDir() + "/nope")
	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, testRun().Grads))
	assert.True(t, strings.Contains(buf.String(), "\"absent\": true"))
}
