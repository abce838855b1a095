package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/integrators"
	"github.com/san-kum/revsim/internal/potentials"
	"github.com/san-kum/revsim/internal/sim"
)

func oscillator(steps int) sim.System {
	return sim.System{
		Masses: []float64{1, 12},
		X0:     [][3]float64{{0, 0, 0}, {1.2, 0.1, -0.1}},
		Terms: []potentials.Spec{{Kind: potentials.HarmonicBond, Bond: &potentials.BondArgs{
			Bonds:  [][2]int{{0, 1}},
			Params: [][2]float64{{100, 1.0}},
		}}},
		Integrator: sim.Integrator{
			Dt:           0.002,
			Lambdas:      make([]float64, steps),
			DisableNoise: true,
		},
	}
}

func TestEnergyDriftSmallWithoutFriction(t *testing.T) {
	eng, err := sim.Assemble(oscillator(2000), dynamo.Double)
	if err != nil {
		t.Fatal(err)
	}
	drift := NewEnergyDrift(eng.System().Masses)
	eng.Observe(drift)
	if _, err := eng.Forward(nil, 0); err != nil {
		t.Fatal(err)
	}

	if drift.Value() > 1e-2 {
		t.Errorf("expected bounded drift, got %v", drift.Value())
	}
	if drift.Current() <= 0 {
		t.Errorf("expected positive total energy, got %v", drift.Current())
	}

	drift.Reset()
	if drift.Value() != 0 || drift.Current() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestEnergyDriftGrowsWithFriction(t *testing.T) {
	sys := oscillator(2000)
	sys.Integrator.Friction = 5
	eng, err := sim.Assemble(sys, dynamo.Double)
	if err != nil {
		t.Fatal(err)
	}
	drift := NewEnergyDrift(sys.Masses)
	eng.Observe(drift)
	if _, err := eng.Forward(nil, 0); err != nil {
		t.Fatal(err)
	}
	if drift.Value() < 0.5 {
		t.Errorf("expected friction to dissipate energy, drift %v", drift.Value())
	}
}

func TestTemperature(t *testing.T) {
	temp := NewTemperature([]float64{2})
	v := []float64{1, 2, 2}
	temp.Observe(0, nil, v, 0)
	if temp.Value() != 0 {
		t.Error("expected no sample from a single velocity")
	}
	temp.Observe(1, nil, v, 0)

	// KE = 0.5 * 2 * 9 = 9; T = 2 KE / (3 kB)
	want := 2 * 9 / (3 * integrators.Boltzmann)
	if math.Abs(temp.Value()-want) > 1e-9*want {
		t.Errorf("expected %v, got %v", want, temp.Value())
	}
}

func TestSpeedLimit(t *testing.T) {
	s := NewSpeedLimit(10)
	if s.Value() != 1 {
		t.Errorf("expected 1 with no samples, got %v", s.Value())
	}
	s.Observe(0, nil, []float64{1, 1, 1, 0, 0, 0}, 0)
	s.Observe(1, nil, []float64{0, 0, 0, 20, 0, 0}, 0)
	s.Observe(2, nil, []float64{0, 6, 8, 0, 0, 0}, 0)
	if math.Abs(s.Value()-2.0/3) > 1e-12 {
		t.Errorf("expected 2/3, got %v", s.Value())
	}
	if s.Peak() != 20 {
		t.Errorf("expected peak 20, got %v", s.Peak())
	}
	s.Reset()
	if s.Value() != 1 || s.Peak() != 0 {
		t.Error("expected a clean state after reset")
	}
}

func TestTotalDuDl(t *testing.T) {
	total, err := TotalDuDl([][]float64{nil, {1, 2, 3}, {0.5, 0.5, 0.5}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1.5, 2.5, 3.5}
	for i := range want {
		if total[i] != want[i] {
			t.Errorf("step %d: expected %v, got %v", i, want[i], total[i])
		}
	}

	if _, err := TotalDuDl([][]float64{{1, 2}}, 3); !dynamo.IsConfigError(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestThermodynamicIntegration(t *testing.T) {
	tests := []struct {
		name    string
		lambdas []float64
		duDl    []float64
		want    float64
	}{
		{"linear", []float64{0, 0.25, 0.5, 0.75, 1}, []float64{0, 0.5, 1, 1.5, 2}, 1},
		{"windows", []float64{0, 0, 1, 1}, []float64{1, 3, 5, 7}, 4},
		{"reverse", []float64{1, 0.5, 0}, []float64{2, 1, 0}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ThermodynamicIntegration(tt.lambdas, tt.duDl)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestThermodynamicIntegrationRejects(t *testing.T) {
	if _, err := ThermodynamicIntegration([]float64{0.3, 0.3}, []float64{1, 2}); err == nil {
		t.Error("expected error for a single window")
	}
	if _, err := ThermodynamicIntegration([]float64{0, 1, 0.5}, []float64{1, 2, 3}); err == nil {
		t.Error("expected error for a non-monotonic schedule")
	}
	if _, err := ThermodynamicIntegration([]float64{0, 1}, []float64{1}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestWindows(t *testing.T) {
	ws := Windows([]float64{0, 0, 0, 0.5}, []float64{1, 2, 3, 4})
	if len(ws) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(ws))
	}
	if ws[0].N != 3 || ws[0].Mean != 2 || ws[0].StdDev != 1 {
		t.Errorf("unexpected first window %+v", ws[0])
	}
	if ws[1].Lambda != 0.5 || ws[1].Mean != 4 {
		t.Errorf("unexpected second window %+v", ws[1])
	}
}

func TestWork(t *testing.T) {
	w, err := Work([]float64{0, 0.5, 1}, []float64{2, 4, 100})
	if err != nil {
		t.Fatal(err)
	}
	if w != 3 {
		t.Errorf("expected 3, got %v", w)
	}
}

func TestJarzynski(t *testing.T) {
	got, err := JarzynskiFreeEnergy([]float64{1.5, 1.5, 1.5}, 300)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-1.5) > 1e-12 {
		t.Errorf("constant work should give ΔG = W, got %v", got)
	}

	// Jensen: ΔG <= <W>
	got, err = JarzynskiFreeEnergy([]float64{0, 2}, 300)
	if err != nil {
		t.Fatal(err)
	}
	if got > 1 {
		t.Errorf("expected ΔG below mean work, got %v", got)
	}

	if _, err := JarzynskiFreeEnergy(nil, 300); err == nil {
		t.Error("expected error for no samples")
	}
}
