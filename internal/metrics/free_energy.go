package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/integrators"
)

// TotalDuDl sums per-term dU/dλ series into one series of length steps.
// Nil series contribute nothing.
func TotalDuDl(duDl [][]float64, steps int) ([]float64, error) {
	total := make([]float64, steps)
	for i, s := range duDl {
		if s == nil {
			continue
		}
		if len(s) != steps {
			return nil, dynamo.Configf("term %d has %d dU/dλ samples, want %d", i, len(s), steps)
		}
		floats.Add(total, s)
	}
	return total, nil
}

// Window is a run of consecutive steps sharing one λ value.
type Window struct {
	Lambda float64
	Mean   float64
	StdDev float64
	N      int
}

// Windows groups consecutive equal λ values and averages dU/dλ within
// each group.
func Windows(lambdas, duDl []float64) []Window {
	var out []Window
	for start := 0; start < len(lambdas); {
		end := start + 1
		for end < len(lambdas) && lambdas[end] == lambdas[start] {
			end++
		}
		w := Window{Lambda: lambdas[start], N: end - start}
		if w.N > 1 {
			w.Mean, w.StdDev = stat.MeanStdDev(duDl[start:end], nil)
		} else {
			w.Mean = duDl[start]
		}
		out = append(out, w)
		start = end
	}
	return out
}

// ThermodynamicIntegration estimates ΔG = ∫ <dU/dλ> dλ with the
// trapezoidal rule over window means. The windows must be strictly
// monotonic in λ; a decreasing schedule yields the reverse free energy.
func ThermodynamicIntegration(lambdas, duDl []float64) (float64, error) {
	if len(lambdas) != len(duDl) {
		return 0, dynamo.Configf("%d λ values for %d dU/dλ samples", len(lambdas), len(duDl))
	}
	ws := Windows(lambdas, duDl)
	if len(ws) < 2 {
		return 0, dynamo.Configf("need at least two λ windows, got %d", len(ws))
	}
	xs := make([]float64, len(ws))
	fs := make([]float64, len(ws))
	for i, w := range ws {
		xs[i], fs[i] = w.Lambda, w.Mean
	}

	sign := 1.0
	if xs[1] < xs[0] {
		floats.Reverse(xs)
		floats.Reverse(fs)
		sign = -1
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return 0, dynamo.Configf("λ schedule is not monotonic at window %d", i)
		}
	}
	return sign * integrate.Trapezoidal(xs, fs), nil
}

// Work is the nonequilibrium work Σ dU/dλ_t (λ_{t+1} - λ_t) done by the
// schedule, with the last step contributing nothing.
func Work(lambdas, duDl []float64) (float64, error) {
	n := len(lambdas)
	if len(duDl) != n {
		return 0, dynamo.Configf("%d λ values for %d dU/dλ samples", n, len(duDl))
	}
	if n < 2 {
		return 0, nil
	}
	dl := make([]float64, n-1)
	floats.SubTo(dl, lambdas[1:], lambdas[:n-1])
	return floats.Dot(duDl[:n-1], dl), nil
}

// JarzynskiFreeEnergy estimates ΔG from repeated nonequilibrium work
// values at temperature kelvin: ΔG = -kT ln <exp(-W/kT)>.
func JarzynskiFreeEnergy(work []float64, kelvin float64) (float64, error) {
	if len(work) == 0 {
		return 0, dynamo.Configf("no work samples")
	}
	if !(kelvin > 0) {
		return 0, dynamo.Configf("temperature must be positive, got %v", kelvin)
	}
	kT := integrators.Boltzmann * kelvin
	scaled := make([]float64, len(work))
	for i, w := range work {
		scaled[i] = -w / kT
	}
	lse := floats.LogSumExp(scaled) - math.Log(float64(len(work)))
	return -kT * lse, nil
}
