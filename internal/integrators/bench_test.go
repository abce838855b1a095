package integrators

import (
	"testing"
)

func BenchmarkForward(b *testing.B) {
	sys := chain(32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := newChain(b, sys, 100, true)
		if _, err := r.Forward(0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRoundTrip(b *testing.B) {
	sys := chain(32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := newChain(b, sys, 100, true)
		if _, err := r.Forward(0); err != nil {
			b.Fatal(err)
		}
		if err := r.Backward(nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNoise(b *testing.B) {
	out := make([]float64, 3*1024)
	for i := 0; i < b.N; i++ {
		Noise(42, i, out)
	}
}
