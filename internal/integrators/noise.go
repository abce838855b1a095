package integrators

import (
	"math/rand/v2"

	"github.com/san-kum/revsim/internal/dynamo"
)

// Noise fills out with standard normal draws that depend only on seed and
// step.
func Noise[T dynamo.Float](seed int64, step int, out []T) {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(step)))
	for i := range out {
		out[i] = T(r.NormFloat64())
	}
}

// FrameStride is the step interval between retained frames.
func FrameStride(steps, frames int) int {
	if frames <= 0 {
		return 0
	}
	return max(1, steps/frames)
}
