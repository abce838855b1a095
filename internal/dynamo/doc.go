// Package dynamo provides the core primitives shared by the reversible
// integration engine.
//
//   - [Vec]: flat N×3 coordinate vector, generic over [Float]
//   - [Precision]: single or double arithmetic, fixed per session
//   - sentinel errors and [StepError] for per-step failures
//
// Positions, velocities and their adjoints are always stored as flat
// vectors of length 3N, atom-major.
//
// # Example
//
//	x := dynamo.FromRows[float64](x0)
//	if !x.IsValid() {
//		return dynamo.ErrInvalidState
//	}
package dynamo
