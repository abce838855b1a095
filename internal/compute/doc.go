// Package compute provides the compute resource the engine runs on.
//
// A [Backend] parallelizes independent work items such as per-term force
// evaluations. Work items write to disjoint outputs, so results do not
// depend on how the range is chunked.
//
// An [Exclusive] wraps a single resource so that at most one holder uses it
// at a time:
//
//	res := compute.NewExclusive(state)
//	err := res.Do(ctx, func(s *State) error {
//		return s.integrate()
//	})
//
// The resource is released on every exit path, including panics in fn.
package compute
