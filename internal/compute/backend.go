package compute

import (
	"fmt"
	"runtime"
	"strings"
)

// Backend runs independent work items on a pool of workers.
type Backend interface {
	Name() string
	Available() bool
	Workers() int
	// ParallelFor calls fn over disjoint chunks covering [0, n) and returns
	// once every chunk has finished.
	ParallelFor(n, minChunk int, fn func(start, end int))
	Cleanup()
}

// NewBackend returns the backend registered under name. An empty name or
// "auto" selects the CPU backend sized to the machine.
func NewBackend(name string, workers int) (Backend, error) {
	switch strings.ToLower(name) {
	case "", "auto", "cpu":
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		return NewCPUBackend(workers), nil
	case "serial":
		return NewCPUBackend(1), nil
	}
	return nil, fmt.Errorf("unknown backend: %s", name)
}
