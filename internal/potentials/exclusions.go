package potentials

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
)

type pair struct{ i, j int }

// canonical orders the pair as (min, max).
func canonical(i, j int) pair {
	if i > j {
		i, j = j, i
	}
	return pair{i, j}
}

// CanonicalExclusions validates exclusions and returns them keyed by
// (min, max). Duplicates after canonicalization are rejected.
func CanonicalExclusions(numAtoms int, excl []Exclusion) (map[pair]Exclusion, error) {
	out := make(map[pair]Exclusion, len(excl))
	for _, e := range excl {
		if e.I < 0 || e.I >= numAtoms || e.J < 0 || e.J >= numAtoms {
			return nil, dynamo.Configf("exclusion (%d, %d) out of range [0, %d)", e.I, e.J, numAtoms)
		}
		if e.I == e.J {
			return nil, dynamo.Configf("self exclusion on atom %d", e.I)
		}
		p := canonical(e.I, e.J)
		if _, dup := out[p]; dup {
			return nil, fmt.Errorf("%w: (%d, %d)", dynamo.ErrDuplicateExclusion, p.i, p.j)
		}
		e.I, e.J = p.i, p.j
		out[p] = e
	}
	return out, nil
}

// ExclusionsFromBonds fully excludes 1-2 and 1-3 pairs and scales 1-4
// pairs so that q14 of the charge and lj14 of the Lennard-Jones
// interaction remain.
func ExclusionsFromBonds(numAtoms int, bonds [][2]int, q14, lj14 float64) ([]Exclusion, error) {
	adj := make([][]int, numAtoms)
	for _, b := range bonds {
		if err := checkAtoms(numAtoms, b[:]); err != nil {
			return nil, err
		}
		adj[b[0]] = append(adj[b[0]], b[1])
		adj[b[1]] = append(adj[b[1]], b[0])
	}

	seen := make(map[pair]int)
	var order []pair
	for start := 0; start < numAtoms; start++ {
		depth := map[int]int{start: 0}
		frontier := []int{start}
		for d := 1; d <= 3; d++ {
			var next []int
			for _, a := range frontier {
				for _, b := range adj[a] {
					if _, ok := depth[b]; ok {
						continue
					}
					depth[b] = d
					next = append(next, b)
					if b > start {
						p := pair{start, b}
						if _, ok := seen[p]; !ok {
							order = append(order, p)
						}
						seen[p] = d
					}
				}
			}
			frontier = next
		}
	}

	out := make([]Exclusion, 0, len(order))
	for _, p := range order {
		e := Exclusion{I: p.i, J: p.j, ChargeScale: 1, LJScale: 1}
		if seen[p] == 3 {
			e.ChargeScale = 1 - q14
			e.LJScale = 1 - lj14
		}
		out = append(out, e)
	}
	return out, nil
}

// ExclusionsFromScaleMatrix converts symmetric matrices of retained
// fractions into exclusions. Pairs retained in full are omitted.
func ExclusionsFromScaleMatrix(charge, lj [][]float64) ([]Exclusion, error) {
	n := len(charge)
	if len(lj) != n {
		return nil, fmt.Errorf("%w: scale matrices %d and %d", dynamo.ErrDimensionMismatch, n, len(lj))
	}
	var out []Exclusion
	for i := 0; i < n; i++ {
		if len(charge[i]) != n || len(lj[i]) != n {
			return nil, fmt.Errorf("%w: scale matrix row %d", dynamo.ErrDimensionMismatch, i)
		}
		for j := i + 1; j < n; j++ {
			if charge[i][j] != charge[j][i] || lj[i][j] != lj[j][i] {
				return nil, dynamo.Configf("scale matrix not symmetric at (%d, %d)", i, j)
			}
			if charge[i][j] == 1 && lj[i][j] == 1 {
				continue
			}
			out = append(out, Exclusion{I: i, J: j, ChargeScale: 1 - charge[i][j], LJScale: 1 - lj[i][j]})
		}
	}
	return out, nil
}
