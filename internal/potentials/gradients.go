package potentials

import (
	"fmt"

	"github.com/san-kum/revsim/internal/dynamo"
)

// Block is one named group of parameter gradients.
type Block struct {
	Name       string    `json:"name" yaml:"name"`
	GlobalIdxs []int     `json:"global_idxs" yaml:"global_idxs"`
	Values     []float64 `json:"values" yaml:"values"`
}

// ParamGrad is the gradient payload of one term. Terms without trainable
// parameters report Absent and no blocks.
type ParamGrad struct {
	Term   string  `json:"term" yaml:"term"`
	Kind   Kind    `json:"kind" yaml:"kind"`
	Absent bool    `json:"absent" yaml:"absent"`
	Blocks []Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// Block returns the named block, or nil.
func (g ParamGrad) Block(name string) *Block {
	for i := range g.Blocks {
		if g.Blocks[i].Name == name {
			return &g.Blocks[i]
		}
	}
	return nil
}

// AssembleGrad splits a term's flat parameter adjoint into its gradient
// blocks. An unknown kind means the term list and the gradient layout
// disagree and is returned as ErrUnknownTerm.
func AssembleGrad(s Spec, adj []float64) (ParamGrad, error) {
	g := ParamGrad{Term: s.Label(), Kind: s.Kind}
	blocks, err := layout(s)
	if err != nil {
		return ParamGrad{}, err
	}
	if blocks == nil {
		g.Absent = true
		return g, nil
	}

	total := 0
	for _, b := range blocks {
		total += b.size
	}
	if total != len(adj) {
		return ParamGrad{}, fmt.Errorf("%w: term %s has %d parameter adjoints, want %d",
			dynamo.ErrDimensionMismatch, s.Label(), len(adj), total)
	}

	off := 0
	for _, b := range blocks {
		idxs := s.GlobalIdxs[b.name]
		if idxs == nil {
			idxs = make([]int, b.size)
			for i := range idxs {
				idxs[i] = i
			}
		}
		values := make([]float64, b.size)
		copy(values, adj[off:off+b.size])
		g.Blocks = append(g.Blocks, Block{Name: b.name, GlobalIdxs: idxs, Values: values})
		off += b.size
	}
	return g, nil
}
