package worker

import (
	"github.com/san-kum/revsim/internal/potentials"
	"github.com/san-kum/revsim/internal/sim"
)

// Empty is the request and reply of ResetState.
type Empty struct{}

// ForwardRequest runs a forward pass. Key may be empty only for inference
// passes, which are never retained.
type ForwardRequest struct {
	System    sim.System `json:"system"`
	Precision string     `json:"precision" validate:"required"`
	Key       string     `json:"key" validate:"required_unless=Inference true"`
	NFrames   int        `json:"n_frames" validate:"gte=0"`
	Inference bool       `json:"inference"`
}

// ForwardReply carries one dU/dλ series per term (null when the series is
// zero at every step), the total energy of every step and the retained
// frames.
type ForwardReply struct {
	DuDls    [][]float64    `json:"du_dls"`
	Energies []float64      `json:"energies"`
	Frames   [][][3]float64 `json:"frames"`
}

// BackwardRequest consumes the session under Key. AdjointDuDls is aligned
// with ForwardReply.DuDls; XTAdjoint defaults to zeros.
type BackwardRequest struct {
	Key          string       `json:"key" validate:"required"`
	AdjointDuDls [][]float64  `json:"adjoint_du_dls"`
	XTAdjoint    [][3]float64 `json:"x_t_adjoint,omitempty"`
}

// BackwardReply holds one gradient payload per term, in term order.
type BackwardReply struct {
	Grads []potentials.ParamGrad `json:"grads"`
}
