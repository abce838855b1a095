package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/revsim/internal/dynamo"
)

// Ensemble runs independent forward passes of one system with seeds
// Seed, Seed+1, ... Replicas share nothing, so they run concurrently.
type Ensemble struct {
	sys       System
	precision dynamo.Precision
	replicas  int
	limit     int
}

func NewEnsemble(sys System, prec dynamo.Precision, replicas, limit int) *Ensemble {
	if limit <= 0 {
		limit = replicas
	}
	return &Ensemble{sys: sys, precision: prec, replicas: replicas, limit: limit}
}

func (e *Ensemble) Run(ctx context.Context, frames int) ([]*ForwardResult, error) {
	results := make([]*ForwardResult, e.replicas)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i := 0; i < e.replicas; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sys := e.sys
			sys.Integrator.Seed = e.sys.Integrator.Seed + int64(i)

			eng, err := Assemble(sys, e.precision)
			if err != nil {
				return err
			}
			results[i], err = eng.Forward(nil, frames)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
