package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/sim"
	"github.com/san-kum/revsim/internal/viz"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [preset]",
		Short: "verify that a system integrates back to its initial state",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheck,
	}
	f := cmd.Flags()
	f.String("system", "", "system file (yaml or json)")
	f.Float64("tol-double", 1e-8, "allowed deviation at double precision")
	f.Float64("tol-single", 1e-2, "allowed deviation at single precision")
	return cmd
}

// roundTrip runs forward then backward with a zero adjoint and returns the
// largest deviation of positions and velocities from the initial state.
func roundTrip(sys sim.System, prec dynamo.Precision) (dx, dv float64, err error) {
	eng, err := sim.Assemble(sys, prec)
	if err != nil {
		return 0, 0, err
	}
	if _, err := eng.Forward(nil, 0); err != nil {
		return 0, 0, err
	}
	if _, err := eng.Backward(nil, sim.Adjoint{}); err != nil {
		return 0, 0, err
	}
	x, v := eng.State()
	dx = floats.Distance(dynamo.FromRows[float64](x), dynamo.FromRows[float64](sys.X0), math.Inf(1))
	dv = floats.Distance(dynamo.FromRows[float64](v), dynamo.FromRows[float64](sys.Velocities()), math.Inf(1))
	return dx, dv, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	sys, name, err := loadSystem(cmd, args)
	if err != nil {
		return err
	}
	tolD, _ := cmd.Flags().GetFloat64("tol-double")
	tolS, _ := cmd.Flags().GetFloat64("tol-single")

	failed := false
	for _, c := range []struct {
		prec dynamo.Precision
		tol  float64
	}{{dynamo.Double, tolD}, {dynamo.Single, tolS}} {
		dx, dv, err := roundTrip(sys, c.prec)
		if err != nil {
			return fmt.Errorf("%s: %w", c.prec, err)
		}
		ok := dx <= c.tol && dv <= c.tol
		failed = failed || !ok
		fmt.Println(viz.Status(ok, fmt.Sprintf("%s %-6s |Δx|∞=%.3g |Δv|∞=%.3g (tol %.1g)", name, c.prec, dx, dv, c.tol)))
	}
	if failed {
		return fmt.Errorf("%s is not reversible within tolerance", name)
	}
	return nil
}
