package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/revsim/internal/compute"
	"github.com/san-kum/revsim/internal/config"
	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/metrics"
	"github.com/san-kum/revsim/internal/sim"
	"github.com/san-kum/revsim/internal/storage"
	"github.com/san-kum/revsim/internal/viz"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a system locally and archive the results",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLocal,
	}
	f := cmd.Flags()
	f.String("system", "", "system file (yaml or json)")
	f.String("precision", config.DefaultPrecision, "single or double")
	f.Int("frames", config.DefaultFrames, "number of frames to keep")
	f.String("backend", config.DefaultBackend, "compute backend (cpu, serial)")
	f.Int("workers", 0, "term evaluation workers (0 = all cores)")
	f.Bool("backward", false, "differentiate the summed dU/dλ with respect to every parameter")
	f.Int("replicas", 1, "independent replicas for a Jarzynski estimate")
	f.Int("parallel", 0, "replicas run at once (0 = all)")
	f.Float64("max-speed", 50, "speed (nm/ps) above which a step counts as unstable")
	f.Bool("no-save", false, "do not archive the run")
	return cmd
}

func runLocal(cmd *cobra.Command, args []string) error {
	sys, name, err := loadSystem(cmd, args)
	if err != nil {
		return err
	}
	prec, err := dynamo.ParsePrecision(cfg.Precision)
	if err != nil {
		return err
	}
	backend, err := compute.NewBackend(cfg.Backend, cfg.Workers)
	if err != nil {
		return err
	}
	defer backend.Cleanup()

	eng, err := sim.Assemble(sys, prec)
	if err != nil {
		return err
	}
	maxSpeed, _ := cmd.Flags().GetFloat64("max-speed")
	speed := metrics.NewSpeedLimit(maxSpeed)
	observers := []metrics.Metric{
		metrics.NewEnergyDrift(sys.Masses),
		metrics.NewTemperature(sys.Masses),
		speed,
	}
	for _, m := range observers {
		eng.Observe(m)
	}

	start := time.Now()
	res, err := eng.Forward(backend, cfg.Frames)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.Info("forward pass done", "system", name, "steps", sys.Steps(), "elapsed", elapsed)

	values := make(map[string]float64)
	for _, m := range observers {
		values[m.Name()] = m.Value()
	}
	rows := []viz.Row{
		viz.R("system", name),
		viz.R("precision", prec),
		viz.R("atoms", sys.NumAtoms()),
		viz.R("steps", sys.Steps()),
		viz.R("elapsed", elapsed.Round(time.Millisecond)),
		viz.R("temperature", values["temperature"], "%.1f K"),
		viz.R("under speed limit", values["speed_limit"], "%.3f"),
		viz.R("peak speed", speed.Peak(), "%.3f nm/ps"),
	}

	total, err := metrics.TotalDuDl(res.DuDls, sys.Steps())
	if err != nil {
		return err
	}
	lambdas := sys.Integrator.Lambdas
	if dg, err := metrics.ThermodynamicIntegration(lambdas, total); err == nil {
		values["delta_g_ti"] = dg
		rows = append(rows, viz.R("ΔG (TI)", dg, "%.4f kJ/mol"))
	}
	work, err := metrics.Work(lambdas, total)
	if err != nil {
		return err
	}
	values["work"] = work
	rows = append(rows, viz.R("work", work, "%.4f kJ/mol"))

	run := storage.Run{Name: name, System: sys, Precision: eng.Precision(), Result: res, Metrics: values}

	if backward, _ := cmd.Flags().GetBool("backward"); backward {
		adj := make([][]float64, len(res.DuDls))
		for i, s := range res.DuDls {
			if s != nil {
				adj[i] = make([]float64, len(s))
				for t := range adj[i] {
					adj[i][t] = 1
				}
			}
		}
		start := time.Now()
		grads, err := eng.Backward(backend, sim.Adjoint{DuDl: adj})
		if err != nil {
			return err
		}
		run.Grads = grads
		rows = append(rows, viz.R("backward", time.Since(start).Round(time.Millisecond)))
	}

	if replicas, _ := cmd.Flags().GetInt("replicas"); replicas > 1 {
		limit, _ := cmd.Flags().GetInt("parallel")
		results, err := sim.NewEnsemble(sys, prec, replicas, limit).Run(cmd.Context(), 0)
		if err != nil {
			return err
		}
		works := make([]float64, len(results))
		for i, r := range results {
			tot, err := metrics.TotalDuDl(r.DuDls, sys.Steps())
			if err != nil {
				return err
			}
			if works[i], err = metrics.Work(lambdas, tot); err != nil {
				return err
			}
		}
		dg, err := metrics.JarzynskiFreeEnergy(works, sys.Integrator.Temperature)
		if err == nil {
			values["delta_g_jarzynski"] = dg
			rows = append(rows, viz.R("ΔG (Jarzynski)", dg, "%.4f kJ/mol"))
		}
	}

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(run)
		if err != nil {
			return err
		}
		rows = append(rows, viz.R("run", runID))
	}

	fmt.Println(viz.Summary("run", rows))
	fmt.Println(viz.SparklineChart(total, 60))
	return nil
}
