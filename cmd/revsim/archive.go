package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/revsim/internal/config"
	"github.com/san-kum/revsim/internal/metrics"
	"github.com/san-kum/revsim/internal/potentials"
	"github.com/san-kum/revsim/internal/storage"
	"github.com/san-kum/revsim/internal/viz"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.DataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tPREC\tATOMS\tSTEPS\tTERMS\tGRAD")
	for _, run := range runs {
		grad := "-"
		if run.Backward {
			grad = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Precision,
			run.Atoms,
			run.Steps,
			strings.Join(run.Terms, ","),
			grad,
		)
	}
	return w.Flush()
}

func plotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot energies and dU/dλ of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	cmd.Flags().Int("width", 80, "plot width")
	cmd.Flags().Int("height", 12, "plot height")
	return cmd
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")

	st := storage.New(cfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(series.Energies) == 0 {
		return fmt.Errorf("no data to plot")
	}

	rows := []viz.Row{
		viz.R("run", meta.ID),
		viz.R("name", meta.Name),
		viz.R("steps", meta.Steps),
	}
	for _, k := range []string{"delta_g_ti", "work", "delta_g_jarzynski", "temperature"} {
		if v, ok := meta.Metrics[k]; ok {
			rows = append(rows, viz.R(k, v, "%.4f"))
		}
	}
	fmt.Println(viz.Summary("run", rows))
	fmt.Println()

	grads, err := st.LoadGradients(runID)
	if err != nil {
		return err
	}
	if grads != nil {
		fmt.Println(viz.Summary("parameter gradients", gradientRows(grads)))
		fmt.Println()
	}

	fmt.Println(viz.Plot(series.Energies, "total potential energy (kJ/mol)", width, height))
	fmt.Println()
	if len(series.TermEnergies) > 1 {
		fmt.Println(viz.PlotMany(series.TermEnergies, series.Terms, "energy by term", width, height))
		fmt.Println()
	}

	total, err := metrics.TotalDuDl(series.DuDl, len(series.Lambdas))
	if err != nil {
		return err
	}
	fmt.Println(viz.Plot(total, "dU/dλ (kJ/mol)", width, height))
	fmt.Println(viz.Separator(width))
	for _, w := range metrics.Windows(series.Lambdas, total) {
		if w.N > 1 {
			fmt.Printf("λ=%-8.4g <dU/dλ>=%-12.6g σ=%-10.4g n=%d\n", w.Lambda, w.Mean, w.StdDev, w.N)
		}
	}

	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(frames) > 0 {
		fmt.Println(viz.Separator(width))
		fmt.Printf("trajectory, %d frames (x/y)\n", len(frames))
		fmt.Print(viz.Trajectory(frames, 0, 1, width/2, height/2))
	}
	return nil
}

// gradientRows summarizes each gradient block by its L2 norm.
func gradientRows(grads []potentials.ParamGrad) []viz.Row {
	var rows []viz.Row
	for _, g := range grads {
		if g.Absent {
			rows = append(rows, viz.R(g.Term, "absent"))
			continue
		}
		for _, b := range g.Blocks {
			label := g.Term + "/" + b.Name
			rows = append(rows, viz.R(label, floats.Norm(b.Values, 2), "%.6g"))
		}
	}
	return rows
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list built-in systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tATOMS\tSTEPS\tDESCRIPTION")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				sys := p.Build()
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", name, sys.NumAtoms(), sys.Steps(), p.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			kinds := make([]string, 0, len(potentials.Kinds()))
			for _, k := range potentials.Kinds() {
				kinds = append(kinds, string(k))
			}
			fmt.Printf("\nterm kinds: %s\n", strings.Join(kinds, ", "))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config <path>",
		Short: "write the resolved configuration as yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			logger.Info("config written", "path", args[0])
			return nil
		},
	}
}
