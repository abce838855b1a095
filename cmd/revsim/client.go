package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/san-kum/revsim/internal/config"
	"github.com/san-kum/revsim/internal/rpc"
	"github.com/san-kum/revsim/internal/sim"
	"github.com/san-kum/revsim/internal/storage"
	"github.com/san-kum/revsim/internal/viz"
	"github.com/san-kum/revsim/internal/worker"
)

const defaultAddr = "localhost:5000"

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", defaultAddr, "worker address")
	cmd.Flags().String("out", "", "write the reply as JSON to this file")
}

func dial(cmd *cobra.Command) (*rpc.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	return rpc.Dial(addr, cfg.MaxMessageBytes)
}

// writeReply writes v as JSON to the --out file, or to stdout when no
// file was given and toStdout is set.
func writeReply(cmd *cobra.Command, v any, toStdout bool) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		if toStdout {
			return storage.ExportJSON(os.Stdout, v)
		}
		return nil
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	return storage.ExportJSON(f, v)
}

// loadSystem resolves a system from --system, or from a preset name given
// as the first argument.
func loadSystem(cmd *cobra.Command, args []string) (sim.System, string, error) {
	path, _ := cmd.Flags().GetString("system")
	if path != "" {
		sys, err := config.LoadSystem(path)
		return sys, path, err
	}
	if len(args) == 0 {
		return sim.System{}, "", fmt.Errorf("need a preset name or --system (presets: %v)", config.ListPresets())
	}
	sys, ok := config.GetPreset(args[0])
	if !ok {
		return sim.System{}, "", fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	return sys, args[0], nil
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "drop every session held by a worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.ResetState(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(viz.Status(true, "worker state reset"))
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func forwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forward [preset]",
		Short: "run a forward pass on a worker",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runForward,
	}
	addClientFlags(cmd)
	f := cmd.Flags()
	f.String("system", "", "system file (yaml or json)")
	f.String("key", "", "session key (default: random)")
	f.String("precision", config.DefaultPrecision, "single or double")
	f.Int("frames", config.DefaultFrames, "number of frames to return")
	f.Bool("inference", false, "do not keep a session for a backward pass")
	return cmd
}

func runForward(cmd *cobra.Command, args []string) error {
	sys, name, err := loadSystem(cmd, args)
	if err != nil {
		return err
	}
	key, _ := cmd.Flags().GetString("key")
	inference, _ := cmd.Flags().GetBool("inference")
	if key == "" && !inference {
		key = uuid.NewString()
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	reply, err := c.ForwardMode(cmd.Context(), &worker.ForwardRequest{
		System:    sys,
		Precision: cfg.Precision,
		Key:       key,
		NFrames:   cfg.Frames,
		Inference: inference,
	})
	if err != nil {
		return err
	}

	rows := []viz.Row{
		viz.R("system", name),
		viz.R("key", key),
		viz.R("steps", len(reply.Energies)),
		viz.R("frames", len(reply.Frames)),
	}
	if n := len(reply.Energies); n > 0 {
		rows = append(rows, viz.R("final energy", reply.Energies[n-1], "%.6g kJ/mol"))
	}
	fmt.Fprintln(os.Stderr, viz.Summary("forward", rows))
	return writeReply(cmd, reply, false)
}

func backwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backward",
		Short: "run the backward pass of a stored session",
		Args:  cobra.NoArgs,
		RunE:  runBackward,
	}
	addClientFlags(cmd)
	f := cmd.Flags()
	f.String("key", "", "session key")
	f.String("adjoint", "", "JSON file with adjoint_du_dls and x_t_adjoint (default: zeros)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func runBackward(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("key")
	req := &worker.BackwardRequest{}
	if path, _ := cmd.Flags().GetString("adjoint"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, req); err != nil {
			return fmt.Errorf("adjoint file: %w", err)
		}
	}
	req.Key = key

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	reply, err := c.BackwardMode(cmd.Context(), req)
	if err != nil {
		return err
	}
	return writeReply(cmd, reply, true)
}
