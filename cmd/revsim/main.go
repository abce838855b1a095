package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/revsim/internal/config"
)

var (
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "revsim",
		Short:         "reversible Langevin dynamics with adjoint gradients",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Resolve(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err = newLogger(os.Stderr, cfg.Log)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.String("data-dir", config.DefaultDataDir, "run archive directory")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(
		workerCmd(),
		resetCmd(),
		forwardCmd(),
		backwardCmd(),
		runCmd(),
		checkCmd(),
		listCmd(),
		plotCmd(),
		presetsCmd(),
		configCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
