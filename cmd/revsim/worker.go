package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/revsim/internal/compute"
	"github.com/san-kum/revsim/internal/config"
	"github.com/san-kum/revsim/internal/rpc"
	"github.com/san-kum/revsim/internal/worker"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "serve the revsim.Worker gRPC service",
		Args:  cobra.NoArgs,
		RunE:  runWorker,
	}
	f := cmd.Flags()
	f.String("listen", config.DefaultListen, "gRPC listen address")
	f.String("metrics-listen", config.DefaultMetricsListen, "prometheus listen address (empty disables)")
	f.Int("max-message-bytes", config.DefaultMaxMessageBytes, "gRPC message size limit")
	f.String("backend", config.DefaultBackend, "compute backend (cpu, serial)")
	f.Int("workers", 0, "term evaluation workers (0 = all cores)")
	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	backend, err := compute.NewBackend(cfg.Backend, cfg.Workers)
	if err != nil {
		return err
	}
	svc := worker.New(backend, worker.WithLogger(logger))
	defer svc.Close()

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	srv := rpc.NewGRPCServer(svc, cfg.MaxMessageBytes)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("worker listening",
			"addr", lis.Addr().String(),
			"backend", backend.Name(),
			"workers", backend.Workers(),
			"max_message_bytes", cfg.MaxMessageBytes,
		)
		return srv.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("worker shutting down")
		srv.GracefulStop()
		return nil
	})

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		hs := &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsListen)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
