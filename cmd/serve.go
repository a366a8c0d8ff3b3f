package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"curator/internal/config"
	"curator/internal/pipeline"
	"curator/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on a schedule and expose metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		mustValidate(cfg.Validate)

		store, closeStore := openStore(cfg)
		defer closeStore()
		orch, err := newOrchestrator(cfg, store)
		if err != nil {
			return err
		}

		runner := &worker.PipelineRunner{
			Pipeline: orch,
			Interval: config.Duration(cfg.Pipeline.Interval),
			OnReport: func(r pipeline.Report) { slog.Info("serve: run complete", "report", r.String()) },
		}
		ws := []worker.Worker{runner}
		if cfg.Metrics.Addr != "" && cfg.Metrics.Addr != "off" {
			slog.Info("serving metrics", "addr", cfg.Metrics.Addr)
			ws = append(ws, &worker.MetricsServer{Addr: cfg.Metrics.Addr})
		}
		mgr := worker.NewManager(ws...)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		slog.Info("starting scheduled runs", "interval", runner.Interval, "feeds", len(newAggregator(cfg).URLs()))
		return mgr.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
