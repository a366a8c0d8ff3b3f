package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runCmd performs a single ingest-and-promote run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once: ingest every feed, then promote",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		mustValidate(cfg.Validate)

		store, closeStore := openStore(cfg)
		defer closeStore()
		orch, err := newOrchestrator(cfg, store)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rep := orch.Run(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), rep.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
