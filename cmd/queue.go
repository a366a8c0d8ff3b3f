package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"curator/internal/curation"

	"github.com/spf13/cobra"
)

// queueCmd groups curation queue subcommands.
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the curation queue",
}

var queueListLimit int

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the oldest queue entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		mustValidate(cfg.ValidateStore)

		store, closeStore := openStore(cfg)
		defer closeStore()
		q := curation.NewQueue(store)

		ctx, cancel := ioContext(cfg)
		defer cancel()
		total, err := q.Len(ctx)
		if err != nil {
			return err
		}
		entries, err := q.ListOldest(ctx, queueListLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tFORMAT\tSOURCE\tTITLE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Format, e.SourceHost, e.Title)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(entries), total)
		return nil
	},
}

func init() {
	queueListCmd.Flags().IntVar(&queueListLimit, "limit", 20, "number of entries to show")
	queueCmd.AddCommand(queueListCmd)
	rootCmd.AddCommand(queueCmd)
}
