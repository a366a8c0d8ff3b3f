package cmd

import (
	"context"
	"fmt"

	"curator/internal/curation"
	"curator/internal/pipeline"
	"curator/internal/publish"

	"github.com/spf13/cobra"
)

var (
	promoteLimit int
	promoteAs    string
)

// promoteCmd promotes queued entries without ingesting feeds.
var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote the oldest queue entries into draft posts or news items",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		mustValidate(cfg.ValidateStore)

		limit := cfg.Pipeline.Promotions()
		if cmd.Flags().Changed("limit") {
			limit = promoteLimit
		}
		as := cfg.Pipeline.PromoteAs
		if cmd.Flags().Changed("as") {
			as = promoteAs
		}
		target, err := publish.ParseTarget(as)
		if err != nil {
			return err
		}
		store, closeStore := openStore(cfg)
		defer closeStore()

		ctx, cancel := context.WithTimeout(context.Background(), pipeline.PromotionTimeout(ioTimeout(cfg), limit))
		defer cancel()
		p := publish.NewPromoter(curation.NewQueue(store), store, publish.WithTarget(target))
		n, err := p.Promote(ctx, limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "promoted %d of at most %d as %s\n", n, limit, target)
		return nil
	},
}

func init() {
	promoteCmd.Flags().IntVar(&promoteLimit, "limit", 0, "maximum entries to promote (default: pipeline.promote_limit)")
	promoteCmd.Flags().StringVar(&promoteAs, "as", "", "promotion target: post or news (default: pipeline.promote_as)")
	rootCmd.AddCommand(promoteCmd)
}
