package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// feedsCmd groups feed subcommands.
var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Feed utilities",
}

// feedsCheckCmd fetches every configured feed without classifying anything.
var feedsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch every feed and print item counts or errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		agg := newAggregator(cfg)
		failed := 0
		for _, u := range agg.URLs() {
			res := agg.Fetch(context.Background(), u)
			if res.Err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", u, res.Err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK   %s: %d items\n", u, len(res.Items))
			for _, it := range res.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "     - %s <%s>\n", it.Title, it.Link)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d feeds failed", failed, len(agg.URLs()))
		}
		return nil
	},
}

func init() {
	feedsCmd.AddCommand(feedsCheckCmd)
	rootCmd.AddCommand(feedsCmd)
}
