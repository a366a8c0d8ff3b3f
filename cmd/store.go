package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"curator/internal/docstore"
	"curator/internal/publish"

	"github.com/spf13/cobra"
)

// storeCmd groups document store subcommands.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Document store utilities",
}

var storeRecent int

// storePingCmd verifies the configured store is reachable, prints counts and
// the most recent posts.
var storePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping the document store and print document counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		mustValidate(cfg.ValidateStore)

		store, closeStore := openStore(cfg)
		defer closeStore()

		ctx, cancel := ioContext(cfg)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("%s store unreachable: %w", cfg.Store.Driver, err)
		}
		counts := map[string]int{}
		for _, kind := range []string{docstore.KindQueue, docstore.KindPost, docstore.KindNews} {
			n, err := store.Count(ctx, docstore.Filter{Kinds: []string{kind}})
			if err != nil {
				return err
			}
			counts[kind] = n
		}
		fmt.Fprintf(cmd.OutOrStdout(), "PONG (%s) queue=%d posts=%d news=%d\n", cfg.Store.Driver,
			counts[docstore.KindQueue], counts[docstore.KindPost], counts[docstore.KindNews])

		if storeRecent <= 0 {
			return nil
		}
		posts, err := store.Query(ctx, docstore.Filter{Kinds: []string{docstore.KindPost}, Limit: storeRecent, Newest: true})
		if err != nil {
			return err
		}
		writeRecent(cmd.OutOrStdout(), posts)
		return nil
	},
}

// writeRecent prints one post per block with its draft or published state.
func writeRecent(w io.Writer, posts []docstore.Document) {
	if len(posts) == 0 {
		fmt.Fprintln(w, "no posts found")
		return
	}
	for _, d := range posts {
		var p struct {
			Title string `json:"title"`
			Slug  struct {
				Current string `json:"current"`
			} `json:"slug"`
		}
		_ = json.Unmarshal(d.Data, &p)
		state := "PUBLISHED"
		if publish.IsDraft(d.ID) {
			state = "DRAFT"
		}
		fmt.Fprintf(w, "[%s] %s\n   slug: %s\n   id: %s\n", state, p.Title, p.Slug.Current, d.ID)
	}
}

func init() {
	storePingCmd.Flags().IntVar(&storeRecent, "recent", 5, "number of recent posts to list (0 to disable)")
	storeCmd.AddCommand(storePingCmd)
	rootCmd.AddCommand(storeCmd)
}
