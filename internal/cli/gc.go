package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Garbage-collect unreachable history",
	Long: `Find and prune commits unreachable from every branch head, and
documents referenced by no commit.

Document GC counts a reference from any commit, including dangling
ones, so prune commits before documents to collect revisions that only
dangling commits still reference.`,
}

var (
	gcExpiry string
	gcDryRun bool
)

var gcCommitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Prune dangling commits",
	Run:   runGCCommits,
}

var gcDocumentsCmd = &cobra.Command{
	Use:   "documents <collection>",
	Short: "Prune unreferenced documents in a collection",
	Args:  cobra.ExactArgs(1),
	Run:   runGCDocuments,
}

func init() {
	gcCmd.PersistentFlags().StringVar(&gcExpiry, "expiry", "",
		"Only collect items older than this (e.g. 720h); defaults to the configured gc_expiry")
	gcCmd.PersistentFlags().BoolVar(&gcDryRun, "dry-run", false,
		"Report what would be pruned without deleting")
	gcCmd.AddCommand(gcCommitsCmd)
	gcCmd.AddCommand(gcDocumentsCmd)
}

func expiryFor(c *cmdContext) time.Duration {
	if gcExpiry != "" {
		d, err := time.ParseDuration(gcExpiry)
		if err != nil {
			exitError("invalid --expiry: %v", err)
		}
		return d
	}
	d, err := c.Config.Expiry()
	if err != nil {
		exitError("%v", err)
	}
	return d
}

func runGCCommits(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	ctx := context.Background()

	expiry := expiryFor(c)
	m := c.DB.Maintenance()

	if gcDryRun {
		cids, err := m.FindDanglingCommits(ctx, expiry)
		if err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Would prune %d dangling commit(s)\n", len(cids))
		return
	}

	n, err := m.PruneDanglingCommits(ctx, expiry)
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Pruned %d dangling commit(s)\n", n)
}

func runGCDocuments(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	ctx := context.Background()
	collection := args[0]

	expiry := expiryFor(c)
	m := c.DB.Maintenance()

	if gcDryRun {
		ids, err := m.FindUnreferencedDocuments(ctx, collection, expiry)
		if err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Would prune %d unreferenced document(s) from %s\n", len(ids), collection)
		return
	}

	n, err := m.PruneUnreferencedDocuments(ctx, collection, expiry)
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Pruned %d unreferenced document(s) from %s\n", n, collection)
}
