package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <ref> [collection object-id]",
	Short: "Show a commit, or resolve an object at a snapshot",
	Long: `Show the deltas recorded by a commit, or with a collection and
object id, resolve which document revision is visible at that ref.

Examples:
  ovc show master            # Show master's head commit
  ovc show 42                # Show commit 42
  ovc show master people 7   # Resolve object 7 of 'people' at master`,
	Args: cobra.RangeArgs(1, 3),
	Run:  runShow,
}

func runShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	ctx := context.Background()

	if len(args) == 3 {
		runResolve(ctx, c, args[0], args[1], args[2])
		return
	}
	if len(args) != 1 {
		exitError("expected <ref> or <ref> <collection> <object-id>")
	}

	cid, err := c.DB.ResolveRef(ctx, args[0])
	if err != nil {
		exitError("%v", err)
	}
	if cid == 0 {
		fmt.Println("commit 0 (root, empty)")
		return
	}

	commit, err := c.Store.GetCommit(ctx, cid)
	if err != nil {
		exitError("%v", err)
	}

	color.New(color.FgYellow).Printf("commit %d\n", commit.ID)
	fmt.Printf("parent: %d\n", commit.Parent)
	if ts := commit.Time(); !ts.IsZero() {
		fmt.Printf("date:   %s\n", ts.Format("Mon Jan 2 15:04:05 2006"))
	}

	collections := make([]string, 0, len(commit.Deltas))
	for name := range commit.Deltas {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	for _, name := range collections {
		fmt.Printf("\n%s:\n", name)
		for oid, value := range commit.Deltas[name].All() {
			fmt.Printf("  %d -> %d\n", oid, value)
		}
	}
}

func runResolve(ctx context.Context, c *cmdContext, ref, collection, objectArg string) {
	objectID, err := strconv.ParseUint(objectArg, 10, 64)
	if err != nil {
		exitError("invalid object id '%s'", objectArg)
	}

	snap, err := c.DB.Checkout(ctx, ref)
	if err != nil {
		exitError("%v", err)
	}

	value, found, err := snap.Get(ctx, collection, objectID)
	if err != nil {
		exitError("%v", err)
	}
	if !found {
		exitError("object %d not visible at commit %d", objectID, snap.CommitID())
	}

	fmt.Printf("object %d -> revision %d (at commit %d)\n", objectID, value, snap.CommitID())

	doc, err := c.Store.GetDocument(ctx, collection, value)
	if err == nil && len(doc.Data) > 0 {
		fmt.Println(string(doc.Data))
	}
}
