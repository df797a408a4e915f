package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history",
	Long:  `Display stored commits, newest first.`,
	Run:   runLog,
}

var logLimit int

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "Limit the number of commits to show")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	ctx := context.Background()

	commits, err := c.Store.CommitLog(ctx, logLimit)
	if err != nil {
		exitError("failed to get commit log: %v", err)
	}

	if len(commits) == 0 {
		fmt.Println("No commits yet")
		return
	}

	heads := make(map[uint64][]string)
	if branches, err := c.DB.ListBranches(ctx); err == nil {
		for _, b := range branches {
			heads[b.Head] = append(heads[b.Head], b.Name)
		}
	}

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	for _, commit := range commits {
		yellow.Printf("commit %d", commit.ID)
		for _, name := range heads[commit.ID] {
			cyan.Printf(" (%s)", name)
		}
		fmt.Println()
		fmt.Printf("  parent: %d\n", commit.Parent)
		if ts := commit.Time(); !ts.IsZero() {
			fmt.Printf("  date:   %s\n", ts.Format("Mon Jan 2 15:04:05 2006"))
		}
		var changes int
		for _, ix := range commit.Deltas {
			changes += ix.Len()
		}
		fmt.Printf("  changes: %d in %d collection(s)\n\n", changes, len(commit.Deltas))
	}
}
