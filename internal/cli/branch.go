package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var branchCmd = &cobra.Command{
	Use:   "branch [name] [start-point]",
	Short: "List, create, or delete branches",
	Long: `Manage branches in the OVC repository.

Without arguments, lists all branches and their head commits.
With a name argument, creates a new branch.

Examples:
  ovc branch                 # List all branches
  ovc branch feature         # Create 'feature' at the root commit
  ovc branch feature master  # Create 'feature' at master's head
  ovc branch feature 42      # Create 'feature' at commit 42
  ovc branch -d feature      # Delete 'feature'`,
	Run: runBranch,
}

var branchDelete bool

func init() {
	branchCmd.Flags().BoolVarP(&branchDelete, "delete", "d", false, "Delete a branch")
}

func runBranch(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	ctx := context.Background()

	if branchDelete {
		if len(args) == 0 {
			exitError("branch name required for deletion")
		}
		if err := c.DB.DeleteBranch(ctx, args[0]); err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Deleted branch '%s'\n", args[0])
		return
	}

	if len(args) > 0 {
		name := args[0]
		startPoint := ""
		if len(args) > 1 {
			startPoint = args[1]
		}

		if err := c.DB.CreateBranch(ctx, name, startPoint); err != nil {
			exitError("%v", err)
		}

		head, _ := c.DB.Head(ctx, name)
		fmt.Printf("Created branch '%s' at commit %d\n", name, head)
		return
	}

	branches, err := c.DB.ListBranches(ctx)
	if err != nil {
		exitError("failed to list branches: %v", err)
	}

	if len(branches) == 0 {
		fmt.Println("No branches yet. Run 'ovc init' first.")
		return
	}

	green := color.New(color.FgGreen)
	for _, branch := range branches {
		green.Printf("  %s", branch.Name)
		fmt.Printf(" -> commit %d\n", branch.Head)
	}
}
