// Package cli implements the command-line interface for OVC.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalvik/ovc/internal/config"
	"github.com/kalvik/ovc/internal/core"
	"github.com/kalvik/ovc/internal/store"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	Store  store.Store
	DB     *core.DB
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext loads the repository config and opens the store
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		exitError("failed to open store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	return &cmdContext{Config: cfg, Store: st, DB: core.Open(st, logger)}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		return store.NewBolt(cfg.DatabasePath())
	default:
		return store.NewSQLite(cfg.DatabasePath())
	}
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ovc",
	Short: "Object Version Control",
	Long: `OVC (Object Version Control) is a git-like versioning layer for
document stores. Every write produces an immutable commit, branches are
named pointers into the commit graph, and readers always see a
consistent snapshot.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(gcCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
