package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalvik/ovc/internal/config"
	"github.com/kalvik/ovc/internal/core"
)

var initBackend string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new OVC repository",
	Long: `Create a .ovc directory in the current directory, open the store,
and create the default branch pointing at the root commit.`,
	Run: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendSQLite,
		"Store backend (sqlite or bolt)")
}

func runInit(cmd *cobra.Command, args []string) {
	cfg, err := config.Initialize(initBackend)
	if err != nil {
		exitError("%v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		exitError("failed to open store: %v", err)
	}
	defer st.Close()

	db := core.Open(st, nil)
	if err := db.Init(context.Background()); err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Initialized empty ovc repository in %s (%s backend)\n", cfg.Path(), cfg.Backend)
}
