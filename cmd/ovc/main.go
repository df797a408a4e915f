// Command ovc is the OVC command-line interface.
package main

import (
	"os"

	"github.com/kalvik/ovc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
