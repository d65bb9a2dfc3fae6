// Command tableside is a terminal client for a restaurant table-ordering backend.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tableside/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tableside: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
