package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sitebook/sitebook-api/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// denied checks and rejected quantities exit 2 so scripts can tell them from usage errors
		if errors.Is(err, cli.ErrAccessDenied) || errors.Is(err, cli.ErrCeilingExceeded) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
