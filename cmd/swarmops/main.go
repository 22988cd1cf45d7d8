package main

import (
	"os"

	"github.com/karlmjogila/swarmops/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
