package main

import (
	"os"

	"github.com/phanxgames/arbor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
