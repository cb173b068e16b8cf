package main

import (
	"os"

	"github.com/Adam-Huang/reflect/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
