package main

import (
	"os"

	"github.com/fmuoria/recruit-crm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
