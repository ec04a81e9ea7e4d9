package main

import (
	"fmt"
	"os"

	"github.com/oakwood-commons/facetview/cmd"
	"github.com/oakwood-commons/facetview/pkg/logger"
)

func main() {
	exitCode := 0
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitCode = 1
	}

	logger.Sync()
	if err := cmd.CloseLog(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
