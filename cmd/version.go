package main

import (
	"os"

	aggkitprover "github.com/agglayer/aggkit-prover"
	"github.com/urfave/cli/v2"
)

func versionCmd(*cli.Context) error {
	aggkitprover.PrintVersion(os.Stdout)
	return nil
}
