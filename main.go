package main

import (
	"os"

	"github.com/Druk83/TrainingGround/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
