package main

import (
	"os"

	"github.com/spigell/resume-tuner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
