package main

import (
	"fmt"
	"os"

	"github.com/bnema/waycomp/cmd"
)

var (
	version = "0.1.0-dev"
	commit  string
	date    string
)

func main() {
	cmd.Version, cmd.Commit, cmd.Date = version, commit, date
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
