package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/christophcemper/syncplus/internal/cli"
)

const (
	cmdName = "syncdemo"

	shortDesc = "Exercise the syncplus contexts from the command line."
	longDesc  = `syncdemo runs small concurrent workloads against the syncplus contexts
(Monitor, Gate, RW and Tree) and prints what happened: final values, handshake
order, peak concurrency and per-operation lock statistics.

Set --warn_after (or SYNCPLUS_WARN_AFTER) to see slow acquisitions logged.
`
)

func main() {
	cmd := cli.NewRootCmd(cmdName, shortDesc, longDesc)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimLeft(err.Error(), "\n"))
		os.Exit(1)
	}
}
