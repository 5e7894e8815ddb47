// Package main implements the hotbundle CLI.
// It bundles a TypeScript entry file with its local imports and keeps
// re-running it as the sources change.
package main

import (
	"os"

	"github.com/l3aro/hotbundle/cmd/hotbundle/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (" + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`hotbundle version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
