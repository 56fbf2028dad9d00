// Package main is the single-binary entrypoint for genforge.
// genforge generates data-access code from live database schemas, with a
// progressive rollout between its legacy and new generation pipelines.
package main

import "github.com/genforge/genforge/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
