package main

import (
	"os"

	"github.com/garden-io/garden-core/pkg/clicmd"
)

// version is set by GoReleaser at build time.
var version = "dev"

func main() {
	os.Exit(clicmd.Execute(version, os.Args[1:]))
}
