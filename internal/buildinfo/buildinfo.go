// Package buildinfo exposes version metadata injected at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/syntheticsoul/internal/buildinfo.Version=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

// PrintBuildData writes the client banner with build metadata to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "SyntheticSoul client\nBuild version: %s\nBuild date: %s\nBuild commit: %s\n", Version, Date, Commit)
}
