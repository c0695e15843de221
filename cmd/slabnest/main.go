// SlabNest nests part outlines onto stock sheets.
//
// Build:
//
//	go build -o slabnest ./cmd/slabnest
//
// The nest, analyze, compare, parse and import commands work on local
// files; serve exposes the nesting controller over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
