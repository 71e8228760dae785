// Command slowscan encodes images as SSTV audio.
//
// Usage:
//
//	slowscan encode [flags] IMAGE...
//	slowscan modes
//	slowscan serve
//	slowscan repeat [DIR]
//
// Settings come from the file named by --config (YAML or TOML) on top of
// built-in defaults; command-line flags override both.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
