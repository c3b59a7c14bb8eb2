// Command xun is the engine's multi-command CLI (§6): exec and graph run
// or introspect a Blueprint compiled from a module's declared functions;
// mount materializes a tag-query view of a store as a read-only
// directory tree.
package main

import (
	"fmt"
	"os"

	"github.com/xunhq/xun/cmd/xun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitCodeFor(err))
	}
}
