// Command cqtrace runs the trace propagation demo service.
package main

import (
	"fmt"
	"os"

	"github.com/Combine-Capital/cqtrace/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
