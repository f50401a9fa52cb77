// Command allgather-demo boots a small collective in-process and runs
// one Share round, to exercise the library end-to-end from a binary
// entrypoint (SPEC_FULL.md §5). It is not a benchmark driver: it
// emits no CSV, no timing statistics, only pass/fail.
package main

import (
	"fmt"
	"os"

	"github.com/kwil-collective/allgather/cmd/allgather-demo/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
