package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd builds the allgather-demo command tree (grounded on teacher's
// cmd/kwil-cli/cmds command-tree construction, e.g. chain_id.go).
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "allgather-demo",
		Short: "Exercise the collective-share all-gather library end-to-end",
	}
	root.AddCommand(runCmd())
	return root
}
