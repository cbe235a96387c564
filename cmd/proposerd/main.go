// Command proposerd runs the proposer role of a pipelined multi-decree
// Paxos replication engine: either as a real TCP daemon talking to a
// configured acceptor cluster (serve), or as a self-contained
// single-process demo against in-memory fake acceptors (demo).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "proposerd",
		Short: "Run the proposer role of a pipelined multi-decree Paxos cluster",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newDemoCmd())
	return root
}
