// Command chaind is the node process: it opens the versioned storage
// backend, wires core/app.App, and speaks ABCI to a CometBFT consensus
// driver over a socket or gRPC server (§4.4, §6).
//
// Grounded on the teacher's cmd/synnergy/main.go (a cobra root command with
// one subcommand tree per concern) generalized from mock subcommands into
// the real init/start/query/tx lifecycle this chain needs.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "chaind",
		Short: "grugchain node: storage backend, WASM execution pipeline, ABCI server",
	}
	root.AddCommand(initCmd())
	root.AddCommand(startCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(txCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
