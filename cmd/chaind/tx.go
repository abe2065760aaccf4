package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grugchain/core/gtypes"
	pkgconfig "grugchain/pkg/config"
)

// txCmd dry-runs a transaction against the node's latest committed state
// without finalizing a block, reporting the gas-charged outcome it would
// have produced (§9 Simulate).
func txCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tx",
		Short: "build and simulate transactions",
	}
	root.AddCommand(txSimulateCmd())
	return root
}

func txSimulateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "simulate [tx.json]",
		Short: "simulate a signed or unsigned tx against latest committed state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pkgconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("chaind tx simulate: load config: %w", err)
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("chaind tx simulate: read tx file: %w", err)
			}
			var tx gtypes.Tx
			if err := json.Unmarshal(raw, &tx); err != nil {
				return fmt.Errorf("chaind tx simulate: decode tx: %w", err)
			}

			log := newLogger(cfg.Logging.Level)
			a, backend, meta, err := openNode(*cfg, log)
			if err != nil {
				return err
			}
			defer meta.Close()
			defer backend.Close()

			outcome, err := a.Simulate(tx)
			if err != nil {
				return fmt.Errorf("chaind tx simulate: %w", err)
			}

			out, err := json.MarshalIndent(outcome, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to chaind.yaml")
	return cmd
}
