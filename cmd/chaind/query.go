package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	pkgconfig "grugchain/pkg/config"
)

// queryCmd answers a read-only query against the node's already-committed
// state, without needing a live consensus driver (§4.7).
func queryCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "query store [hex-key]",
		Short: "read a raw key from committed state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pkgconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("chaind query: load config: %w", err)
			}
			if args[0] != "store" {
				return fmt.Errorf("chaind query: unsupported query kind %q (only \"store\" is supported)", args[0])
			}

			log := newLogger(cfg.Logging.Level)
			a, backend, meta, err := openNode(*cfg, log)
			if err != nil {
				return err
			}
			defer meta.Close()
			defer backend.Close()

			key, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("chaind query: decode hex key: %w", err)
			}
			value, proof, err := a.QueryStore(key, true)
			if err != nil {
				return fmt.Errorf("chaind query: %w", err)
			}

			out := struct {
				Value []byte      `json:"value"`
				Proof *queryProof `json:"proof,omitempty"`
			}{Value: value}
			if proof != nil {
				out.Proof = &queryProof{Siblings: len(proof.SiblingHashes)}
			}
			raw, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to chaind.yaml")
	return cmd
}

// queryProof summarizes a jmt.Proof for CLI output without committing to
// the internal proof encoding as a stable wire format.
type queryProof struct {
	Siblings int `json:"sibling_count"`
}
