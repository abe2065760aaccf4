package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	abciserver "github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"

	pkgconfig "grugchain/pkg/config"
)

// startCmd opens the node's storage, wires core/app.App, and serves it to a
// CometBFT consensus driver over ABCI until interrupted (§4.4, §6).
func startCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "run the chaind node, serving ABCI to a consensus driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pkgconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("chaind start: load config: %w", err)
			}
			log := newLogger(cfg.Logging.Level)

			a, backend, meta, err := openNode(*cfg, log)
			if err != nil {
				return err
			}
			defer meta.Close()
			defer backend.Close()

			srv, err := abciserver.NewServer(cfg.ABCI.Addr, cfg.ABCI.Transport, a)
			if err != nil {
				return fmt.Errorf("chaind start: build abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("chaind start: start abci server: %w", err)
			}
			defer srv.Stop()

			log.WithFields(map[string]interface{}{
				"addr":      cfg.ABCI.Addr,
				"transport": cfg.ABCI.Transport,
				"chain_id":  cfg.Chain.ID,
			}).Info("chaind: serving ABCI")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Info("chaind: shutting down")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to chaind.yaml")
	return cmd
}
