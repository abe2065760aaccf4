package main

import (
	"fmt"
	"path/filepath"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/sirupsen/logrus"

	"grugchain/core/app"
	"grugchain/core/store"
	pkgconfig "grugchain/pkg/config"
)

// openNode opens the pebble-backed state/tree store and the cometbft-db
// metadata store named by cfg, and wires an App over both (§4.1, §4.4).
// Callers are responsible for closing both backend and meta.
func openNode(cfg pkgconfig.Config, log *logrus.Logger) (*app.App, *store.Backend, dbm.DB, error) {
	backend, err := store.Open(cfg.Storage.DBPath, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chaind: open storage backend: %w", err)
	}

	metaDir := filepath.Dir(cfg.Storage.DBPath)
	meta, err := dbm.NewGoLevelDB("chaind_meta", metaDir)
	if err != nil {
		backend.Close()
		return nil, nil, nil, fmt.Errorf("chaind: open meta db: %w", err)
	}

	a, err := app.New(backend, meta, cfg.VM.WasmCacheCapacity, log)
	if err != nil {
		meta.Close()
		backend.Close()
		return nil, nil, nil, fmt.Errorf("chaind: construct app: %w", err)
	}
	a.MaxQuery = cfg.Limits.QueryDepth
	return a, backend, meta, nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
