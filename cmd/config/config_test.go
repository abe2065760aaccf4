package config

import (
	"testing"

	"grugchain/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	LoadConfig("")
	if AppConfig.Chain.ID != "grugchain-local" {
		t.Fatalf("unexpected chain id: %s", AppConfig.Chain.ID)
	}
	if AppConfig.VM.WasmCacheCapacity != 100 {
		t.Fatalf("unexpected wasm cache capacity: %d", AppConfig.VM.WasmCacheCapacity)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	data := []byte("chain:\n  id: sandbox-chain\nstorage:\n  db_path: ./sandbox-data\nlimits:\n  message_depth_limit: 12\n")
	if err := sb.WriteFile("chaind.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	LoadConfig(sb.Path("chaind.yaml"))
	if AppConfig.Chain.ID != "sandbox-chain" {
		t.Fatalf("expected chain id sandbox-chain, got %s", AppConfig.Chain.ID)
	}
	if AppConfig.Storage.DBPath != "./sandbox-data" {
		t.Fatalf("expected db path override, got %s", AppConfig.Storage.DBPath)
	}
	if AppConfig.Limits.MessageDepth != 12 {
		t.Fatalf("expected message depth 12, got %d", AppConfig.Limits.MessageDepth)
	}
}
