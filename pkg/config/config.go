package config

// Package config loads the process-wide configuration for a chaind node. It
// is versioned so that applications can depend on a stable API contract.
//
// Version: v0.2.0

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"grugchain/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the process-wide configuration recognized by the core (§6).
type Config struct {
	Chain struct {
		ID string `yaml:"id" json:"id"`
	} `yaml:"chain" json:"chain"`

	Storage struct {
		DBPath string `yaml:"db_path" json:"db_path"`
		Prune  bool   `yaml:"prune" json:"prune"`
	} `yaml:"storage" json:"storage"`

	VM struct {
		WasmCacheCapacity int `yaml:"wasm_cache_capacity" json:"wasm_cache_capacity"`
	} `yaml:"vm" json:"vm"`

	Limits struct {
		QueryDepth   uint32 `yaml:"query_depth_limit" json:"query_depth_limit"`
		MessageDepth uint32 `yaml:"message_depth_limit" json:"message_depth_limit"`
	} `yaml:"limits" json:"limits"`

	Fee struct {
		Rate string `yaml:"fee_rate" json:"fee_rate"`
	} `yaml:"fee" json:"fee"`

	Logging struct {
		Level string `yaml:"level" json:"level"`
		File  string `yaml:"file" json:"file"`
	} `yaml:"logging" json:"logging"`

	ABCI struct {
		Addr      string `yaml:"addr" json:"addr"`
		Transport string `yaml:"transport" json:"transport"`
	} `yaml:"abci" json:"abci"`
}

// Defaults returns the configuration defaults named in §6.
func Defaults() Config {
	var c Config
	c.Chain.ID = "grugchain-local"
	c.Storage.DBPath = "./data/chaind"
	c.VM.WasmCacheCapacity = 100
	c.Limits.QueryDepth = 10
	c.Limits.MessageDepth = 30
	c.Fee.Rate = "0.1"
	c.Logging.Level = "info"
	c.ABCI.Addr = "tcp://127.0.0.1:26658"
	c.ABCI.Transport = "socket"
	return c
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the YAML file at path, merges a ".env" override file if present,
// and stores the result in AppConfig.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, utils.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, utils.Wrap(err, "parse config file")
		}
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg.Chain.ID = utils.EnvOrDefault("CHAIND_CHAIN_ID", cfg.Chain.ID)
	cfg.Storage.DBPath = utils.EnvOrDefault("CHAIND_DB_PATH", cfg.Storage.DBPath)
	cfg.VM.WasmCacheCapacity = utils.EnvOrDefaultInt("CHAIND_WASM_CACHE_CAPACITY", cfg.VM.WasmCacheCapacity)
	cfg.Limits.QueryDepth = uint32(utils.EnvOrDefaultInt("CHAIND_QUERY_DEPTH_LIMIT", int(cfg.Limits.QueryDepth)))
	cfg.Limits.MessageDepth = uint32(utils.EnvOrDefaultInt("CHAIND_MESSAGE_DEPTH_LIMIT", int(cfg.Limits.MessageDepth)))
	cfg.Fee.Rate = utils.EnvOrDefault("CHAIND_FEE_RATE", cfg.Fee.Rate)
	cfg.Logging.Level = utils.EnvOrDefault("CHAIND_LOG_LEVEL", cfg.Logging.Level)
	cfg.ABCI.Addr = utils.EnvOrDefault("CHAIND_ABCI_ADDR", cfg.ABCI.Addr)
	cfg.ABCI.Transport = utils.EnvOrDefault("CHAIND_ABCI_TRANSPORT", cfg.ABCI.Transport)

	AppConfig = cfg
	return &cfg, nil
}

// LoadFromEnv loads configuration using the CHAIND_CONFIG environment
// variable to locate the YAML file, if set.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHAIND_CONFIG", ""))
}
