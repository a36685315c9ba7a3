// Package config holds the runtime configuration of the proof pipeline and
// the chain orchestrator, plus the static circuit artifact manifest.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration. Values are filled from flags by
// the cmd entrypoints; environment variables provide the defaults.
type Config struct {
	// API server
	APIHost string
	APIPort int

	// Storage
	DataDir string
	DBType  string

	// Pipeline
	ProofQuota    int           // per identity per day
	Workers       int           // proof worker pool size
	StreamCadence time.Duration // status stream emit interval

	// Chain (primary)
	EVMRPC          string
	ChainID         uint64
	PrivateKey      string // hex, no 0x prefix
	ElectionManager string // contract address
	ElectionID      uint64 // target election to orchestrate

	// Orchestrator tuning
	PollInterval       time.Duration
	ScanWindow         uint64 // max blocks per log query
	Confirmations      uint64 // depth before a block is scanned
	VotingPeriodBlocks uint64 // end-block heuristic when chain has no explicit end
	ConnectRetries     int    // 0 means retry forever
	SubmitRetries      int

	// Cross-chain relay (optional, empty RPC disables it)
	RelayRPC     string
	RelayRetries int

	// Circuit manifest
	ManifestPath string
}

// Default returns a Config populated from environment variables where set,
// falling back to development defaults.
func Default() *Config {
	return &Config{
		APIHost:            envString("API_HOST", "0.0.0.0"),
		APIPort:            envInt("API_PORT", 9090),
		DataDir:            envString("DATA_DIR", ".toting"),
		DBType:             envString("DB_TYPE", "pebble"),
		ProofQuota:         envInt("PROOF_QUOTA", 25),
		Workers:            envInt("PROOF_WORKERS", 4),
		StreamCadence:      2 * time.Second,
		EVMRPC:             envString("EVM_RPC", "http://localhost:8545"),
		ChainID:            uint64(envInt("CHAIN_ID", 31337)),
		PrivateKey:         envString("ORCHESTRATOR_KEY", ""),
		ElectionManager:    envString("ELECTION_MANAGER", ""),
		PollInterval:       5 * time.Second,
		ScanWindow:         2000,
		Confirmations:      uint64(envInt("CONFIRMATIONS", 5)),
		VotingPeriodBlocks: uint64(envInt("VOTING_PERIOD_BLOCKS", 7200)),
		ConnectRetries:     20,
		SubmitRetries:      5,
		RelayRPC:           envString("RELAY_RPC", ""),
		RelayRetries:       5,
		ManifestPath:       envString("CIRCUIT_MANIFEST", ""),
	}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
