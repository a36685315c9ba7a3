package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/service"
	"github.com/victorrobotxt/toting/storage"
)

func main() {
	cfg := config.Default()
	flag.StringVar(&cfg.DataDir, "dataDir", cfg.DataDir, "data directory")
	flag.StringVar(&cfg.DBType, "dbType", cfg.DBType, "key-value database driver")
	flag.StringVar(&cfg.EVMRPC, "w3rpc", cfg.EVMRPC, "primary chain rpc endpoint")
	flag.Uint64Var(&cfg.ChainID, "chainId", cfg.ChainID, "primary chain id")
	flag.StringVar(&cfg.PrivateKey, "privkey", cfg.PrivateKey, "hex private key for tally submission")
	flag.StringVar(&cfg.ElectionManager, "manager", cfg.ElectionManager, "election manager contract address")
	flag.Uint64Var(&cfg.ElectionID, "election", cfg.ElectionID, "target election id")
	flag.DurationVar(&cfg.PollInterval, "pollInterval", cfg.PollInterval, "chain poll interval")
	flag.Uint64Var(&cfg.ScanWindow, "scanWindow", cfg.ScanWindow, "max blocks per log query")
	flag.Uint64Var(&cfg.Confirmations, "confirmations", cfg.Confirmations, "confirmation depth before scanning a block")
	flag.Uint64Var(&cfg.VotingPeriodBlocks, "votingPeriod", cfg.VotingPeriodBlocks, "voting period length in blocks")
	flag.IntVar(&cfg.ConnectRetries, "connectRetries", cfg.ConnectRetries, "chain connect attempts, 0 retries forever")
	flag.IntVar(&cfg.SubmitRetries, "submitRetries", cfg.SubmitRetries, "tally submission attempts before dead-lettering")
	flag.StringVar(&cfg.RelayRPC, "relayRpc", cfg.RelayRPC, "secondary chain rpc endpoint, empty disables the relay")
	flag.IntVar(&cfg.RelayRetries, "relayRetries", cfg.RelayRetries, "relay attempts before dead-lettering")
	flag.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "circuit manifest file")
	logLevel := flag.String("logLevel", log.LogLevelInfo, "log level (debug, info, warn, error)")
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if cfg.PrivateKey == "" {
		log.Fatalf("a private key is required (--privkey or ORCHESTRATOR_KEY)")
	}
	if cfg.ElectionManager == "" {
		log.Fatalf("the election manager address is required (--manager or ELECTION_MANAGER)")
	}

	if cfg.DBType == "" {
		cfg.DBType = db.TypePebble
	}
	database, err := metadb.New(cfg.DBType, filepath.Join(cfg.DataDir, "orchestrator"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	stg := storage.New(database)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orcSrv := service.NewOrchestrator(cfg, stg)
	if err := orcSrv.Start(ctx); err != nil {
		log.Fatal(err)
	}
	log.Infow("orchestrator running", "rpc", cfg.EVMRPC, "manager", cfg.ElectionManager,
		"election", cfg.ElectionID, "relay", cfg.RelayRPC != "")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	orcSrv.Stop()
	stg.Close()
}
