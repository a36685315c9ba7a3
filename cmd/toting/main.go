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
	flag.StringVar(&cfg.APIHost, "host", cfg.APIHost, "API bind host")
	flag.IntVar(&cfg.APIPort, "port", cfg.APIPort, "API bind port")
	flag.StringVar(&cfg.DataDir, "dataDir", cfg.DataDir, "data directory")
	flag.StringVar(&cfg.DBType, "dbType", cfg.DBType, "key-value database driver")
	flag.IntVar(&cfg.ProofQuota, "proofQuota", cfg.ProofQuota, "daily proof quota per identity")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "proof worker pool size")
	flag.DurationVar(&cfg.StreamCadence, "streamCadence", cfg.StreamCadence, "status stream emit interval")
	flag.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "circuit manifest file")
	logLevel := flag.String("logLevel", log.LogLevelInfo, "log level (debug, info, warn, error)")
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if cfg.DBType == "" {
		cfg.DBType = db.TypePebble
	}
	database, err := metadb.New(cfg.DBType, filepath.Join(cfg.DataDir, "toting"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	stg := storage.New(database)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineSrv := service.NewPipeline(cfg, stg)
	if err := pipelineSrv.Start(ctx); err != nil {
		log.Fatal(err)
	}
	apiSrv := service.NewAPI(pipelineSrv.Pipeline(), stg, cfg.APIHost, cfg.APIPort)
	if err := apiSrv.Start(ctx); err != nil {
		log.Fatal(err)
	}
	log.Infow("proof service running", "host", cfg.APIHost, "port", cfg.APIPort,
		"quota", cfg.ProofQuota, "workers", cfg.Workers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	apiSrv.Stop()
	pipelineSrv.Stop()
	stg.Close()
}
