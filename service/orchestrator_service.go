package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/arbo/memdb"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/orchestrator"
	"github.com/victorrobotxt/toting/prover"
	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/web3"
)

// OrchestratorService drives one election lifecycle end to end in the
// background: connect, watch, wait, gather, prove, submit, relay.
type OrchestratorService struct {
	cfg     *config.Config
	storage *storage.Storage
	orc     *orchestrator.Orchestrator
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewOrchestrator creates an orchestrator service. If stg is nil, it uses a
// memory storage.
func NewOrchestrator(cfg *config.Config, stg *storage.Storage) *OrchestratorService {
	if stg == nil {
		stg = storage.New(memdb.New())
	}
	return &OrchestratorService{
		cfg:     cfg,
		storage: stg,
	}
}

// Start connects to the configured chains and launches the lifecycle run in
// the background. Connection retries follow the configured budget; a dead
// endpoint is a startup failure.
func (osrv *OrchestratorService) Start(ctx context.Context) error {
	osrv.mu.Lock()
	defer osrv.mu.Unlock()

	if osrv.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)

	cli, err := web3.Dial(ctx, osrv.cfg.EVMRPC, osrv.cfg.ConnectRetries)
	if err != nil {
		cancel()
		return err
	}
	var relay *web3.Relay
	if osrv.cfg.RelayRPC != "" {
		relayCli, err := web3.Dial(ctx, osrv.cfg.RelayRPC, osrv.cfg.ConnectRetries)
		if err != nil {
			cancel()
			return err
		}
		relayChainID, err := relayCli.ChainID(ctx)
		if err != nil {
			cancel()
			return err
		}
		relay, err = web3.NewRelay(relayCli, relayChainID)
		if err != nil {
			cancel()
			return err
		}
		if err := relay.SetAccountPrivateKey(osrv.cfg.PrivateKey); err != nil {
			cancel()
			return err
		}
	}

	manifest := config.LoadManifest(osrv.cfg.ManifestPath)
	registry := circuits.NewRegistry(osrv.storage, manifest)
	orc, err := orchestrator.New(orchestrator.FromServiceConfig(osrv.cfg), cli, relay,
		osrv.storage, registry, prover.NewAutoProver())
	if err != nil {
		cancel()
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	osrv.cancel = cancel
	osrv.orc = orc
	osrv.done = make(chan struct{})
	go func() {
		defer close(osrv.done)
		if err := orc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorw(err, "orchestrator run failed")
		}
	}()
	return nil
}

// Stop cancels the lifecycle run and waits for it to wind down. In-flight
// submissions finish recording their outcome before the service returns.
func (osrv *OrchestratorService) Stop() {
	osrv.mu.Lock()
	defer osrv.mu.Unlock()

	if osrv.cancel == nil {
		return
	}
	osrv.cancel()
	osrv.cancel = nil
	<-osrv.done
}

// State returns the orchestrator lifecycle state, or an empty state before
// Start.
func (osrv *OrchestratorService) State() orchestrator.State {
	osrv.mu.Lock()
	defer osrv.mu.Unlock()
	if osrv.orc == nil {
		return ""
	}
	return osrv.orc.State()
}
