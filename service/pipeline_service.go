// Package service wires the proof pipeline, the HTTP API and the election
// orchestrator into long-running services with a uniform Start/Stop
// lifecycle.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/arbo/memdb"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/pipeline"
	"github.com/victorrobotxt/toting/prover"
	"github.com/victorrobotxt/toting/storage"
)

// PipelineService owns the proof job pipeline and its worker pool.
type PipelineService struct {
	cfg      *config.Config
	storage  *storage.Storage
	pipeline *pipeline.Pipeline
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewPipeline creates a pipeline service. If stg is nil, it uses a memory
// storage.
func NewPipeline(cfg *config.Config, stg *storage.Storage) *PipelineService {
	if stg == nil {
		stg = storage.New(memdb.New())
	}
	return &PipelineService{
		cfg:     cfg,
		storage: stg,
	}
}

// Start loads the circuit manifest and launches the worker pool. It returns
// an error if the service is already running.
func (ps *PipelineService) Start(ctx context.Context) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, ps.cancel = context.WithCancel(ctx)

	manifest := config.LoadManifest(ps.cfg.ManifestPath)
	registry := circuits.NewRegistry(ps.storage, manifest)
	admission := pipeline.NewAdmissionController(ps.storage, ps.cfg.ProofQuota)
	ps.pipeline = pipeline.New(registry, admission, prover.NewAutoProver(),
		ps.storage, ps.cfg.Workers, ps.cfg.StreamCadence)
	if err := ps.pipeline.Start(ctx); err != nil {
		ps.cancel = nil
		return fmt.Errorf("failed to start proof pipeline: %w", err)
	}
	return nil
}

// Stop halts the worker pool.
func (ps *PipelineService) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cancel != nil {
		ps.cancel()
		ps.cancel = nil
	}
	if ps.pipeline != nil {
		ps.pipeline.Stop()
	}
}

// Pipeline returns the running pipeline, or nil before Start.
func (ps *PipelineService) Pipeline() *pipeline.Pipeline {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.pipeline
}

// Storage returns the backing storage.
func (ps *PipelineService) Storage() *storage.Storage {
	return ps.storage
}
