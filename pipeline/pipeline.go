// Package pipeline runs proof jobs: admission against the per-identity daily
// quota, deduplication through the fingerprint cache, asynchronous proving on
// a worker pool, and the append-only audit trail for every freshly computed
// proof.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/prover"
	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/types"
)

// ErrJobNotFound is returned by Status and Watch for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

const (
	defaultWorkers = 4
	defaultCadence = 2 * time.Second
	queueDepth     = 1024
)

// Pipeline owns the full request lifecycle. Create with New, then Start.
type Pipeline struct {
	registry  *circuits.Registry
	admission *AdmissionController
	cache     *ProofCache
	prover    prover.Prover
	stg       *storage.Storage
	jobs      *jobStore

	workers int
	cadence time.Duration
	queue   chan *job

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a pipeline. workers <= 0 and cadence <= 0 fall back to defaults.
func New(registry *circuits.Registry, admission *AdmissionController,
	pr prover.Prover, stg *storage.Storage, workers int, cadence time.Duration,
) *Pipeline {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if cadence <= 0 {
		cadence = defaultCadence
	}
	return &Pipeline{
		registry:  registry,
		admission: admission,
		cache:     NewProofCache(),
		prover:    pr,
		stg:       stg,
		jobs:      newJobStore(),
		workers:   workers,
		cadence:   cadence,
		queue:     make(chan *job, queueDepth),
	}
}

// Start launches the worker pool. Idempotent.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	log.Infow("proof pipeline started", "workers", p.workers)
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to wind down. Jobs
// still queued are abandoned; clients resubmit and hit the cache.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.wg.Wait()
}

// SubmitResult is the outcome of Submit: either an immediately available
// cached result, or the id of an enqueued job.
type SubmitResult struct {
	JobID  string
	Cached bool
	Result *types.ProofResult
}

// Submit admits a proof request for the identity. The quota unit is consumed
// before the cache is consulted, so a cache hit still counts against the
// daily limit. Returns types.ErrMalformedInput, types.ErrUnknownCircuit or
// types.ErrQuotaExceeded on rejection.
func (p *Pipeline) Submit(identity, circuitName, curve string, rawInputs []byte) (*SubmitResult, error) {
	canonical, err := types.CanonicalJSON(rawInputs)
	if err != nil {
		return nil, err
	}
	resolved, err := p.registry.Resolve(circuitName, curve)
	if err != nil {
		return nil, err
	}
	admitted, err := p.admission.TryAdmit(identity)
	if err != nil {
		return nil, fmt.Errorf("admission check: %w", err)
	}
	if !admitted {
		return nil, types.ErrQuotaExceeded
	}

	fp := Fingerprint(canonical, resolved.CircuitHash)
	if cached := p.cache.Get(fp); cached != nil {
		log.Debugw("proof cache hit", "circuit", circuitName, "fingerprint", fp.String())
		return &SubmitResult{Cached: true, Result: cached}, nil
	}

	j := &job{
		id:        uuid.New().String(),
		circuit:   resolved,
		canonical: canonical,
		state:     types.JobPending,
	}
	p.jobs.add(j)
	p.queue <- j
	log.Infow("proof job enqueued", "jobId", j.id, "circuit", circuitName, "curve", curve)
	return &SubmitResult{JobID: j.id}, nil
}

// Status returns the current snapshot of a job. Terminal states are stable:
// repeated polls return the same state and result.
func (p *Pipeline) Status(jobID string) (types.JobStatus, error) {
	j := p.jobs.get(jobID)
	if j == nil {
		return types.JobStatus{}, ErrJobNotFound
	}
	return j.snapshot(), nil
}

// Watch streams job snapshots: one immediately, then one per cadence tick,
// closing after the first terminal snapshot. The channel is closed when the
// context is cancelled.
func (p *Pipeline) Watch(ctx context.Context, jobID string) (<-chan types.JobStatus, error) {
	j := p.jobs.get(jobID)
	if j == nil {
		return nil, ErrJobNotFound
	}
	out := make(chan types.JobStatus)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.cadence)
		defer ticker.Stop()
		for {
			snap := j.snapshot()
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.State.Terminal() {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Remaining reports the identity's unused quota for today.
func (p *Pipeline) Remaining(identity string) (int, error) {
	return p.admission.Remaining(identity)
}

// Quota returns the configured daily limit.
func (p *Pipeline) Quota() int { return p.admission.Quota() }

// Registry exposes the circuit registry backing this pipeline.
func (p *Pipeline) Registry() *circuits.Registry { return p.registry }

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.runJob(ctx, j)
		}
	}
}

func (p *Pipeline) runJob(ctx context.Context, j *job) {
	j.setRunning()
	result, err := p.prover.Prove(ctx, &prover.Request{
		Circuit:    j.circuit,
		Inputs:     j.canonical,
		OnProgress: j.setProgress,
	})
	if err != nil {
		log.Errorw(err, "proof job failed")
		j.setError(err.Error())
		return
	}
	fp := Fingerprint(j.canonical, j.circuit.CircuitHash)
	p.cache.Put(fp, result)
	if err := p.audit(j, result); err != nil {
		// The proof itself succeeded; an audit write failure must not fail
		// the job, only leave a trace in the logs.
		log.Errorw(err, "audit record write failed")
	}
	j.setDone(result)
	log.Infow("proof job done", "jobId", j.id, "circuit", j.circuit.Name)
}

func (p *Pipeline) audit(j *job, result *types.ProofResult) error {
	inputHash := sha256.Sum256(j.canonical)
	proofBytes, err := json.Marshal(result.Proof)
	if err != nil {
		return fmt.Errorf("encode proof payload: %w", err)
	}
	proofRoot := sha256.Sum256(proofBytes)
	return p.stg.PushAudit(&types.ProofAuditRecord{
		CircuitHash: j.circuit.CircuitHash,
		InputHash:   inputHash[:],
		ProofRoot:   proofRoot[:],
		Timestamp:   time.Now().UTC(),
	})
}
