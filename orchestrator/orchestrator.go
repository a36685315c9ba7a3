// Package orchestrator drives one election from chain discovery to tally
// submission: it watches for the lifecycle-creation event, blocks until the
// voting deadline, aggregates cast votes with the quadratic-voting transform,
// proves the batch tally and submits it on-chain. Exhausted submission
// retries end in the dead-letter store, never in a crash; a configured relay
// mirrors the finalized result to a secondary chain on its own retry budget.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/prover"
	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/types"
	"github.com/victorrobotxt/toting/web3"
)

// State is one step of the sequential election lifecycle.
type State string

const (
	StateConnecting          State = "connecting"
	StateWatchingForElection State = "watchingForElection"
	StateWaitingForDeadline  State = "waitingForDeadline"
	StateGatheringVotes      State = "gatheringVotes"
	StateProving             State = "proving"
	StateSubmitting          State = "submitting"
	StateAwaitingRetry       State = "awaitingRetry"
	StateDeadLettered        State = "deadLettered"
	StateDone                State = "done"
)

// Election status values persisted alongside the lifecycle.
const (
	ElectionStatusVoting       = "voting"
	ElectionStatusTallied      = "tallied"
	ElectionStatusDeadLettered = "deadLettered"
)

const (
	watcherName      = "electionManager"
	voiceCreditLimit = 50
	maxRetryBackoff  = 30 * time.Second
)

// Config is the orchestrator tuning, derived from the service configuration.
type Config struct {
	ElectionID         uint64
	Contract           common.Address
	ChainID            uint64
	PrivateKey         string
	Curve              string
	PollInterval       time.Duration
	ScanWindow         uint64
	Confirmations      uint64
	VotingPeriodBlocks uint64
	SubmitRetries      int
	RelayRetries       int
}

// FromServiceConfig maps the flat service configuration into orchestrator
// tuning.
func FromServiceConfig(cfg *config.Config) Config {
	return Config{
		ElectionID:         cfg.ElectionID,
		Contract:           common.HexToAddress(cfg.ElectionManager),
		ChainID:            cfg.ChainID,
		PrivateKey:         cfg.PrivateKey,
		Curve:              config.DefaultCurve,
		PollInterval:       cfg.PollInterval,
		ScanWindow:         cfg.ScanWindow,
		Confirmations:      cfg.Confirmations,
		VotingPeriodBlocks: cfg.VotingPeriodBlocks,
		SubmitRetries:      cfg.SubmitRetries,
		RelayRetries:       cfg.RelayRetries,
	}
}

// Orchestrator is a single sequential state machine. No internal concurrency:
// every blocking chain call carries its own timeout and retry policy.
type Orchestrator struct {
	cfg      Config
	stg      *storage.Storage
	cli      *web3.Client
	mgr      *web3.Manager
	relay    *web3.Relay
	registry *circuits.Registry
	prover   prover.Prover

	stateMu sync.RWMutex
	state   State
}

// New wires an orchestrator. relay may be nil when no secondary chain is
// configured.
func New(cfg Config, cli *web3.Client, relay *web3.Relay, stg *storage.Storage,
	registry *circuits.Registry, pr prover.Prover,
) (*Orchestrator, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ScanWindow == 0 {
		cfg.ScanWindow = 1000
	}
	if cfg.SubmitRetries <= 0 {
		cfg.SubmitRetries = 5
	}
	if cfg.RelayRetries <= 0 {
		cfg.RelayRetries = 5
	}
	mgr, err := web3.NewManager(cli, cfg.Contract, cfg.ChainID)
	if err != nil {
		return nil, err
	}
	if err := mgr.SetAccountPrivateKey(cfg.PrivateKey); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:      cfg,
		stg:      stg,
		cli:      cli,
		mgr:      mgr,
		relay:    relay,
		registry: registry,
		prover:   pr,
		state:    StateConnecting,
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) transition(next State) {
	o.stateMu.Lock()
	log.Infow("orchestrator transition", "from", string(o.state), "to", string(next))
	o.state = next
	o.stateMu.Unlock()
}

// Run drives the election to completion. It returns nil both on success and
// on a dead-lettered submission (failed but recorded); it returns an error
// only for unrecoverable conditions like a dead chain endpoint.
func (o *Orchestrator) Run(ctx context.Context) error {
	// liveness check; Dial already retried connectivity, this catches an
	// endpoint that died in between
	if _, err := o.cli.BlockNumber(ctx); err != nil {
		return err
	}

	o.transition(StateWatchingForElection)
	created, err := o.watchForElection(ctx)
	if err != nil {
		return err
	}
	endBlock := created.Block + o.cfg.VotingPeriodBlocks
	election := &types.Election{
		ID:         created.ID,
		MetaHash:   created.MetaHash.Bytes(),
		StartBlock: created.Block,
		EndBlock:   endBlock,
		Status:     ElectionStatusVoting,
	}
	if err := o.stg.SetElection(election); err != nil {
		return err
	}
	log.Infow("election discovered", "id", created.ID, "startBlock", created.Block, "endBlock", endBlock)

	o.transition(StateWaitingForDeadline)
	if err := o.waitForDeadline(ctx, endBlock); err != nil {
		return err
	}

	o.transition(StateGatheringVotes)
	credits, err := o.gatherVotes(ctx, created.Block, endBlock)
	if err != nil {
		return err
	}
	sqrts := CreditSqrts(credits)

	o.transition(StateProving)
	result, inputs, err := o.proveTally(ctx, credits, sqrts)
	if err != nil {
		// fatal for this cycle: a rerun with the same inputs is idempotent
		return fmt.Errorf("tally proof: %w", err)
	}

	o.transition(StateSubmitting)
	txHash, submitted := o.submitWithRetry(ctx, result, inputs, created.Block)
	if !submitted {
		election.Status = ElectionStatusDeadLettered
		if err := o.stg.SetElection(election); err != nil {
			log.Errorw(err, "persist dead-lettered election")
		}
		o.transition(StateDeadLettered)
		return nil
	}

	// the relay leg never rolls back or blocks the primary result
	if o.relay != nil {
		o.relayTally(ctx, txHash, created.Block)
	}

	election.Status = ElectionStatusTallied
	election.Tally = make([]string, len(sqrts))
	for i, s := range sqrts {
		election.Tally[i] = s.String()
	}
	if err := o.stg.SetElection(election); err != nil {
		return err
	}
	o.transition(StateDone)
	return nil
}

// watchForElection polls for the lifecycle-creation event of the target
// election, scanning forward in bounded windows from the persisted low-water
// mark. The mark advances only after a window has been fully processed.
func (o *Orchestrator) watchForElection(ctx context.Context) (*web3.ElectionCreatedEvent, error) {
	for {
		head, err := o.cli.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		confirmed := uint64(0)
		if head > o.cfg.Confirmations {
			confirmed = head - o.cfg.Confirmations
		}
		last, err := o.stg.LastScannedBlock(watcherName)
		if err != nil {
			return nil, err
		}
		from := uint64(0)
		if last > 0 {
			from = last + 1
		}
		for from <= confirmed {
			to := from + o.cfg.ScanWindow - 1
			if to > confirmed {
				to = confirmed
			}
			events, err := o.mgr.CreatedElections(ctx, from, to)
			if err != nil {
				// window not processed: keep the low-water mark, retry on
				// the next poll
				log.Warnw("scan window failed", "from", from, "to", to, "err", err.Error())
				break
			}
			var found *web3.ElectionCreatedEvent
			for _, ev := range events {
				if ev.ID == o.cfg.ElectionID {
					found = ev
					break
				}
			}
			if err := o.stg.SetLastScannedBlock(watcherName, to); err != nil {
				return nil, err
			}
			if found != nil {
				return found, nil
			}
			from = to + 1
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

// waitForDeadline blocks until the chain reaches the election end block.
// Intentionally a sleeping poll, not a busy loop.
func (o *Orchestrator) waitForDeadline(ctx context.Context, endBlock uint64) error {
	for {
		head, err := o.cli.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if head >= endBlock {
			return nil
		}
		log.Debugw("waiting for voting deadline", "head", head, "endBlock", endBlock)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

// gatherVotes scans the election block range in bounded windows and
// aggregates per-option credit sums.
func (o *Orchestrator) gatherVotes(ctx context.Context, startBlock, endBlock uint64) ([]*big.Int, error) {
	credits := make([]*big.Int, NumOptions)
	for i := range credits {
		credits[i] = big.NewInt(0)
	}
	for from := startBlock; from <= endBlock; {
		to := from + o.cfg.ScanWindow - 1
		if to > endBlock {
			to = endBlock
		}
		votes, err := o.mgr.VoteEvents(ctx, o.cfg.ElectionID, from, to)
		if err != nil {
			return nil, err
		}
		for _, v := range votes {
			if v.Option >= NumOptions {
				log.Warnw("vote for out-of-range option ignored", "option", v.Option, "block", v.Block)
				continue
			}
			credits[v.Option].Add(credits[v.Option], v.Credits)
		}
		from = to + 1
	}
	return credits, nil
}

// tallyCircuitInputs is the input layout of the batch tally circuit.
type tallyCircuitInputs struct {
	Credits     []string `json:"credits"`
	CreditSqrts []string `json:"credit_sqrts"`
	Limit       uint64   `json:"limit"`
}

// proveTally resolves the tally circuit and proves the aggregated result.
// Returns the proof and the canonical inputs it was computed over.
func (o *Orchestrator) proveTally(ctx context.Context, credits, sqrts []*big.Int) (*types.ProofResult, []byte, error) {
	resolved, err := o.registry.Resolve(config.CircuitBatchTally, o.cfg.Curve)
	if err != nil {
		return nil, nil, err
	}
	in := tallyCircuitInputs{
		Credits:     make([]string, len(credits)),
		CreditSqrts: make([]string, len(sqrts)),
		Limit:       voiceCreditLimit,
	}
	for i := range credits {
		in.Credits[i] = credits[i].String()
		in.CreditSqrts[i] = sqrts[i].String()
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, nil, err
	}
	canonical, err := types.CanonicalJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	result, err := o.prover.Prove(ctx, &prover.Request{Circuit: resolved, Inputs: canonical})
	if err != nil {
		return nil, nil, err
	}
	return result, canonical, nil
}

// submitWithRetry sends the tally transaction with a bounded retry budget
// and exponential backoff. On exhaustion the attempt is dead-lettered and
// false is returned; the caller records the failed-but-recorded outcome.
func (o *Orchestrator) submitWithRetry(ctx context.Context, result *types.ProofResult,
	inputs []byte, eventBlock uint64,
) (common.Hash, bool) {
	var lastErr error
	var lastHash common.Hash
	for attempt := 1; attempt <= o.cfg.SubmitRetries; attempt++ {
		hash, err := o.mgr.SubmitTally(ctx, o.cfg.ElectionID, result)
		if err == nil {
			log.Infow("tally submitted", "tx", hash.Hex(), "attempt", attempt)
			return hash, true
		}
		lastErr = err
		lastHash = hash
		log.Warnw("tally submission failed",
			"attempt", attempt, "max", o.cfg.SubmitRetries, "err", err.Error())
		if attempt == o.cfg.SubmitRetries {
			break
		}
		o.transition(StateAwaitingRetry)
		select {
		case <-ctx.Done():
			attempt = o.cfg.SubmitRetries // record before shutdown
		case <-time.After(retryBackoff(attempt)):
		}
		o.transition(StateSubmitting)
	}
	payload, err := json.Marshal(map[string]json.RawMessage{
		"inputs":     inputs,
		"pubSignals": mustJSON(result.PubSignals),
	})
	if err != nil {
		payload = inputs
	}
	if err := o.stg.PushDeadLetter(&types.DeadLetterRecord{
		EventBlock: eventBlock,
		TxHash:     lastHash.Bytes(),
		Payload:    payload,
		Error:      lastErr.Error(),
		Attempts:   o.cfg.SubmitRetries,
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		log.Errorw(err, "dead-letter write failed")
	}
	log.Errorw(lastErr, "tally submission dead-lettered")
	return lastHash, false
}

// relayTally finds the finalized Tally event of the submission and mirrors
// it to the secondary chain with an independent retry-then-dead-letter
// policy.
func (o *Orchestrator) relayTally(ctx context.Context, txHash common.Hash, eventBlock uint64) {
	ev, err := o.findTallyEvent(ctx, txHash)
	if err != nil {
		log.Errorw(err, "tally event lookup for relay failed")
		return
	}
	var lastErr error
	for attempt := 1; attempt <= o.cfg.RelayRetries; attempt++ {
		err := o.relay.Mirror(ctx, ev)
		if err == nil {
			log.Infow("tally relayed", "election", ev.ElectionID, "attempt", attempt)
			return
		}
		lastErr = err
		log.Warnw("relay attempt failed",
			"attempt", attempt, "max", o.cfg.RelayRetries, "err", lastErr.Error())
		if attempt == o.cfg.RelayRetries {
			break
		}
		select {
		case <-ctx.Done():
			attempt = o.cfg.RelayRetries
		case <-time.After(retryBackoff(attempt)):
		}
	}
	payload, _ := json.Marshal(map[string]string{
		"electionId": fmt.Sprintf("%d", ev.ElectionID),
		"A":          ev.A.String(),
		"B":          ev.B.String(),
	})
	if err := o.stg.PushDeadLetter(&types.DeadLetterRecord{
		EventBlock: eventBlock,
		TxHash:     ev.TxHash.Bytes(),
		Payload:    payload,
		Error:      lastErr.Error(),
		Attempts:   o.cfg.RelayRetries,
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		log.Errorw(err, "relay dead-letter write failed")
	}
	log.Errorw(lastErr, "relay dead-lettered; primary submission preserved")
}

// findTallyEvent locates the Tally log emitted by the submission tx.
func (o *Orchestrator) findTallyEvent(ctx context.Context, txHash common.Hash) (*web3.TallyEvent, error) {
	head, err := o.cli.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	from := uint64(0)
	if head > o.cfg.ScanWindow {
		from = head - o.cfg.ScanWindow
	}
	events, err := o.mgr.TallyEvents(ctx, from, head)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.ElectionID == o.cfg.ElectionID {
			if ev.TxHash == (common.Hash{}) || ev.TxHash == txHash {
				return ev, nil
			}
		}
	}
	return nil, fmt.Errorf("no tally event found for election %d", o.cfg.ElectionID)
}

func retryBackoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	return d
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return raw
}
