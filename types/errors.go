package types

import "errors"

// Error taxonomy shared by the pipeline and the orchestrator. Validation and
// quota errors surface synchronously to callers; transient chain and prover
// errors are absorbed by retry loops and only become visible once a retry
// budget is exhausted.
var (
	// ErrQuotaExceeded means the identity spent its daily proof quota.
	ErrQuotaExceeded = errors.New("proof quota exceeded")
	// ErrUnknownCircuit means the circuit/curve pair has no registry record
	// nor manifest entry.
	ErrUnknownCircuit = errors.New("unknown circuit")
	// ErrMalformedInput means the caller-supplied inputs failed validation
	// before reaching the cache or the prover.
	ErrMalformedInput = errors.New("malformed input")
	// ErrProverFailure means the proving backend errored and no fallback
	// could produce a result.
	ErrProverFailure = errors.New("prover failure")
	// ErrChainUnavailable is a transient connectivity failure against the
	// chain endpoint.
	ErrChainUnavailable = errors.New("chain endpoint unavailable")
	// ErrSubmissionFailed means the result transaction failed or reverted.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrRelayFailure means the secondary-chain relay leg failed.
	ErrRelayFailure = errors.New("relay failed")
)
