package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// CircuitURLParam names the circuit in proof endpoints
	CircuitURLParam = "circuit"
	// JobURLParam names the async proof job
	JobURLParam = "jobId"
	// ProofEndpoint is the endpoint for submitting a proof request
	ProofEndpoint = "/api/zk/{" + CircuitURLParam + "}"
	// ProofJobEndpoint is the endpoint for polling an async proof job
	ProofJobEndpoint = "/api/zk/{" + CircuitURLParam + "}/{" + JobURLParam + "}"
	// ProofStreamEndpoint streams job snapshots over server-sent events
	ProofStreamEndpoint = "/api/zk/{" + CircuitURLParam + "}/{" + JobURLParam + "}/stream"
	// QuotaEndpoint returns the remaining daily proof quota for an identity
	QuotaEndpoint = "/api/quota"
	// AuditsEndpoint lists recent proof audit records, most recent first
	AuditsEndpoint = "/proofs"
	// DeadLettersEndpoint exposes the dead-letter store to operators
	DeadLettersEndpoint = "/deadletters"
	// ElectionsEndpoint lists the elections the orchestrator tracked
	ElectionsEndpoint = "/elections"
	// ElectionURLParam names one election
	ElectionURLParam = "electionId"
	// ElectionEndpoint is the endpoint to get one election's state
	ElectionEndpoint = "/elections/{" + ElectionURLParam + "}"
)

// identityHeader carries the caller identity the quota is keyed on. The
// gateway in front of this service authenticates it; absent callers share
// the anonymous bucket.
const (
	identityHeader    = "x-identity"
	curveHeader       = "x-curve"
	anonymousIdentity = "anonymous"
)
