package api

import "github.com/victorrobotxt/toting/types"

// ProofResponse is the reply to proof submission and job polling. A cache
// hit or a finished job carries the full result; an accepted async job
// carries only the job id. The two acceptance shapes are distinguished by
// the fields present, not by status code.
type ProofResponse struct {
	Status      string              `json:"status"`
	JobID       string              `json:"jobId,omitempty"`
	Progress    *int                `json:"progress,omitempty"`
	CircuitHash types.HexBytes      `json:"circuitHash,omitempty"`
	Proof       *types.ProofPayload `json:"proof,omitempty"`
	PubSignals  []string            `json:"pubSignals,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// StreamSnapshot is one server-sent event of the job status stream.
type StreamSnapshot struct {
	State    string `json:"state"`
	Progress int    `json:"progress"`
}

// QuotaResponse reports the identity's remaining daily proof budget.
type QuotaResponse struct {
	Left  int `json:"left"`
	Quota int `json:"quota"`
}

func resultResponse(status string, result *types.ProofResult) *ProofResponse {
	resp := &ProofResponse{Status: status}
	if result != nil {
		resp.CircuitHash = result.CircuitHash
		resp.Proof = &result.Proof
		resp.PubSignals = result.PubSignals
	}
	return resp
}
