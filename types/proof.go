package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// PayloadClass selects the wire shape of a proof for a given circuit.
type PayloadClass string

const (
	// PayloadGroth16 is the structured {a, b, c} triple expected by an
	// on-chain Groth16 verifier.
	PayloadGroth16 PayloadClass = "groth16"
	// PayloadOpaque is a single opaque blob.
	PayloadOpaque PayloadClass = "opaque"
)

// Groth16Points holds Groth16-shaped calldata as decimal strings, as emitted
// by circom tooling.
type Groth16Points struct {
	A [2]string    `json:"a" cbor:"0,keyasint"`
	B [2][2]string `json:"b" cbor:"1,keyasint"`
	C [2]string    `json:"c" cbor:"2,keyasint"`
}

// ProofPayload is a tagged variant: either a structured Groth16 triple or an
// opaque blob, resolved by circuit identity rather than runtime inspection.
type ProofPayload struct {
	Class      PayloadClass   `json:"class"                cbor:"0,keyasint"`
	Structured *Groth16Points `json:"structured,omitempty" cbor:"1,keyasint,omitempty"`
	Opaque     HexBytes       `json:"opaque,omitempty"     cbor:"2,keyasint,omitempty"`
}

// Validate checks that exactly the branch named by Class is populated.
func (p *ProofPayload) Validate() error {
	switch p.Class {
	case PayloadGroth16:
		if p.Structured == nil {
			return fmt.Errorf("groth16 payload without points")
		}
	case PayloadOpaque:
		if len(p.Opaque) == 0 {
			return fmt.Errorf("opaque payload without data")
		}
	default:
		return fmt.Errorf("unknown payload class %q", p.Class)
	}
	return nil
}

// ProofResult is the outcome of one proving job: the proof payload plus the
// public signals, under the circuit hash it was computed for.
type ProofResult struct {
	CircuitHash HexBytes     `json:"circuitHash" cbor:"0,keyasint"`
	Proof       ProofPayload `json:"proof"       cbor:"1,keyasint"`
	PubSignals  []string     `json:"pubSignals"  cbor:"2,keyasint"`
}

func (r *ProofResult) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

// CircuitRecord is a versioned circuit registration. At most one record per
// (name, curve) is active at a time.
type CircuitRecord struct {
	Name        string   `json:"name"        cbor:"0,keyasint"`
	Curve       string   `json:"curve"       cbor:"1,keyasint"`
	Version     uint32   `json:"version"     cbor:"2,keyasint"`
	CircuitHash HexBytes `json:"circuitHash" cbor:"3,keyasint"`
	Active      bool     `json:"active"      cbor:"4,keyasint"`
}

// ProofAuditRecord is the append-only trace of one completed proof.
type ProofAuditRecord struct {
	CircuitHash HexBytes  `json:"circuitHash" cbor:"0,keyasint"`
	InputHash   HexBytes  `json:"inputHash"   cbor:"1,keyasint"`
	ProofRoot   HexBytes  `json:"proofRoot"   cbor:"2,keyasint"`
	Timestamp   time.Time `json:"timestamp"   cbor:"3,keyasint"`
}

// DeadLetterRecord is a permanently failed unit of work, kept for manual
// inspection and replay. Never deleted automatically.
type DeadLetterRecord struct {
	EventBlock uint64    `json:"eventBlock" cbor:"0,keyasint"`
	TxHash     HexBytes  `json:"txHash"     cbor:"1,keyasint"`
	Payload    []byte    `json:"payload"    cbor:"2,keyasint"`
	Error      string    `json:"error"      cbor:"3,keyasint"`
	Attempts   int       `json:"attempts"   cbor:"4,keyasint"`
	Timestamp  time.Time `json:"timestamp"  cbor:"5,keyasint"`
}

// Election mirrors the on-chain election lifecycle state tracked by the
// orchestrator. The chain owns start/end; this record is a local view.
type Election struct {
	ID         uint64   `json:"id"              cbor:"0,keyasint"`
	MetaHash   HexBytes `json:"metaHash"        cbor:"1,keyasint"`
	StartBlock uint64   `json:"startBlock"      cbor:"2,keyasint"`
	EndBlock   uint64   `json:"endBlock"        cbor:"3,keyasint"`
	Status     string   `json:"status"          cbor:"4,keyasint"`
	Tally      []string `json:"tally,omitempty" cbor:"5,keyasint,omitempty"`
}
