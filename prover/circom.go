package prover

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/iden3/go-rapidsnark/prover"
	rapidtypes "github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/witness"

	"github.com/victorrobotxt/toting/types"
)

// CircomProver generates Groth16 proofs with the rapidsnark toolchain, using
// the wasm witness generator and zkey named by the circuit artifact.
type CircomProver struct{}

// NewCircomProver returns a prover backed by the circom toolchain.
func NewCircomProver() *CircomProver {
	return &CircomProver{}
}

// Prove computes the witness and the Groth16 proof for the request. It fails
// with types.ErrProverFailure when artifacts are missing or the toolchain
// errors; callers decide whether to fall back.
func (p *CircomProver) Prove(ctx context.Context, req *Request) (*types.ProofResult, error) {
	art := req.Circuit.Artifact
	if art.WasmPath == "" || art.ZKeyPath == "" {
		return nil, fmt.Errorf("%w: no compiled artifacts for %s/%s",
			types.ErrProverFailure, req.Circuit.Name, req.Circuit.Curve)
	}
	wasm, err := os.ReadFile(art.WasmPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read wasm: %v", types.ErrProverFailure, err)
	}
	zkey, err := os.ReadFile(art.ZKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read zkey: %v", types.ErrProverFailure, err)
	}
	req.progress(10)

	inputs, err := witness.ParseInputs(req.Inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: parse inputs: %v", types.ErrMalformedInput, err)
	}
	calc, err := witness.NewCircom2WitnessCalculator(wasm, true)
	if err != nil {
		return nil, fmt.Errorf("%w: witness calculator: %v", types.ErrProverFailure, err)
	}
	wtns, err := calc.CalculateWTNSBin(inputs, true)
	if err != nil {
		return nil, fmt.Errorf("%w: calculate witness: %v", types.ErrProverFailure, err)
	}
	req.progress(60)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proofJSON, pubJSON, err := prover.Groth16ProverRaw(zkey, wtns)
	if err != nil {
		return nil, fmt.Errorf("%w: groth16 prove: %v", types.ErrProverFailure, err)
	}
	req.progress(90)

	var pub []string
	if err := json.Unmarshal([]byte(pubJSON), &pub); err != nil {
		return nil, fmt.Errorf("%w: decode public signals: %v", types.ErrProverFailure, err)
	}
	payload, err := payloadFromCircom(req.Circuit.Artifact.Class, proofJSON)
	if err != nil {
		return nil, err
	}
	return &types.ProofResult{
		CircuitHash: req.Circuit.CircuitHash,
		Proof:       *payload,
		PubSignals:  pub,
	}, nil
}

// payloadFromCircom shapes the circom proof JSON according to the circuit's
// payload class: Groth16-shaped calldata for on-chain verifiers, or the raw
// proof document as an opaque blob.
func payloadFromCircom(class types.PayloadClass, proofJSON string) (*types.ProofPayload, error) {
	if class == types.PayloadOpaque {
		return &types.ProofPayload{
			Class:  types.PayloadOpaque,
			Opaque: types.HexBytes(proofJSON),
		}, nil
	}
	var data rapidtypes.ProofData
	if err := json.Unmarshal([]byte(proofJSON), &data); err != nil {
		return nil, fmt.Errorf("%w: decode proof: %v", types.ErrProverFailure, err)
	}
	if len(data.A) < 2 || len(data.B) < 2 || len(data.B[0]) < 2 || len(data.B[1]) < 2 || len(data.C) < 2 {
		return nil, fmt.Errorf("%w: truncated proof points", types.ErrProverFailure)
	}
	return &types.ProofPayload{
		Class: types.PayloadGroth16,
		Structured: &types.Groth16Points{
			A: [2]string{data.A[0], data.A[1]},
			B: [2][2]string{
				{data.B[0][0], data.B[0][1]},
				{data.B[1][0], data.B[1][1]},
			},
			C: [2]string{data.C[0], data.C[1]},
		},
	}, nil
}
