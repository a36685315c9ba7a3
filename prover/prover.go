// Package prover turns circuit inputs into proofs. The production
// implementation drives the circom toolchain (witness calculator + rapidsnark
// Groth16 prover) over the compiled artifacts named by the circuit manifest;
// a deterministic stand-in covers environments without artifacts.
package prover

import (
	"context"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/types"
)

// Request carries everything a prover needs: the resolved circuit identity
// (hash, curve, artifact locations, payload class) and the canonicalized
// inputs. OnProgress, when set, receives coarse progress percentages.
type Request struct {
	Circuit    *circuits.Resolved
	Inputs     []byte // canonical JSON
	OnProgress func(percent int)
}

func (r *Request) progress(p int) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

// Prover is the pluggable proving capability. Implementations guarantee that
// the same inputs, the same circuit identity and the same implementation
// produce byte-identical output.
type Prover interface {
	Prove(ctx context.Context, req *Request) (*types.ProofResult, error)
}
