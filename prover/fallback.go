package prover

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/victorrobotxt/toting/types"
)

// FallbackProver derives a pseudo-proof and pseudo-signals from a hash of the
// canonicalized inputs. Fully deterministic and artifact-free, it keeps the
// pipeline exercisable in environments without compiled circuits. The output
// carries no cryptographic validity whatsoever.
type FallbackProver struct{}

// NewFallbackProver returns the deterministic stand-in prover.
func NewFallbackProver() *FallbackProver {
	return &FallbackProver{}
}

// Prove derives the pseudo result. It never fails for well-formed requests.
func (p *FallbackProver) Prove(_ context.Context, req *Request) (*types.ProofResult, error) {
	sum := sha256.Sum256(req.Inputs)
	hexSum := hex.EncodeToString(sum[:])

	// four public signals sliced out of the digest
	pub := make([]string, 4)
	for i := 0; i < 4; i++ {
		v := binary.BigEndian.Uint32(sum[i*4 : i*4+4])
		pub[i] = fmt.Sprintf("%d", v)
	}

	result := &types.ProofResult{
		CircuitHash: req.Circuit.CircuitHash,
		PubSignals:  pub,
	}
	switch req.Circuit.Artifact.Class {
	case types.PayloadGroth16:
		result.Proof = types.ProofPayload{
			Class:      types.PayloadGroth16,
			Structured: pseudoPoints(sum[:]),
		}
	default:
		result.Proof = types.ProofPayload{
			Class:  types.PayloadOpaque,
			Opaque: types.HexBytes("proof-" + hexSum[:16]),
		}
	}
	req.progress(100)
	return result, nil
}

// pseudoPoints stretches the digest into eight decimal field-like values by
// re-hashing with a counter.
func pseudoPoints(seed []byte) *types.Groth16Points {
	next := func(i byte) string {
		h := sha256.Sum256(append(append([]byte{}, seed...), i))
		return new(big.Int).SetBytes(h[:]).String()
	}
	return &types.Groth16Points{
		A: [2]string{next(0), next(1)},
		B: [2][2]string{
			{next(2), next(3)},
			{next(4), next(5)},
		},
		C: [2]string{next(6), next(7)},
	}
}
