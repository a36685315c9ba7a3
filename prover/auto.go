package prover

import (
	"context"
	"errors"

	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/types"
)

// AutoProver tries the real toolchain first and falls back to the
// deterministic stand-in when artifacts are missing or the toolchain fails.
// Malformed inputs are not masked by the fallback: they bubble up.
type AutoProver struct {
	real     Prover
	fallback Prover
}

// NewAutoProver chains the circom prover with the deterministic fallback.
func NewAutoProver() *AutoProver {
	return &AutoProver{
		real:     NewCircomProver(),
		fallback: NewFallbackProver(),
	}
}

func (p *AutoProver) Prove(ctx context.Context, req *Request) (*types.ProofResult, error) {
	result, err := p.real.Prove(ctx, req)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, types.ErrMalformedInput) || ctx.Err() != nil {
		return nil, err
	}
	log.Warnw("prover toolchain unavailable, using deterministic fallback",
		"circuit", req.Circuit.Name, "curve", req.Circuit.Curve, "error", err.Error())
	return p.fallback.Prove(ctx, req)
}
