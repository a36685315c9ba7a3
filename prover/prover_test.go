package prover

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/types"
)

func resolvedForTest(class types.PayloadClass) *circuits.Resolved {
	return &circuits.Resolved{
		Name:        "eligibility",
		Curve:       "bn254",
		CircuitHash: types.HexBytes{0x58, 0x97},
		Artifact:    config.CircuitArtifact{Class: class},
	}
}

func TestFallbackDeterminism(t *testing.T) {
	c := qt.New(t)
	p := NewFallbackProver()

	inputs := []byte(`{"country":"US","dob":"1970-01-01","residency":"CA"}`)
	first, err := p.Prove(context.Background(), &Request{
		Circuit: resolvedForTest(types.PayloadOpaque), Inputs: inputs,
	})
	c.Assert(err, qt.IsNil)
	second, err := p.Prove(context.Background(), &Request{
		Circuit: resolvedForTest(types.PayloadOpaque), Inputs: inputs,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.DeepEquals, first)
	c.Assert(first.PubSignals, qt.HasLen, 4)
	c.Assert(string(first.Proof.Opaque)[:6], qt.Equals, "proof-")

	// different inputs change everything
	other, err := p.Prove(context.Background(), &Request{
		Circuit: resolvedForTest(types.PayloadOpaque),
		Inputs:  []byte(`{"country":"BG"}`),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(other.Proof.Opaque.String(), qt.Not(qt.Equals), first.Proof.Opaque.String())
}

func TestFallbackGroth16Shape(t *testing.T) {
	c := qt.New(t)
	p := NewFallbackProver()

	res, err := p.Prove(context.Background(), &Request{
		Circuit: resolvedForTest(types.PayloadGroth16),
		Inputs:  []byte(`{"votes":[9,4]}`),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Proof.Class, qt.Equals, types.PayloadGroth16)
	c.Assert(res.Proof.Validate(), qt.IsNil)
	c.Assert(res.Proof.Structured.A[0], qt.Not(qt.Equals), res.Proof.Structured.A[1])
}

func TestAutoProverFallsBack(t *testing.T) {
	c := qt.New(t)
	p := NewAutoProver()

	// no artifact paths configured: the real prover cannot run and the
	// deterministic fallback takes over
	var lastProgress int
	res, err := p.Prove(context.Background(), &Request{
		Circuit:    resolvedForTest(types.PayloadOpaque),
		Inputs:     []byte(`{"a":1}`),
		OnProgress: func(pc int) { lastProgress = pc },
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Proof.Class, qt.Equals, types.PayloadOpaque)
	c.Assert(lastProgress, qt.Equals, 100)
}

func TestPayloadFromCircom(t *testing.T) {
	c := qt.New(t)

	proofJSON := `{
		"pi_a": ["11", "12", "1"],
		"pi_b": [["21", "22"], ["23", "24"], ["1", "0"]],
		"pi_c": ["31", "32", "1"],
		"protocol": "groth16"
	}`
	payload, err := payloadFromCircom(types.PayloadGroth16, proofJSON)
	c.Assert(err, qt.IsNil)
	c.Assert(payload.Structured.A, qt.Equals, [2]string{"11", "12"})
	c.Assert(payload.Structured.B[1], qt.Equals, [2]string{"23", "24"})
	c.Assert(payload.Structured.C, qt.Equals, [2]string{"31", "32"})

	opaque, err := payloadFromCircom(types.PayloadOpaque, proofJSON)
	c.Assert(err, qt.IsNil)
	c.Assert(string(opaque.Opaque), qt.Equals, proofJSON)
}
