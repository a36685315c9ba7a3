package config

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/victorrobotxt/toting/types"
)

func TestManifestLookup(t *testing.T) {
	c := qt.New(t)

	m := DefaultManifest()
	art, ok := m.Lookup(CircuitEligibility, "bn254")
	c.Assert(ok, qt.IsTrue)
	c.Assert(art.ContentHash, qt.Not(qt.Equals), "")
	c.Assert(art.Class, qt.Equals, types.PayloadOpaque)

	tally, ok := m.Lookup(CircuitBatchTally, "bn254")
	c.Assert(ok, qt.IsTrue)
	c.Assert(tally.Class, qt.Equals, types.PayloadGroth16)

	_, ok = m.Lookup("nope", "bn254")
	c.Assert(ok, qt.IsFalse)
	_, ok = m.Lookup(CircuitEligibility, "bw6-633")
	c.Assert(ok, qt.IsFalse)
}

func TestLoadManifest(t *testing.T) {
	c := qt.New(t)

	// missing file is non-fatal and yields defaults
	m := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	_, ok := m.Lookup(CircuitEligibility, "bn254")
	c.Assert(ok, qt.IsTrue)

	// a file overrides per (circuit, curve) and may add new circuits
	path := filepath.Join(t.TempDir(), "manifest.json")
	err := os.WriteFile(path, []byte(`{
		"eligibility": {"bn254": {"contentHash": "aa11", "class": "opaque"}},
		"extra": {"bn254": {"contentHash": "bb22", "class": "groth16"}}
	}`), 0o600)
	c.Assert(err, qt.IsNil)

	m = LoadManifest(path)
	art, ok := m.Lookup(CircuitEligibility, "bn254")
	c.Assert(ok, qt.IsTrue)
	c.Assert(art.ContentHash, qt.Equals, "aa11")
	_, ok = m.Lookup("extra", "bn254")
	c.Assert(ok, qt.IsTrue)
	// untouched defaults survive the merge
	_, ok = m.Lookup(CircuitBatchTally, "bn254")
	c.Assert(ok, qt.IsTrue)
}

func TestValidCurve(t *testing.T) {
	c := qt.New(t)
	c.Assert(ValidCurve("bn254"), qt.IsTrue)
	c.Assert(ValidCurve("bls12-377"), qt.IsTrue)
	c.Assert(ValidCurve("p-256"), qt.IsFalse)
	c.Assert(CheckCurve("bn254"), qt.IsNil)
	c.Assert(CheckCurve("nope"), qt.ErrorIs, types.ErrUnknownCircuit)
}
