package circuits

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/types"
)

func TestResolve(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	reg := NewRegistry(stg, config.DefaultManifest())

	// manifest fallback
	res, err := reg.Resolve(config.CircuitEligibility, "bn254")
	c.Assert(err, qt.IsNil)
	c.Assert(res.CircuitHash.String(), qt.Equals,
		"58973d361f4b6fa0c9d9f7d52d8cd6b5d5be54473a7fa80638a44eb2e0975bf2")
	c.Assert(res.Artifact.Class, qt.Equals, types.PayloadOpaque)

	// unknown circuit and unknown curve both fail with the taxonomy error
	_, err = reg.Resolve("nope", "bn254")
	c.Assert(err, qt.ErrorIs, types.ErrUnknownCircuit)
	_, err = reg.Resolve(config.CircuitEligibility, "notacurve")
	c.Assert(err, qt.ErrorIs, types.ErrUnknownCircuit)

	// database override wins over the manifest
	override := &types.CircuitRecord{
		Name:        config.CircuitEligibility,
		Curve:       "bn254",
		Version:     2,
		CircuitHash: types.HexBytes{0xbe, 0xef},
	}
	c.Assert(reg.Activate(override), qt.IsNil)

	res, err = reg.Resolve(config.CircuitEligibility, "bn254")
	c.Assert(err, qt.IsNil)
	c.Assert(res.CircuitHash.String(), qt.Equals, "beef")
	// artifact locations still come from the manifest
	c.Assert(res.Artifact.WasmPath, qt.Not(qt.Equals), "")
}

func TestResolveDuringFlip(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	reg := NewRegistry(stg, config.DefaultManifest())

	c.Assert(reg.Activate(&types.CircuitRecord{
		Name: config.CircuitBatchTally, Curve: "bn254", Version: 1,
		CircuitHash: types.HexBytes{0x01},
	}), qt.IsNil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := uint32(2); v <= 16; v++ {
			c.Check(reg.Activate(&types.CircuitRecord{
				Name: config.CircuitBatchTally, Curve: "bn254", Version: v,
				CircuitHash: types.HexBytes{byte(v)},
			}), qt.IsNil)
		}
	}()

	seen := map[string]struct{}{}
	for {
		select {
		case <-done:
			// every observed hash was a whole version, never an
			// intermediate "nothing active" state
			c.Assert(len(seen) > 0, qt.IsTrue)
			return
		default:
			res, err := reg.Resolve(config.CircuitBatchTally, "bn254")
			c.Assert(err, qt.IsNil)
			seen[res.CircuitHash.String()] = struct{}{}
		}
	}
}
