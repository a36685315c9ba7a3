package pipeline

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/prover"
	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/types"
)

func testPipeline(t *testing.T, quota int) (*Pipeline, *storage.Storage) {
	t.Helper()
	stg := storage.New(metadb.NewTest(t))
	reg := circuits.NewRegistry(stg, config.DefaultManifest())
	adm := NewAdmissionController(stg, quota)
	p := New(reg, adm, prover.NewFallbackProver(), stg, 2, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	qt.Assert(t, p.Start(ctx), qt.IsNil)
	t.Cleanup(p.Stop)
	return p, stg
}

func waitTerminal(c *qt.C, p *Pipeline, jobID string) types.JobStatus {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := p.Status(jobID)
		c.Assert(err, qt.IsNil)
		if status.State.Terminal() {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Fatalf("job %s never reached a terminal state", jobID)
	return types.JobStatus{}
}

func TestSubmitRejections(t *testing.T) {
	c := qt.New(t)
	p, _ := testPipeline(t, 10)

	_, err := p.Submit("alice", config.CircuitEligibility, "bn254", []byte(`{"a":`))
	c.Assert(err, qt.ErrorIs, types.ErrMalformedInput)

	_, err = p.Submit("alice", "nope", "bn254", []byte(`{"a":1}`))
	c.Assert(err, qt.ErrorIs, types.ErrUnknownCircuit)

	// neither rejection consumed quota
	left, err := p.Remaining("alice")
	c.Assert(err, qt.IsNil)
	c.Assert(left, qt.Equals, 10)
}

func TestQuotaBoundary(t *testing.T) {
	c := qt.New(t)
	p, _ := testPipeline(t, 2)

	// distinct inputs so the cache never short-circuits admission
	_, err := p.Submit("bob", config.CircuitEligibility, "bn254", []byte(`{"n":1}`))
	c.Assert(err, qt.IsNil)
	_, err = p.Submit("bob", config.CircuitEligibility, "bn254", []byte(`{"n":2}`))
	c.Assert(err, qt.IsNil)
	_, err = p.Submit("bob", config.CircuitEligibility, "bn254", []byte(`{"n":3}`))
	c.Assert(err, qt.ErrorIs, types.ErrQuotaExceeded)

	// other identities are unaffected
	_, err = p.Submit("carol", config.CircuitEligibility, "bn254", []byte(`{"n":1}`))
	c.Assert(err, qt.IsNil)
}

func TestCacheHitStillConsumesQuota(t *testing.T) {
	c := qt.New(t)
	p, _ := testPipeline(t, 5)

	first, err := p.Submit("dave", config.CircuitEligibility, "bn254", []byte(`{"vote":1}`))
	c.Assert(err, qt.IsNil)
	c.Assert(first.Cached, qt.IsFalse)
	done := waitTerminal(c, p, first.JobID)
	c.Assert(done.State, qt.Equals, types.JobDone)

	// key order and whitespace differ; canonicalization makes them identical
	second, err := p.Submit("dave", config.CircuitEligibility, "bn254", []byte(` {"vote": 1} `))
	c.Assert(err, qt.IsNil)
	c.Assert(second.Cached, qt.IsTrue)
	c.Assert(second.Result, qt.DeepEquals, done.Result)

	left, err := p.Remaining("dave")
	c.Assert(err, qt.IsNil)
	c.Assert(left, qt.Equals, 3)
}

func TestTerminalStateIsStable(t *testing.T) {
	c := qt.New(t)
	p, _ := testPipeline(t, 5)

	res, err := p.Submit("erin", config.CircuitEligibility, "bn254", []byte(`{"x":42}`))
	c.Assert(err, qt.IsNil)
	done := waitTerminal(c, p, res.JobID)
	c.Assert(done.State, qt.Equals, types.JobDone)
	c.Assert(done.Progress, qt.Equals, 100)
	c.Assert(done.Result, qt.IsNotNil)

	for i := 0; i < 3; i++ {
		again, err := p.Status(res.JobID)
		c.Assert(err, qt.IsNil)
		c.Assert(again, qt.DeepEquals, done)
	}
}

func TestAuditWrittenOncePerComputedProof(t *testing.T) {
	c := qt.New(t)
	p, stg := testPipeline(t, 5)

	res, err := p.Submit("frank", config.CircuitEligibility, "bn254", []byte(`{"x":1}`))
	c.Assert(err, qt.IsNil)
	waitTerminal(c, p, res.JobID)

	// the cache hit must not append a second record
	hit, err := p.Submit("frank", config.CircuitEligibility, "bn254", []byte(`{"x":1}`))
	c.Assert(err, qt.IsNil)
	c.Assert(hit.Cached, qt.IsTrue)

	count, err := stg.CountAudits()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
}

func TestCircuitFlipInvalidatesCache(t *testing.T) {
	c := qt.New(t)
	p, _ := testPipeline(t, 5)

	inputs := []byte(`{"x":7}`)
	res, err := p.Submit("grace", config.CircuitEligibility, "bn254", inputs)
	c.Assert(err, qt.IsNil)
	waitTerminal(c, p, res.JobID)

	c.Assert(p.Registry().Activate(&types.CircuitRecord{
		Name:        config.CircuitEligibility,
		Curve:       "bn254",
		Version:     1,
		CircuitHash: types.HexBytes{0x01, 0x02},
	}), qt.IsNil)

	// same inputs, new circuit hash, new fingerprint: no stale hit
	again, err := p.Submit("grace", config.CircuitEligibility, "bn254", inputs)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Cached, qt.IsFalse)
	done := waitTerminal(c, p, again.JobID)
	c.Assert(done.State, qt.Equals, types.JobDone)
}

func TestWatchStreamsUntilTerminal(t *testing.T) {
	c := qt.New(t)
	p, _ := testPipeline(t, 5)

	res, err := p.Submit("heidi", config.CircuitEligibility, "bn254", []byte(`{"x":9}`))
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := p.Watch(ctx, res.JobID)
	c.Assert(err, qt.IsNil)

	var last types.JobStatus
	var count int
	for snap := range ch {
		last = snap
		count++
	}
	c.Assert(count > 0, qt.IsTrue)
	c.Assert(last.State, qt.Equals, types.JobDone)

	_, err = p.Watch(ctx, "no-such-job")
	c.Assert(err, qt.ErrorIs, ErrJobNotFound)
}

func TestFingerprintBindsCircuit(t *testing.T) {
	c := qt.New(t)
	inputs := []byte(`{"a":1}`)
	fp1 := Fingerprint(inputs, types.HexBytes{0xaa})
	fp2 := Fingerprint(inputs, types.HexBytes{0xbb})
	fp3 := Fingerprint(inputs, types.HexBytes{0xaa})
	c.Assert(fp1.String(), qt.Not(qt.Equals), fp2.String())
	c.Assert(fp1.String(), qt.Equals, fp3.String())
}
