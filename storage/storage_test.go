package storage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/victorrobotxt/toting/types"
	"github.com/victorrobotxt/toting/util"
)

func TestQuotaConcurrency(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	const quota = 25
	const attempts = 100
	identity := util.RandomHex(16)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := stg.TryIncQuota(identity, "2024-06-01", quota)
			c.Check(err, qt.IsNil)
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	c.Assert(int(admitted.Load()), qt.Equals, quota)
	count, err := stg.QuotaCount(identity, "2024-06-01")
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, quota)

	// the next call is always rejected
	ok, err := stg.TryIncQuota(identity, "2024-06-01", quota)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	// a fresh day bucket starts over
	ok, err = stg.TryIncQuota(identity, "2024-06-02", quota)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestCircuitActivation(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	_, err := stg.ActiveCircuit("eligibility", "bn254")
	c.Assert(err, qt.Equals, ErrNotFound)

	v1 := &types.CircuitRecord{
		Name: "eligibility", Curve: "bn254", Version: 1,
		CircuitHash: types.HexBytes{0x01},
	}
	c.Assert(stg.ActivateCircuit(v1), qt.IsNil)

	rec, err := stg.ActiveCircuit("eligibility", "bn254")
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Version, qt.Equals, uint32(1))
	c.Assert(rec.Active, qt.IsTrue)

	// versions must grow
	err = stg.ActivateCircuit(&types.CircuitRecord{
		Name: "eligibility", Curve: "bn254", Version: 1,
		CircuitHash: types.HexBytes{0x02},
	})
	c.Assert(err, qt.IsNotNil)

	v2 := &types.CircuitRecord{
		Name: "eligibility", Curve: "bn254", Version: 2,
		CircuitHash: types.HexBytes{0x02},
	}
	c.Assert(stg.ActivateCircuit(v2), qt.IsNil)

	rec, err = stg.ActiveCircuit("eligibility", "bn254")
	c.Assert(err, qt.IsNil)
	c.Assert(rec.CircuitHash.String(), qt.Equals, "02")

	// the prior version remains registered but inactive
	old, err := stg.CircuitVersion("eligibility", "bn254", 1)
	c.Assert(err, qt.IsNil)
	c.Assert(old.Active, qt.IsFalse)

	// a different curve is an independent pair
	_, err = stg.ActiveCircuit("eligibility", "bls12-377")
	c.Assert(err, qt.Equals, ErrNotFound)
}

func TestCircuitFlipNeverTorn(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	c.Assert(stg.ActivateCircuit(&types.CircuitRecord{
		Name: "tally", Curve: "bn254", Version: 1, CircuitHash: types.HexBytes{0xaa},
	}), qt.IsNil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := uint32(2); v < 20; v++ {
			err := stg.ActivateCircuit(&types.CircuitRecord{
				Name: "tally", Curve: "bn254", Version: v, CircuitHash: types.HexBytes{byte(v)},
			})
			c.Check(err, qt.IsNil)
		}
	}()

	// once a version has been activated, readers never see "no active"
	for {
		select {
		case <-done:
			return
		default:
			rec, err := stg.ActiveCircuit("tally", "bn254")
			c.Assert(err, qt.IsNil)
			c.Assert(rec.Active, qt.IsTrue)
		}
	}
}

func TestAuditLedger(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	for i := 0; i < 5; i++ {
		err := stg.PushAudit(&types.ProofAuditRecord{
			CircuitHash: types.HexBytes{0xc1},
			InputHash:   types.HexBytes{byte(i)},
			ProofRoot:   types.HexBytes{0xf0, byte(i)},
			Timestamp:   time.Unix(int64(1000+i), 0).UTC(),
		})
		c.Assert(err, qt.IsNil)
	}

	total, err := stg.CountAudits()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(5))

	// newest first
	recs, err := stg.ListAudits(0, 50)
	c.Assert(err, qt.IsNil)
	c.Assert(recs, qt.HasLen, 5)
	c.Assert(recs[0].InputHash.String(), qt.Equals, "04")
	c.Assert(recs[4].InputHash.String(), qt.Equals, "00")

	// pagination
	recs, err = stg.ListAudits(1, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(recs, qt.HasLen, 2)
	c.Assert(recs[0].InputHash.String(), qt.Equals, "03")
	c.Assert(recs[1].InputHash.String(), qt.Equals, "02")
}

func TestDeadLetters(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	for i := 0; i < 3; i++ {
		err := stg.PushDeadLetter(&types.DeadLetterRecord{
			EventBlock: uint64(100 + i),
			TxHash:     types.HexBytes{0xab, byte(i)},
			Payload:    []byte(fmt.Sprintf(`{"tally":[%d]}`, i)),
			Error:      "execution reverted",
			Attempts:   5,
			Timestamp:  time.Unix(int64(2000+i), 0).UTC(),
		})
		c.Assert(err, qt.IsNil)
	}

	count, err := stg.CountDeadLetters()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(3))

	recs, err := stg.ListDeadLetters()
	c.Assert(err, qt.IsNil)
	c.Assert(recs, qt.HasLen, 3)
	c.Assert(recs[0].EventBlock, qt.Equals, uint64(100))
	c.Assert(recs[2].Attempts, qt.Equals, 5)
}

func TestElectionsAndWatcherState(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	_, err := stg.Election(7)
	c.Assert(err, qt.Equals, ErrNotFound)

	e := &types.Election{ID: 7, MetaHash: types.HexBytes{0x07}, StartBlock: 10, EndBlock: 7210, Status: "pending"}
	c.Assert(stg.SetElection(e), qt.IsNil)

	got, err := stg.Election(7)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, e)

	c.Assert(stg.SetElection(&types.Election{ID: 2, Status: "pending"}), qt.IsNil)
	all, err := stg.ListElections()
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 2)
	c.Assert(all[0].ID, qt.Equals, uint64(2))

	block, err := stg.LastScannedBlock("orchestrator")
	c.Assert(err, qt.IsNil)
	c.Assert(block, qt.Equals, uint64(0))
	c.Assert(stg.SetLastScannedBlock("orchestrator", 1234), qt.IsNil)
	block, err = stg.LastScannedBlock("orchestrator")
	c.Assert(err, qt.IsNil)
	c.Assert(block, qt.Equals, uint64(1234))
}
