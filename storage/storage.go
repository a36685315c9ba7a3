// Package storage contains all the artifacts persisted by the proof pipeline
// and the chain orchestrator, on top of a prefixed key-value store. The
// following prefixes are used:
//   - 'q/'  for daily proof-quota counters
//   - 'cr/' for circuit version records
//   - 'ca/' for the active circuit pointer per (name, curve)
//   - 'au/' for the append-only proof audit ledger
//   - 'dl/' for dead-lettered submissions
//   - 'e/'  for election records discovered on chain
//   - 'ws/' for watcher scan state (low-water marks)
package storage

import (
	"hash/fnv"
	"sync"

	"go.vocdoni.io/dvote/db"
)

var (
	quotaPrefix         = []byte("q/")
	circuitPrefix       = []byte("cr/")
	circuitActivePrefix = []byte("ca/")
	auditPrefix         = []byte("au/")
	auditSeqPrefix      = []byte("aus/")
	deadLetterPrefix    = []byte("dl/")
	electionPrefix      = []byte("e/")
	watcherStatePrefix  = []byte("ws/")
)

// quotaStripes is the number of independent quota locks. Counters for
// different (identity, day) keys hash to different stripes and do not
// contend with each other.
const quotaStripes = 64

// Storage wraps the underlying key-value database with typed accessors for
// every artifact the system persists.
type Storage struct {
	db          db.Database
	quotaLocks  [quotaStripes]sync.Mutex
	circuitLock sync.RWMutex
	auditLock   sync.Mutex
	dlLock      sync.Mutex
}

// New creates a new Storage instance on top of the given database.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	s.db.Close()
}

func (s *Storage) quotaLock(key []byte) *sync.Mutex {
	h := fnv.New32a()
	h.Write(key)
	return &s.quotaLocks[h.Sum32()%quotaStripes]
}
