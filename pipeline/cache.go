package pipeline

import (
	"crypto/sha256"
	"sync"

	"github.com/victorrobotxt/toting/types"
)

// Fingerprint derives the content address of a proof request:
// SHA-256(canonicalInputs || circuitHash). A circuit version flip changes the
// hash and therefore silently invalidates every stale entry.
func Fingerprint(canonicalInputs []byte, circuitHash types.HexBytes) types.HexBytes {
	h := sha256.New()
	h.Write(canonicalInputs)
	h.Write(circuitHash)
	return h.Sum(nil)
}

// ProofCache memoizes completed proof results by fingerprint. It lives for
// the process lifetime and is never evicted; results are deterministic per
// fingerprint so last-write-wins is fine.
type ProofCache struct {
	mu      sync.RWMutex
	entries map[string]*types.ProofResult
}

// NewProofCache creates an empty cache. Each pipeline owns its own instance;
// there is no process-wide cache.
func NewProofCache() *ProofCache {
	return &ProofCache{entries: make(map[string]*types.ProofResult)}
}

// Get returns the cached result for the fingerprint, or nil.
func (c *ProofCache) Get(fingerprint types.HexBytes) *types.ProofResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[fingerprint.String()]
}

// Put stores a result under the fingerprint. Idempotent.
func (c *ProofCache) Put(fingerprint types.HexBytes, result *types.ProofResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint.String()] = result
}

// Len returns the number of memoized entries.
func (c *ProofCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
