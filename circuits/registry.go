// Package circuits resolves circuit identity: which content hash (and which
// compiled artifacts) serve a (circuitName, curve) pair right now.
package circuits

import (
	"fmt"

	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/types"
)

// Resolved is the outcome of a registry lookup: the circuit hash all cache
// fingerprints are keyed by, plus the artifact locations the prover uses.
type Resolved struct {
	Name        string
	Curve       string
	CircuitHash types.HexBytes
	Artifact    config.CircuitArtifact
}

// Registry resolves (name, curve) to a circuit hash. An active database
// record wins over the static manifest; the manifest is the fallback for
// circuits that were never re-versioned at runtime.
type Registry struct {
	stg      *storage.Storage
	manifest config.CircuitManifest
}

// NewRegistry creates a Registry over the given storage and manifest.
func NewRegistry(stg *storage.Storage, manifest config.CircuitManifest) *Registry {
	if manifest == nil {
		manifest = config.DefaultManifest()
	}
	return &Registry{stg: stg, manifest: manifest}
}

// Resolve returns the circuit hash and artifacts for (name, curve).
// Returns types.ErrUnknownCircuit if neither an active database record nor a
// manifest entry exists. Safe to call concurrently with Activate: a caller
// observes either the old or the new version, never a torn state.
func (r *Registry) Resolve(name, curve string) (*Resolved, error) {
	if err := config.CheckCurve(curve); err != nil {
		return nil, err
	}
	art, haveManifest := r.manifest.Lookup(name, curve)
	res := &Resolved{Name: name, Curve: curve, Artifact: art}

	rec, err := r.stg.ActiveCircuit(name, curve)
	switch {
	case err == nil:
		res.CircuitHash = rec.CircuitHash
		return res, nil
	case err == storage.ErrNotFound:
		// fall through to the manifest
	default:
		return nil, fmt.Errorf("read active circuit: %w", err)
	}

	if !haveManifest {
		return nil, fmt.Errorf("%w: %s/%s", types.ErrUnknownCircuit, name, curve)
	}
	if err := res.CircuitHash.SetString(art.ContentHash); err != nil {
		return nil, fmt.Errorf("manifest hash for %s/%s: %w", name, curve, err)
	}
	return res, nil
}

// Activate registers a new circuit version and atomically flips the active
// pointer for its (name, curve) pair.
func (r *Registry) Activate(rec *types.CircuitRecord) error {
	if err := config.CheckCurve(rec.Curve); err != nil {
		return err
	}
	if err := r.stg.ActivateCircuit(rec); err != nil {
		return err
	}
	log.Infow("circuit version activated",
		"circuit", rec.Name, "curve", rec.Curve,
		"version", rec.Version, "hash", rec.CircuitHash.String())
	return nil
}
