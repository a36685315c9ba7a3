package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"

	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/types"
)

// Known circuit names served by the pipeline.
const (
	CircuitEligibility = "eligibility"
	CircuitVoiceCredit = "voice_credit"
	CircuitBatchTally  = "batch_tally"
)

// Default curve when the client does not pick one.
const DefaultCurve = "bn254"

// CircuitArtifact describes the compiled artifacts of one circuit version for
// one curve. ContentHash identifies the compiled circuit; the paths locate
// the artifacts the prover needs. Missing artifact files are not an error,
// the prover falls back to the deterministic stand-in.
type CircuitArtifact struct {
	ContentHash string             `json:"contentHash"`
	WasmPath    string             `json:"wasmPath,omitempty"`
	ZKeyPath    string             `json:"zkeyPath,omitempty"`
	VKeyPath    string             `json:"vkeyPath,omitempty"`
	Class       types.PayloadClass `json:"class"`
}

// CircuitManifest maps circuitName -> curve -> artifact.
type CircuitManifest map[string]map[string]CircuitArtifact

// Lookup returns the artifact for the given circuit and curve.
func (m CircuitManifest) Lookup(name, curve string) (CircuitArtifact, bool) {
	curves, ok := m[name]
	if !ok {
		return CircuitArtifact{}, false
	}
	art, ok := curves[curve]
	return art, ok
}

// DefaultManifest returns the built-in artifact manifest. Content hashes pin
// the compiled circom artifacts shipped with the repository release.
func DefaultManifest() CircuitManifest {
	return CircuitManifest{
		CircuitEligibility: {
			"bn254": {
				ContentHash: "58973d361f4b6fa0c9d9f7d52d8cd6b5d5be54473a7fa80638a44eb2e0975bf2",
				WasmPath:    "circuits/eligibility.wasm",
				ZKeyPath:    "circuits/eligibility_final.zkey",
				VKeyPath:    "circuits/eligibility_vkey.json",
				Class:       types.PayloadOpaque,
			},
			"bls12-377": {
				ContentHash: "9f1c5a2e84b3d7c016ae452f98d0b6e3571c2a84f60d9be1372cca05581ce44d",
				Class:       types.PayloadOpaque,
			},
		},
		CircuitVoiceCredit: {
			"bn254": {
				ContentHash: "1b0c8872a2b86d45c5e0a7d3c6f41d2e9a07458be31f6c02d9f57a8e6014cd83",
				WasmPath:    "circuits/voice_credit.wasm",
				ZKeyPath:    "circuits/voice_credit_final.zkey",
				VKeyPath:    "circuits/voice_credit_vkey.json",
				Class:       types.PayloadOpaque,
			},
		},
		CircuitBatchTally: {
			"bn254": {
				ContentHash: "c47361b88c26a5eb2f40e8d9a5cf0213de6a74f1052bc98d30b15e763a99ff21",
				WasmPath:    "circuits/tally.wasm",
				ZKeyPath:    "circuits/tally_final.zkey",
				VKeyPath:    "circuits/tally_vkey.json",
				Class:       types.PayloadGroth16,
			},
		},
	}
}

// LoadManifest reads a JSON manifest from disk and merges it over the
// defaults: file entries win per (circuit, curve). A missing file is a
// warning, not an error, and yields the defaults untouched.
func LoadManifest(path string) CircuitManifest {
	manifest := DefaultManifest()
	if path == "" {
		return manifest
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnw("circuit manifest not readable, using defaults", "path", path, "error", err.Error())
		return manifest
	}
	var loaded CircuitManifest
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warnw("circuit manifest malformed, using defaults", "path", path, "error", err.Error())
		return manifest
	}
	for name, curves := range loaded {
		if _, ok := manifest[name]; !ok {
			manifest[name] = map[string]CircuitArtifact{}
		}
		for curve, art := range curves {
			manifest[name][curve] = art
		}
	}
	log.Infow("circuit manifest loaded", "path", path, "circuits", len(loaded))
	return manifest
}

// ValidCurve reports whether name matches a curve implemented by
// gnark-crypto (bn254, bls12-377, bls12-381, bw6-761, ...).
func ValidCurve(name string) bool {
	for _, id := range ecc.Implemented() {
		if id.String() == name {
			return true
		}
	}
	return false
}

// CheckCurve returns types.ErrUnknownCircuit for curves outside the
// implemented set, so admission can reject them before any queue work.
func CheckCurve(name string) error {
	if !ValidCurve(name) {
		return fmt.Errorf("%w: unsupported curve %q", types.ErrUnknownCircuit, name)
	}
	return nil
}
