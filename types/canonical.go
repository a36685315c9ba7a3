package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON re-encodes a JSON document deterministically: object keys are
// sorted, insignificant whitespace is dropped and numeric literals are kept
// verbatim. Two structurally equal documents always canonicalize to the same
// byte sequence regardless of field order.
func CanonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	// Reject trailing garbage after the document.
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON document", ErrMalformedInput)
	}
	// encoding/json serializes map keys in sorted order, which is all the
	// determinism the fingerprint needs. json.Number round-trips literals.
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return out, nil
}
