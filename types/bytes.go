package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// HexBytes is a []byte which encodes as hexadecimal in JSON, with or without
// a leading "0x".
type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// SetString decodes a hex string, with optional 0x prefix, into b.
func (b *HexBytes) SetString(s string) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	dec, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = dec
	return nil
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid hex string: %w", err)
	}
	return b.SetString(s)
}
