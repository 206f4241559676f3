// Package canonical produces deterministic JSON for signing payloads.
//
// Signatures over DID documents and credentials must be reproducible by any
// verifier, so the byte serialization has to be independent of struct field
// order and map iteration order. encoding/json already emits map keys in
// sorted order; Marshal round-trips the value through a generic map to get
// that guarantee for struct inputs as well. Numbers pass through as
// json.Number so no float re-formatting can change the bytes.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal serializes v into canonical JSON: sorted object keys, no
// insignificant whitespace, numbers preserved verbatim.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical decode: %w", err)
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonical re-marshal: %w", err)
	}
	return out, nil
}
