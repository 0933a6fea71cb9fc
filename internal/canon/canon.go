// Package canon implements the canonical JSON serialization shared by every
// signer and verifier in the pool protocol: keys sorted lexicographically at
// every nesting level, no insignificant whitespace, no HTML escaping, and the
// top level `sig` field removed. Any byte-level deviation breaks signatures,
// so this is the only strict wire contract in the daemon.
package canon

import (
	"bytes"
	"encoding/json"
	"errors"

	"swarmpool/internal/utils"
)

// Decode parses a JSON object keeping numbers as their literal representation
// (json.Number). Payloads decoded any other way will not re-serialize to the
// bytes the submitter signed.
func Decode(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, utils.Wrap("failed decoding json object", err)
	}
	return obj, nil
}

// Canonicalize serializes payload into its canonical signing bytes.
func Canonicalize(payload any) ([]byte, error) {
	obj, err := toGeneric(payload)
	if err != nil {
		return nil, err
	}
	delete(obj, "sig")
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, utils.Wrap("failed encoding canonical json", err)
	}
	// Encoder appends a newline; canonical bytes carry none.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func toGeneric(payload any) (map[string]any, error) {
	if obj, ok := payload.(map[string]any); ok {
		// Copy so the caller keeps its sig field.
		cp := make(map[string]any, len(obj))
		for k, v := range obj {
			cp[k] = v
		}
		return cp, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, utils.Wrap("failed marshaling payload", err)
	}
	obj, err := Decode(b)
	if err != nil {
		return nil, errors.New("payload is not a json object")
	}
	return obj, nil
}
