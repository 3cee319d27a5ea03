package core

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// canonicalEncoding sorts map keys (RFC 8949 core deterministic encoding), so
// equal parameter maps always serialise to the same bytes.
var canonicalEncoding = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("core: building deterministic CBOR mode: %v", err))
	}
	return em
}

// CanonicalBytes returns the deterministic CBOR encoding of v.
func CanonicalBytes(v any) ([]byte, error) {
	return canonicalEncoding.Marshal(v)
}

// Fingerprint computes the cache key for a computation and its parameters.
//
// Formula: SHA256(functionID + "|" + deterministic_cbor(params))
//
// params should be built from maps, strings, numbers and sorted slices; key order
// of the caller's map never affects the result.
func Fingerprint(functionID string, params map[string]any) (string, error) {
	encoded, err := CanonicalBytes(params)
	if err != nil {
		return "", fmt.Errorf("encode params for %s: %w", functionID, err)
	}
	data := append([]byte(functionID+"|"), encoded...)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}
