package hashing

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonical re-encodes raw JSON into a canonical form: object keys sorted,
// no insignificant whitespace. Two byte-different encodings of the same
// document canonicalize to identical bytes, so hashes survive key reordering
// and process restarts.
func Canonical(raw []byte) ([]byte, error) {
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	// encoding/json sorts map keys on marshal, which gives us the
	// deterministic ordering for free.
	out, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Sum returns the hex SHA-512 digest of the canonical form of raw JSON.
func Sum(raw []byte) (string, error) {
	canonical, err := Canonical(raw)
	if err != nil {
		return "", err
	}
	digest := sha512.Sum512(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// SumFields hashes a flat set of stringified fields. Used for identity
// hashing: every row of an entity type reduces to the same digest iff its
// identity fields are equal.
func SumFields(fields map[string]string) string {
	// map marshal is key-sorted, so this is order-independent
	buf, err := json.Marshal(fields)
	if err != nil {
		// map[string]string cannot fail to marshal
		panic(err)
	}
	digest := sha512.Sum512(buf)
	return hex.EncodeToString(digest[:])
}
