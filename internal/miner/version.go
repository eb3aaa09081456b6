// Package miner implements candidate generation and weighted pattern scoring.
package miner

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// VersionHashSize is the number of bytes of the version digest mixed into
// every seed.
const VersionHashSize = 16

// VersionHash identifies one generation of the search. Changing the version
// tag moves every worker onto a keyspace region nobody has searched yet.
type VersionHash [VersionHashSize]byte

// NewVersionHash derives the hash of a version tag. Compute it once at
// startup and share the value; it is never mutated.
func NewVersionHash(tag string) VersionHash {
	sum := sha3.Sum256([]byte(tag))

	var h VersionHash
	copy(h[:], sum[:VersionHashSize])
	return h
}

// String returns the hex form used in cursor keys and analytics rows.
func (h VersionHash) String() string {
	return hex.EncodeToString(h[:])
}
