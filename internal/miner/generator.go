package miner

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Seed layout: version hash, worker id (LE u32), sequence (LE u64), zero pad.
const (
	workerIDOffset = VersionHashSize
	sequenceOffset = workerIDOffset + 4
)

// Candidate is a generated keypair. The private key is encoded lazily since
// almost every candidate is discarded after scoring.
type Candidate struct {
	Address string
	seed    [ed25519.SeedSize]byte
}

// PrivateKey returns the base58 encoded 32-byte ed25519 seed.
func (c Candidate) PrivateKey() string {
	return base58.Encode(c.seed[:])
}

// Generator derives candidates for a fixed search version.
type Generator struct {
	version VersionHash
}

// NewGenerator creates a generator bound to a version hash
func NewGenerator(version VersionHash) *Generator {
	return &Generator{version: version}
}

// Version returns the version hash the generator was built with
func (g *Generator) Version() VersionHash {
	return g.version
}

// Generate deterministically derives the candidate for (workerID, sequence).
func (g *Generator) Generate(workerID uint32, sequence uint64) Candidate {
	var c Candidate
	copy(c.seed[:], g.version[:])
	binary.LittleEndian.PutUint32(c.seed[workerIDOffset:], workerID)
	binary.LittleEndian.PutUint64(c.seed[sequenceOffset:], sequence)

	key := ed25519.NewKeyFromSeed(c.seed[:])
	c.Address = base58.Encode(key[ed25519.SeedSize:])
	return c
}

// Generate is a convenience wrapper that hashes the version tag on every
// call. Long running workers should hold a Generator instead.
func Generate(versionTag string, workerID uint32, sequence uint64) (address, privateKey string) {
	c := NewGenerator(NewVersionHash(versionTag)).Generate(workerID, sequence)
	return c.Address, c.PrivateKey()
}

// KeyFromPrivateKey decodes a base58 seed produced by Candidate.PrivateKey and
// returns the full ed25519 key together with its base58 address.
func KeyFromPrivateKey(encoded string) (ed25519.PrivateKey, string, error) {
	seed := base58.Decode(encoded)
	if len(seed) != ed25519.SeedSize {
		return nil, "", fmt.Errorf("private key must decode to %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	key := ed25519.NewKeyFromSeed(seed)
	return key, base58.Encode(key[ed25519.SeedSize:]), nil
}
