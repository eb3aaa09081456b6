package miner

import (
	"errors"
	"fmt"
)

const (
	// PatternLength is the number of scored positions
	PatternLength = 8
	// affixLength is the size of the prefix and of the suffix
	affixLength = PatternLength / 2

	// MaxScore is reached only when all eight positions match
	MaxScore uint8 = 255
	// DefaultDiscoveryThreshold is the lowest score reported to the API
	DefaultDiscoveryThreshold uint8 = 0b11100000
)

var (
	// ErrMalformedPattern is returned for patterns with fewer than eight characters
	ErrMalformedPattern = errors.New("malformed pattern")
	// ErrShortCandidate is returned for candidate addresses with fewer than eight characters
	ErrShortCandidate = errors.New("candidate address too short")
)

// Pattern is a compiled target pattern: the first four characters must
// prefix the address and the last four must suffix it.
type Pattern struct {
	prefix [affixLength]byte
	suffix [affixLength]byte
}

// ParsePattern compiles a pattern string. Anything between the first and
// last four characters is ignored.
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	if len(s) < PatternLength {
		return p, fmt.Errorf("%w: %q has %d characters, need at least %d", ErrMalformedPattern, s, len(s), PatternLength)
	}
	copy(p.prefix[:], s[:affixLength])
	copy(p.suffix[:], s[len(s)-affixLength:])
	return p, nil
}

func (p Pattern) String() string {
	return string(p.prefix[:]) + ".." + string(p.suffix[:])
}

// Scorer computes weighted partial-match scores.
type Scorer struct {
	weights Weights
	bits    [PatternLength]uint8
}

// NewScorer creates a scorer for a validated weight permutation
func NewScorer(weights Weights) *Scorer {
	s := &Scorer{weights: weights}
	for i := range s.bits {
		s.bits[i] = weights.Bit(i)
	}
	return s
}

// Weights returns the permutation the scorer was built with
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score sums 2^w[i] over every position i where the candidate matches the
// pattern exactly.
func (s *Scorer) Score(p Pattern, candidate string) (uint8, error) {
	n := len(candidate)
	if n < PatternLength {
		return 0, fmt.Errorf("%w: %q", ErrShortCandidate, candidate)
	}

	var score uint8
	for i := 0; i < affixLength; i++ {
		if candidate[i] == p.prefix[i] {
			score += s.bits[i]
		}
		if candidate[n-affixLength+i] == p.suffix[i] {
			score += s.bits[affixLength+i]
		}
	}
	return score, nil
}

// ScoreString parses pattern and scores candidate against it.
func (s *Scorer) ScoreString(pattern, candidate string) (uint8, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return 0, err
	}
	return s.Score(p, candidate)
}

// Matched reports, per position, whether score includes that position's bit.
func (s *Scorer) Matched(score uint8) [PatternLength]bool {
	var matched [PatternLength]bool
	for i, bit := range s.bits {
		matched[i] = score&bit != 0
	}
	return matched
}
