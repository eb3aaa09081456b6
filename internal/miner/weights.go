package miner

import (
	"fmt"
	"strconv"
	"strings"
)

// Weights assigns each of the eight scoring positions a distinct bit. Index
// 0-3 are the prefix positions, 4-7 the suffix positions. Because the values
// are a permutation of 0..7 a full match always sums to MaxScore.
type Weights [PatternLength]uint8

// DefaultWeights favours the outermost characters, alternating between the
// prefix and the suffix as positions move inward.
var DefaultWeights = Weights{7, 5, 3, 1, 0, 2, 4, 6}

// NewWeights validates that values is a permutation of 0..7.
func NewWeights(values []int) (Weights, error) {
	var w Weights
	if len(values) != PatternLength {
		return w, fmt.Errorf("weights need %d entries, got %d", PatternLength, len(values))
	}

	var seen [PatternLength]bool
	for i, v := range values {
		if v < 0 || v >= PatternLength {
			return w, fmt.Errorf("weight %d at position %d is outside 0..%d", v, i, PatternLength-1)
		}
		if seen[v] {
			return w, fmt.Errorf("weight %d is used more than once", v)
		}
		seen[v] = true
		w[i] = uint8(v)
	}
	return w, nil
}

// ParseWeights parses a comma separated permutation such as "7,5,3,1,0,2,4,6".
func ParseWeights(s string) (Weights, error) {
	parts := strings.Split(s, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Weights{}, fmt.Errorf("invalid weight %q: %w", part, err)
		}
		values = append(values, v)
	}
	return NewWeights(values)
}

// Bit returns the score contribution of position i.
func (w Weights) Bit(i int) uint8 {
	return 1 << w[i]
}

func (w Weights) String() string {
	parts := make([]string, len(w))
	for i, v := range w {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}

// Ints returns the weights as a slice accepted by NewWeights.
func (w Weights) Ints() []int {
	out := make([]int, len(w))
	for i, v := range w {
		out[i] = int(v)
	}
	return out
}
