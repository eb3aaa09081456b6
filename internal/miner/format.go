package miner

import "strings"

const (
	ansiMatch = "\x1b[1;97m"
	ansiMiss  = "\x1b[1;90m"
	ansiReset = "\x1b[0m"
)

// FormatMatch renders the prefix and suffix of a candidate address as
// "ABCD..WXYZ". With color set, matched characters are bold white and the
// rest bold gray.
func (s *Scorer) FormatMatch(candidate string, score uint8, color bool) string {
	n := len(candidate)
	if n < PatternLength {
		return candidate
	}

	matched := s.Matched(score)
	var b strings.Builder
	write := func(c byte, ok bool) {
		if !color {
			b.WriteByte(c)
			return
		}
		if ok {
			b.WriteString(ansiMatch)
		} else {
			b.WriteString(ansiMiss)
		}
		b.WriteByte(c)
		b.WriteString(ansiReset)
	}

	for i := 0; i < affixLength; i++ {
		write(candidate[i], matched[i])
	}
	if color {
		b.WriteString(ansiMiss + ".." + ansiReset)
	} else {
		b.WriteString("..")
	}
	for i := 0; i < affixLength; i++ {
		write(candidate[n-affixLength+i], matched[affixLength+i])
	}
	return b.String()
}
