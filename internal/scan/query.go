package scan

import "bytes"

// Query is the match condition for a run. One or two required
// substrings with AND semantics: a line matches iff every pattern
// occurs in it at least once. Immutable once built.
type Query struct {
	patterns [][]byte
}

// NewQuery builds a query from the given patterns. Empty patterns are
// dropped.
func NewQuery(patterns ...string) Query {
	q := Query{}
	for _, p := range patterns {
		if p != "" {
			q.patterns = append(q.patterns, []byte(p))
		}
	}
	return q
}

// PatternCount returns the number of required patterns.
func (q Query) PatternCount() int { return len(q.patterns) }

// MatchLine reports whether line contains every pattern.
func (q Query) MatchLine(line []byte) bool {
	if len(q.patterns) == 0 {
		return false
	}
	for _, p := range q.patterns {
		if !bytes.Contains(line, p) {
			return false
		}
	}
	return true
}
