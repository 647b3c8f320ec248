// Package plate normalizes license-plate text and scores plate similarity.
package plate

import "strings"

// MatchThreshold is the similarity score at or above which two plates are
// treated as the same vehicle.
const MatchThreshold = 0.6

// Normalize uppercases a plate and strips every character that is not an
// ASCII letter or digit.
func Normalize(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, r := range strings.ToUpper(p) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity scores two plates in [0,1] by comparing characters position by
// position over the shorter normalized plate, divided by the longer length.
//
// This is deliberately positional, not edit distance: a one-character
// insertion near the front of a plate can sharply lower the score. Camera
// misreads we care about are substitutions in place, and the downstream
// threshold is tuned against exactly this comparator.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	n := len(na)
	if len(nb) < n {
		n = len(nb)
	}
	if n == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < n; i++ {
		if na[i] == nb[i] {
			matches++
		}
	}
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	return float64(matches) / float64(longest)
}

// Match reports whether two plates score at or above MatchThreshold.
func Match(a, b string) bool {
	return Similarity(a, b) >= MatchThreshold
}
