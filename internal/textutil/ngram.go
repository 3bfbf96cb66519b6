package textutil

import "strings"

// NGrams counts contiguous n-grams in a token sequence. Grams are keyed by
// their space-joined form. Returns an empty map when the sequence is shorter
// than n or n is not positive.
func NGrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	if n <= 0 || len(tokens) < n {
		return counts
	}

	for i := 0; i+n <= len(tokens); i++ {
		gram := strings.Join(tokens[i:i+n], " ")
		counts[gram]++
	}

	return counts
}

// OverlapCount sums the min-clipped overlap between two n-gram count maps.
// Each candidate gram is credited at most as many times as it appears in
// the reference.
func OverlapCount(candidate, reference map[string]int) int {
	overlap := 0
	for gram, count := range candidate {
		if refCount, ok := reference[gram]; ok {
			if refCount < count {
				overlap += refCount
			} else {
				overlap += count
			}
		}
	}
	return overlap
}
