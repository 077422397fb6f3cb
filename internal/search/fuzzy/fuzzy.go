// Package fuzzy implements approximate string matching via normalised
// Levenshtein similarity. It is used to amplify the ranking of candidates
// that nearly match the query; it never surfaces candidates on its own.
package fuzzy

// Distance returns the Levenshtein edit distance between a and b: the
// minimum number of single-rune insertions, deletions, or substitutions
// needed to transform one into the other.
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two-row DP over the (|b|+1) x (|a|+1) table.
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min(
				prev[i-1]+cost, // substitution
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

// Similarity returns the normalised similarity of a and b in [0,1]:
// (maxLen - distance) / maxLen. Two empty strings are identical (1.0).
func Similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-Distance(a, b)) / float64(maxLen)
}

// Score returns the highest similarity between query and any candidate,
// provided it meets the threshold; otherwise 0. The result feeds the final
// multiplicative ranking bonus.
func Score(query string, candidates []string, threshold float64) float64 {
	best := 0.0
	for _, c := range candidates {
		if sim := Similarity(query, c); sim > best {
			best = sim
		}
	}
	if best < threshold {
		return 0
	}
	return best
}
