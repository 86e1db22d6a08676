package detector

import (
	"strings"

	"github.com/isyncso/apidiag/internal/types"
)

// Similarity tunables. The values are empirically chosen and pinned by
// the test suite; treat them as behavior, not as numbers to improve.
const (
	// endpointCandidateThreshold is the minimum similarity score for
	// proposing a spec endpoint as the likely successor of a missing one.
	endpointCandidateThreshold = 0.5

	// fieldSimilarityThreshold is the minimum edit-distance similarity
	// for suggesting a field rename.
	fieldSimilarityThreshold = 0.7

	// Component weights of the endpoint similarity score.
	segmentCountWeight = 0.3
	segmentMatchWeight = 0.5
	stringSimWeight    = 0.2
)

// nounMigrations rewards segment pairs that follow known upstream
// renames even though they are lexically distant.
var nounMigrations = map[string]string{
	"contacts":  "prospects",
	"people":    "prospects",
	"companies": "organizations",
}

// endpointSimilarity scores how plausibly candidate is the successor
// of path. Result is in [0, 1].
func endpointSimilarity(path, candidate string) float64 {
	segsA := types.PathSegments(path)
	segsB := types.PathSegments(candidate)

	var score float64
	if len(segsA) == len(segsB) && len(segsA) > 0 {
		score += segmentCountWeight
	}

	longest := len(segsA)
	if len(segsB) > longest {
		longest = len(segsB)
	}
	if longest > 0 {
		matched := 0
		n := len(segsA)
		if len(segsB) < n {
			n = len(segsB)
		}
		for i := 0; i < n; i++ {
			if segsA[i] == segsB[i] || nounMigrations[segsA[i]] == segsB[i] {
				matched++
			}
		}
		score += segmentMatchWeight * float64(matched) / float64(longest)
	}

	score += stringSimWeight * stringSimilarity(types.NormalizePath(path), types.NormalizePath(candidate))
	return score
}

// stringSimilarity is 1 - normalized Levenshtein distance.
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with the two-row optimization.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// fieldSimilar reports whether used plausibly maps to candidate,
// either by edit-distance similarity or by the common pattern of a
// dropped "_url" suffix (linkedin_url → linkedin).
func fieldSimilar(used, candidate string) bool {
	if stringSimilarity(used, candidate) >= fieldSimilarityThreshold {
		return true
	}
	return strings.TrimSuffix(used, "_url") == candidate
}
