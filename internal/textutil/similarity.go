package textutil

import "golang.org/x/text/cases"

var foldCaser = cases.Fold()

// Ratio computes a similarity score in [0, 1] between two strings using the
// longest-matching-blocks measure (2*M/T): M is the total length of matched
// blocks, T the combined length of both inputs. Comparison is case-folded.
// Two empty strings score 1.
func Ratio(a, b string) float64 {
	ra := []rune(foldCaser.String(a))
	rb := []rune(foldCaser.String(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	matched := matchingTotal(ra, rb)
	return 2 * float64(matched) / float64(total)
}

// matchingTotal sums matched block lengths by recursively splitting around the
// longest common block, mirroring difflib's get_matching_blocks walk.
func matchingTotal(a, b []rune) int {
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingTotal(a[:i], b[:j]) + matchingTotal(a[i+size:], b[j+size:])
}

// longestMatch finds the longest block of runes common to a and b, preferring
// the earliest occurrence in a, then in b.
func longestMatch(a, b []rune) (bestI, bestJ, bestSize int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	// j2len[j] holds the length of the match ending at a[i-1], b[j-1].
	j2len := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int, len(j2len))
		for _, j := range b2j[r] {
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return bestI, bestJ, bestSize
}
