package evaluator

import (
	"regexp"
	"strings"
)

var reWord = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// textSimilarity blends character-sequence similarity (70%) with word-set
// overlap (30%) over case-folded text. An empty side scores 0.
func textSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	a, b = strings.ToLower(a), strings.ToLower(b)
	return 0.7*sequenceRatio(a, b) + 0.3*wordOverlap(a, b)
}

// sequenceRatio is the classic Ratcliff/Obershelp similarity over runes:
// twice the number of matching characters (found by recursively taking the
// longest common contiguous block) divided by the combined length.
func sequenceRatio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ar, br)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	ai, bi, size := longestBlock(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingRunes(a[:ai], b[:bi]) +
		matchingRunes(a[ai+size:], b[bi+size:])
}

// longestBlock finds the longest contiguous run common to a and b, preferring
// the earliest occurrence on ties.
func longestBlock(a, b []rune) (bestA, bestB, bestSize int) {
	runs := make(map[int]int, len(b))
	for i := range a {
		next := make(map[int]int, len(b))
		for j := range b {
			if a[i] != b[j] {
				continue
			}
			k := runs[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA, bestB, bestSize = i-k+1, j-k+1, k
			}
		}
		runs = next
	}
	return bestA, bestB, bestSize
}

// wordOverlap is |A ∩ B| / |A ∪ B| over word tokens; 0 when both sides have
// no tokens.
func wordOverlap(a, b string) float64 {
	aw, bw := reWord.FindAllString(a, -1), reWord.FindAllString(b, -1)
	if len(aw) == 0 && len(bw) == 0 {
		return 0
	}
	set := make(map[string]int, len(aw)+len(bw))
	for _, w := range aw {
		set[w] |= 1
	}
	for _, w := range bw {
		set[w] |= 2
	}
	var inter int
	for _, mask := range set {
		if mask == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}
