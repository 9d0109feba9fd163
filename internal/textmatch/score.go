// Package textmatch implements the fuzzy string matching used to assign OCR
// line-item descriptions to curated term lists: a longest-common-substring
// similarity score plus the description normalization that feeds it.
package textmatch

import "strings"

// LongestCommonRun returns the longest contiguous run of characters common to
// a and b. Contiguity matters: "espresso" vs "espresso bio" shares the whole
// first word, while an interleaved subsequence would not count.
func LongestCommonRun(a, b string) string {
	if a == "" || b == "" {
		return ""
	}

	ra := []rune(a)
	rb := []rune(b)

	// Classic O(len(a)*len(b)) dynamic program over run lengths ending at
	// each (i, j); inputs are short item descriptions so this is plenty.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	best, bestEnd := 0, 0
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
					bestEnd = i
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return string(ra[bestEnd-best : bestEnd])
}

// Score computes the similarity ratio between a and b in [0,1]: the length of
// the longest common contiguous run divided by the length of the shorter
// string. Deterministic, case-sensitive; callers normalize inputs first.
func Score(a, b string) float64 {
	run := []rune(LongestCommonRun(a, b))
	shorter := len([]rune(a))
	if lb := len([]rune(b)); lb < shorter {
		shorter = lb
	}
	if shorter < 1 {
		shorter = 1
	}
	return float64(len(run)) / float64(shorter)
}

// BestOption returns the index of the option scoring highest against target
// and that score, used for forgiving selection of group and payer names in
// the chat flow. Inputs are lowercased before scoring. Earlier options win
// ties; returns -1 for an empty option list.
func BestOption(target string, options []string) (int, float64) {
	target = strings.ToLower(strings.TrimSpace(target))

	bestIdx := -1
	bestScore := -1.0
	for i, option := range options {
		score := Score(target, strings.ToLower(strings.TrimSpace(option)))
		if score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	if bestIdx < 0 {
		return -1, 0
	}
	return bestIdx, bestScore
}
