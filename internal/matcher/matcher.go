// Package matcher assigns cleaned invoice items to curated target terms by
// cross-joining items against terms and scoring each pair with the
// longest-common-run similarity ratio.
package matcher

import (
	"sort"

	"kassabot/internal/models"
	"kassabot/internal/textmatch"
)

// DefaultThreshold is the minimum similarity ratio for a pair to count as a
// match; anything below is discarded.
const DefaultThreshold = 0.8

// Matcher scores items against target term lists.
type Matcher struct {
	threshold float64
}

// New creates a Matcher with the given confidence threshold. A non-positive
// threshold falls back to DefaultThreshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Match cross-joins items against targetTerms, scores every pair on the
// normalized descriptions, and keeps for each item only the best-scoring term.
// Items whose best score is below the threshold are discarded, as are items
// whose description appears in claimed (set by earlier passes; this is how
// callers keep buckets mutually exclusive across passes).
//
// Results are sorted by descending similarity, and duplicate descriptions are
// collapsed to the first occurrence after that sort, so the output is
// deterministic for any input order.
func (m *Matcher) Match(items []models.CleanedItem, targetTerms []string, claimed map[string]bool) []models.MatchResult {
	var results []models.MatchResult

	for _, item := range items {
		if claimed[item.Description] {
			continue
		}

		normalizedItem := textmatch.Normalize(item.Description)

		bestTerm := ""
		bestScore := -1.0
		for _, term := range targetTerms {
			score := textmatch.Score(normalizedItem, textmatch.Normalize(term))
			if score > bestScore {
				bestScore = score
				bestTerm = term
			}
		}

		if bestTerm == "" || bestScore < m.threshold {
			continue
		}

		results = append(results, models.MatchResult{
			Item:       item,
			TargetTerm: bestTerm,
			Similarity: bestScore,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	seen := make(map[string]bool, len(results))
	deduped := results[:0]
	for _, r := range results {
		if seen[r.Item.Description] {
			continue
		}
		seen[r.Item.Description] = true
		deduped = append(deduped, r)
	}

	return deduped
}

// Claim records the descriptions of the given results in claimed, so a
// subsequent Match pass will skip them.
func Claim(claimed map[string]bool, results []models.MatchResult) {
	for _, r := range results {
		claimed[r.Item.Description] = true
	}
}
