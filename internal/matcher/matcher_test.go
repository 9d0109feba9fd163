package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassabot/internal/models"
)

func item(description string, amount float64) models.CleanedItem {
	return models.CleanedItem{
		Description:    description,
		AdjustedAmount: decimal.NewFromFloat(amount),
		Date:           "2025-02-19",
	}
}

func TestMatchExactTermAfterNormalization(t *testing.T) {
	m := New(0.8)

	results := m.Match([]models.CleanedItem{item("Espresso Bio", 4.00)}, []string{"espresso"}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "Espresso Bio", results[0].Item.Description)
	assert.Equal(t, "espresso", results[0].TargetTerm)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestMatchDiscardsBelowThreshold(t *testing.T) {
	m := New(0.8)

	results := m.Match([]models.CleanedItem{item("raclette", 6.50)}, []string{"espresso", "koffie"}, nil)

	assert.Empty(t, results)
}

func TestMatchPicksBestTermPerItem(t *testing.T) {
	m := New(0.8)

	results := m.Match(
		[]models.CleanedItem{item("graindor espresso 250g", 7.20)},
		[]string{"koffie", "graindor"},
		nil,
	)

	require.Len(t, results, 1)
	assert.Equal(t, "graindor", results[0].TargetTerm)
}

func TestMatchSkipsClaimedDescriptions(t *testing.T) {
	m := New(0.8)
	items := []models.CleanedItem{item("espresso", 4.00), item("bananen", 2.10)}

	claimed := map[string]bool{}
	first := m.Match(items, []string{"espresso", "bananen"}, claimed)
	require.Len(t, first, 2)

	Claim(claimed, first)
	second := m.Match(items, []string{"espresso", "bananen"}, claimed)
	assert.Empty(t, second)
}

func TestMatchBucketsAreDisjointAcrossPasses(t *testing.T) {
	m := New(0.8)
	items := []models.CleanedItem{
		item("espresso graindor", 7.20),
		item("bananen chiquita", 2.10),
		item("raclette", 6.50),
		item("toiletpapier", 4.80),
		item("onbekend artikel", 1.00),
	}

	claimed := map[string]bool{}
	var all []models.MatchResult
	for _, terms := range [][]string{
		{"espresso", "koffie", "bananen"},
		{"raclette", "maandverband"},
		{"toiletpapier", "handzeep"},
	} {
		results := m.Match(items, terms, claimed)
		Claim(claimed, results)
		all = append(all, results...)
	}

	seen := map[string]bool{}
	for _, r := range all {
		assert.False(t, seen[r.Item.Description], "item %q matched in two buckets", r.Item.Description)
		seen[r.Item.Description] = true
	}

	// Everything not claimed falls to the rest bucket.
	var rest []models.CleanedItem
	for _, it := range items {
		if !claimed[it.Description] {
			rest = append(rest, it)
		}
	}
	assert.Equal(t, len(items), len(all)+len(rest))
	require.Len(t, rest, 1)
	assert.Equal(t, "onbekend artikel", rest[0].Description)
}

func TestMatchDeduplicatesRepeatedDescriptions(t *testing.T) {
	m := New(0.8)
	items := []models.CleanedItem{
		item("espresso", 4.00),
		item("espresso", 4.00),
	}

	results := m.Match(items, []string{"espresso"}, nil)

	assert.Len(t, results, 1)
}

func TestMatchSortedByDescendingSimilarity(t *testing.T) {
	m := New(0.5)
	items := []models.CleanedItem{
		item("koffers", 5.00),
		item("koffie", 3.00),
	}

	results := m.Match(items, []string{"koffie"}, nil)

	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, "koffie", results[0].Item.Description)
}

func TestMatchEmptyInputs(t *testing.T) {
	m := New(0.8)

	assert.Empty(t, m.Match(nil, []string{"espresso"}, nil))
	assert.Empty(t, m.Match([]models.CleanedItem{item("espresso", 4.00)}, nil, nil))
}
