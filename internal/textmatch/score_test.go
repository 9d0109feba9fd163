package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLongestCommonRun(t *testing.T) {
	testCases := []struct {
		name string
		a    string
		b    string
		want string
	}{
		{name: "identical strings", a: "espresso", b: "espresso", want: "espresso"},
		{name: "prefix run", a: "espresso bio", b: "espresso", want: "espresso"},
		{name: "run in the middle", a: "xkoffiey", b: "akoffieb", want: "koffie"},
		{name: "no overlap", a: "abc", b: "xyz", want: ""},
		{name: "empty left", a: "", b: "espresso", want: ""},
		{name: "empty right", a: "espresso", b: "", want: ""},
		{name: "contiguity beats scattered matches", a: "a1b2c3", b: "abc123", want: "a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := LongestCommonRun(tc.a, tc.b)
			assert.Len(t, got, len(tc.want))
		})
	}
}

func TestScore(t *testing.T) {
	testCases := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "espresso", b: "espresso", want: 1.0},
		{name: "term contained in longer description", a: "espresso graindor", b: "espresso", want: 1.0},
		{name: "half overlap", a: "soja", b: "sopp", want: 0.5},
		{name: "no overlap", a: "abc", b: "xyz", want: 0.0},
		{name: "both empty", a: "", b: "", want: 0.0},
		{name: "one empty", a: "espresso", b: "", want: 0.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.a, tc.b), 1e-9)
		})
	}
}

func TestScoreSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"espresso bio", "espresso"},
		{"bananen chiquita", "bananen"},
		{"raclette", "maandverband"},
		{"", "koffie"},
	}
	for _, p := range pairs {
		assert.InDelta(t, Score(p[0], p[1]), Score(p[1], p[0]), 1e-9,
			"score(%q,%q) should be symmetric", p[0], p[1])
	}
}

func TestScoreRange(t *testing.T) {
	pairs := [][2]string{
		{"a", "a"},
		{"espresso", "expresso"},
		{"sojadrank", "soja"},
		{"x", ""},
	}
	for _, p := range pairs {
		s := Score(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestBestOption(t *testing.T) {
	options := []string{"Anti Hangriness Sofieke", "Blijdeberg"}

	idx, score := BestOption("blijde", options)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 1.0, score, 1e-9)

	idx, score = BestOption("sofieke", options)
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 1.0, score, 1e-9)

	idx, _ = BestOption("anything", nil)
	assert.Equal(t, -1, idx)
}
