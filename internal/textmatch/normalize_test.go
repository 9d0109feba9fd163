package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase", input: "Espresso", want: "espresso"},
		{name: "trim and collapse whitespace", input: "  espresso   graindor  ", want: "espresso graindor"},
		{name: "strip diacritics", input: "côte d'or", want: "cote d'or"},
		{name: "drop stop word bio", input: "Espresso Bio", want: "espresso"},
		{name: "drop stop word everyday", input: "everyday koffie", want: "koffie"},
		{name: "drop stop word boni", input: "boni sojadrank", want: "sojadrank"},
		{name: "drop numeric tokens", input: "bananen 6 stuks 1.5", want: "bananen stuks"},
		{name: "keep mixed alphanumerics", input: "cola 1l fles", want: "cola 1l fles"},
		{name: "drop percentage token", input: "korting 10%", want: "korting"},
		{name: "empty input", input: "", want: ""},
		{name: "only noise", input: " Bio 250 ", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Espresso Bio", "côte d'or 2x", "SAN Pellegrino  Clementina"}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once))
	}
}
