package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEuro(t *testing.T) {
	testCases := []struct {
		text     string
		expected float64
		ok       bool
	}{
		{"€ 524", 524, true},
		{"€ 1.065", 1065, true},
		{"1.065,50", 1065.50, true},
		{"165,50", 165.50, true},
		{"€ 165,-", 165, true},
		{"vanaf € 2.398", 2398, true},
		{"niet beschikbaar", 0, false},
		{"", 0, false},
	}

	for _, test := range testCases {
		value, ok := ParseEuro(test.text)
		require.Equal(t, test.ok, ok, test.text)
		if ok {
			require.InDelta(t, test.expected, value, 0.001, test.text)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "beerzebulten", NormalizeName("  Beerze Bulten\n"))
}
