package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReal(t *testing.T) {
	cases := []struct {
		in   string
		want Centavos
	}{
		{"19.90", 1990},
		{"19.9", 1990},
		{"29.90", 2990},
		{"50", 5000},
		{"25.00", 2500},
		{"0.05", 5},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := ParseReal(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseRealRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "19.999", "19.", ".90", "1e2", "19,90"} {
		_, err := ParseReal(in)
		require.Error(t, err, in)
	}
}

func TestReaisAndString(t *testing.T) {
	require.Equal(t, 19.9, Centavos(1990).Reais())
	require.Equal(t, "19.90", Centavos(1990).String())
	require.Equal(t, "0.05", Centavos(5).String())
	require.Equal(t, "-45.10", Centavos(-4510).String())
}
