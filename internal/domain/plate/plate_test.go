package plate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parklinehq/parkline/internal/domain/plate"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aa-1234", "AA1234"},
		{"AA 1234", "AA1234"},
		{"a.b/c 12!34", "ABC1234"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, plate.Normalize(tt.in), "input %q", tt.in)
	}
}

func TestSimilarityIdenticalAfterNormalize(t *testing.T) {
	pairs := [][2]string{
		{"AA1234", "aa-1234"},
		{"dxb 55555", "DXB55555"},
		{"B 1", "b1"},
	}
	for _, p := range pairs {
		require.Equal(t, 1.0, plate.Similarity(p[0], p[1]))
	}
}

func TestSimilarityEmpty(t *testing.T) {
	require.Equal(t, 0.0, plate.Similarity("AA1234", ""))
	require.Equal(t, 0.0, plate.Similarity("", ""))
	require.Equal(t, 0.0, plate.Similarity("", "ZZ99"))
}

func TestSimilarityCommutative(t *testing.T) {
	pairs := [][2]string{
		{"AA1234", "AA1235"},
		{"AA1234", "BAA1234"},
		{"DXB111", "SHJ999"},
		{"A", "AB"},
	}
	for _, p := range pairs {
		require.Equal(t, plate.Similarity(p[0], p[1]), plate.Similarity(p[1], p[0]))
	}
}

func TestSimilarityPositional(t *testing.T) {
	// One substitution in six characters.
	require.InDelta(t, 5.0/6.0, plate.Similarity("AA1234", "AA1235"), 1e-9)

	// A leading insertion shifts every position; only chance alignments count.
	require.Less(t, plate.Similarity("AA1234", "XAA1234"), 0.2)

	// Shorter against longer divides by the longer length.
	require.InDelta(t, 3.0/6.0, plate.Similarity("AA1", "AA1234"), 1e-9)
}

func TestMatchThreshold(t *testing.T) {
	require.True(t, plate.Match("AA-1234", "AA-1235"))
	require.False(t, plate.Match("AA-1234", "ZZ-9999"))
}
