package orient

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositions(t *testing.T) {
	data := `3

0.0  1 2 3
0.5  1.5 2.5 3.5

1.0  2 3 4
`
	records, err := Parse(strings.NewReader(data), false)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Record{T: 0.5, Pos: [3]float64{1.5, 2.5, 3.5}}, records[1])
	assert.Equal(t, [3]float64{}, records[2].Vel)
}

func TestParseWithVelocity(t *testing.T) {
	data := "2\n0 1 2 3 -1 -2 -3\n1 1 2 3 4 5 6e-1\n"
	records, err := Parse(strings.NewReader(data), true)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, [3]float64{4, 5, 0.6}, records[1].Vel)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		hasVelocity bool
	}{
		{"empty", "", false},
		{"bad header", "three\n", false},
		{"header with extra fields", "2 4\n0 0 0 0\n1 0 0 0\n", false},
		{"too few samples", "1\n0 0 0 0\n", false},
		{"short row", "2\n0 0 0 0\n1 0 0\n", false},
		{"missing velocity", "2\n0 0 0 0\n1 0 0 0\n", true},
		{"unexpected velocity", "2\n0 0 0 0 1 1 1\n1 0 0 0 1 1 1\n", false},
		{"bad number", "2\n0 0 0 0\n1 0 x 0\n", false},
		{"row count low", "3\n0 0 0 0\n1 0 0 0\n", false},
		{"row count high", "2\n0 0 0 0\n1 0 0 0\n2 0 0 0\n", false},
		{"repeated time", "2\n0 0 0 0\n0 1 1 1\n", false},
		{"decreasing time", "3\n0 0 0 0\n2 0 0 0\n1 0 0 0\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data), tt.hasVelocity)
			assert.True(t, errors.Is(err, ErrParse), "err = %v", err)
		})
	}
}

func TestParseOversizedSampleCount(t *testing.T) {
	for _, header := range []string{"900000000000000", "2147483647"} {
		t.Run(header, func(t *testing.T) {
			_, err := Parse(strings.NewReader(header+"\n0 1 2 3\n1 1 2 3\n"), false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "got %v", err)
			assert.Contains(t, err.Error(), "found 2")
		})
	}
}

func TestLoad(t *testing.T) {
	data := "4\n0 10 0 0\n1 20 0 0\n2 30 0 0\n3 40 0 0\n"
	s, err := Load(context.Background(), strings.NewReader(data), Config{}, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 25, s.CenterAt(1.5)[0], 1e-12)
	assert.False(t, s.Inertial())
}
