package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundingMode_Divide(t *testing.T) {
	tests := []struct {
		name     string
		mode     RoundingMode
		num, den int64
		want     int64
	}{
		{"exact", RoundHalfUp, 1500, 3, 500},
		{"below half", RoundHalfUp, 14, 10, 1},
		{"above half", RoundHalfUp, 16, 10, 2},
		{"half up positive", RoundHalfUp, 25, 10, 3},
		{"half up negative rounds toward zero", RoundHalfUp, -25, 10, -2},
		{"negative above half", RoundHalfUp, -26, 10, -3},
		{"half even down", RoundHalfEven, 25, 10, 2},
		{"half even up", RoundHalfEven, 35, 10, 4},
		{"half even negative", RoundHalfEven, -25, 10, -2},
		{"zero", RoundHalfUp, 0, 7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.Divide(tt.num, tt.den))
		})
	}
}

func TestRoundingMode_DividePanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { RoundHalfUp.Divide(1, 0) })
}

func TestParseRoundingMode(t *testing.T) {
	m, err := ParseRoundingMode("")
	require.NoError(t, err)
	assert.Equal(t, RoundHalfUp, m)

	m, err = ParseRoundingMode("half_even")
	require.NoError(t, err)
	assert.Equal(t, RoundHalfEven, m)

	_, err = ParseRoundingMode("bankers")
	assert.Error(t, err)
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "15.00 usd", FormatMinor(1500, "usd"))
	assert.Equal(t, "-2.05 eur", FormatMinor(-205, "eur"))
	assert.Equal(t, "0.07 usd", FormatMinor(7, "usd"))
}
