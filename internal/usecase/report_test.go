package usecase_test

import (
	"testing"

	"adlens/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessDelimiter(t *testing.T) {
	assert.Equal(t, "\t", usecase.GuessDelimiter("a\tb;c"))
	assert.Equal(t, ";", usecase.GuessDelimiter("a;b,c"))
	assert.Equal(t, ",", usecase.GuessDelimiter("a,b"))
	assert.Equal(t, ",", usecase.GuessDelimiter("plain"))
}

func TestParseDelimitedHeaderDetection(t *testing.T) {
	raw := "Date\tCampaignId\tClicks\n2024-06-01\t123456\t5\n2024-06-02\t123456\t7\n"

	rows, columns := usecase.ParseDelimited(raw, "\t", nil, 0)

	require.Equal(t, []string{"Date", "CampaignId", "Clicks"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-06-01", rows[0]["Date"])
	assert.Equal(t, "7", rows[1]["Clicks"])
}

func TestParseDelimitedSynthesizesColumns(t *testing.T) {
	// first line is data, not a header: all fields read as numbers
	raw := "2024.06.01\t123456\t5\n2024.06.02\t123456\t7\n"

	rows, columns := usecase.ParseDelimited(raw, "\t", nil, 0)

	require.Equal(t, []string{"col_0", "col_1", "col_2"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "123456", rows[0]["col_1"])
}

func TestParseDelimitedEmptyFieldDisqualifiesHeader(t *testing.T) {
	// an empty field in the first line means it is data, not a header
	raw := "2024-06-01\t\tlanding\n2024-06-02\tpromo\tother\n"

	rows, columns := usecase.ParseDelimited(raw, "\t", nil, 0)

	require.Equal(t, []string{"col_0", "col_1", "col_2"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0]["col_1"])
	assert.Equal(t, "promo", rows[1]["col_1"])
}

func TestParseDelimitedSkipsTotalsRows(t *testing.T) {
	raw := "Date\tClicks\n2024-06-01\t5\nTotal\t5\nИтого\t5\nВсего строк\t5\n"

	rows, _ := usecase.ParseDelimited(raw, "\t", nil, 0)

	require.Len(t, rows, 1)
	assert.Equal(t, "2024-06-01", rows[0]["Date"])
}

func TestParseDelimitedDropsMismatchedRows(t *testing.T) {
	raw := "Date\tClicks\n2024-06-01\t5\nbroken line without tabs\n2024-06-02\t3\textra\n"

	rows, _ := usecase.ParseDelimited(raw, "\t", nil, 0)

	require.Len(t, rows, 1)
}

func TestParseDelimitedExplicitColumnsAndCap(t *testing.T) {
	raw := "2024-06-01\t5\n2024-06-02\t6\n2024-06-03\t7\n"

	rows, columns := usecase.ParseDelimited(raw, "\t", []string{"Date", "Clicks"}, 2)

	assert.Equal(t, []string{"Date", "Clicks"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "6", rows[1]["Clicks"])
}

func TestParseDelimitedEmptyInput(t *testing.T) {
	rows, columns := usecase.ParseDelimited("  \n", "\t", nil, 0)
	assert.Empty(t, rows)
	assert.Empty(t, columns)
}

func TestFloatOrZero(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{"12,5", 12.5},
		{"1 234,5", 1234.5},
		{"1 234", 1234},
		{"", 0},
		{"n/a", 0},
		{"  42  ", 42},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, usecase.FloatOrZero(tc.in), "input %q", tc.in)
	}
}
