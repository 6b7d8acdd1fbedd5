package ingest

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/shoebox/internal/common"
)

func TestParseCSV(t *testing.T) {
	input := `Date,Description,Amount
2025-03-10,LOWE'S #1636 ALBUQUERQ NM,-149.88
03/12/2025,"NETFLIX.COM","($15.49)"
2025-03-13,ACME FUEL STOP,"-1,204.50"
`
	result, err := ParseCSV(strings.NewReader(input), "acme", "chase-checking", slog.Default())
	require.NoError(t, err)
	require.Len(t, result.Transactions, 3)
	assert.Equal(t, 0, result.SkippedRows)

	first := result.Transactions[0]
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.Hash)
	assert.Equal(t, "acme", first.ClientID)
	assert.Equal(t, "chase-checking", first.Source)
	assert.Equal(t, "LOWE'S #1636 ALBUQUERQ NM", first.Description)
	assert.InDelta(t, -149.88, first.Amount, 0.001)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), first.Date)
	assert.True(t, first.WellFormed())

	assert.InDelta(t, -15.49, result.Transactions[1].Amount, 0.001, "parenthesized amounts are negative")
	assert.InDelta(t, -1204.50, result.Transactions[2].Amount, 0.001, "thousands separators are stripped")
}

func TestParseCSV_HeaderAliases(t *testing.T) {
	input := `Posting Date,Memo,Transaction Amount
01/05/2025,SOME VENDOR,-10.00
`
	result, err := ParseCSV(strings.NewReader(input), "acme", "", slog.Default())
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "SOME VENDOR", result.Transactions[0].Description)
}

func TestParseCSV_SkipsMalformedRows(t *testing.T) {
	input := `date,description,amount
2025-03-10,GOOD VENDOR,-5.00
not-a-date,BAD DATE,-5.00
2025-03-11,,-5.00
2025-03-12,BAD AMOUNT,five dollars
2025-03-13,ANOTHER GOOD VENDOR,-7.50
`
	result, err := ParseCSV(strings.NewReader(input), "acme", "", slog.Default())
	require.NoError(t, err)
	assert.Len(t, result.Transactions, 2)
	assert.Equal(t, 3, result.SkippedRows)
}

func TestParseRow_MalformedRowsWrapSentinel(t *testing.T) {
	cases := map[string][]string{
		"bad date":          {"not-a-date", "VENDOR", "-5.00"},
		"empty description": {"2025-03-10", "", "-5.00"},
		"bad amount":        {"2025-03-10", "VENDOR", "five dollars"},
		"short row":         {"2025-03-10"},
	}
	for name, record := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseRow(record, 0, 1, 2, "acme", "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrMalformedInput))
		})
	}
}

func TestParseCSV_MissingColumnsFails(t *testing.T) {
	input := `foo,bar
1,2
`
	_, err := ParseCSV(strings.NewReader(input), "acme", "", slog.Default())
	require.Error(t, err)
}

func TestParseCSV_RequiresClientID(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,description,amount\n"), "", "", slog.Default())
	require.Error(t, err)
}
