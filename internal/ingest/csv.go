// Package ingest parses bank-statement CSV exports into transactions the
// pipeline can classify.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
}

// Result summarizes one CSV parse.
type Result struct {
	Transactions []model.Transaction
	SkippedRows  int
}

// ParseCSV reads statement rows from r and returns well-formed transactions
// tagged with the client and source. The file must carry a header naming at
// least date, description, and amount columns (case-insensitive). Rows that
// fail to parse are skipped with a warning, never a hard stop.
func ParseCSV(r io.Reader, clientID, source string, logger *slog.Logger) (*Result, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dateCol, descCol, amountCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "posted", "transaction date", "posting date":
			if dateCol == -1 {
				dateCol = i
			}
		case "description", "memo", "payee", "details":
			if descCol == -1 {
				descCol = i
			}
		case "amount", "debit/credit", "transaction amount":
			if amountCol == -1 {
				amountCol = i
			}
		}
	}
	if dateCol == -1 || descCol == -1 || amountCol == -1 {
		return nil, fmt.Errorf("CSV header must name date, description, and amount columns, got %v", header)
	}

	result := &Result{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("skipping unreadable CSV row", "line", line, "error", err)
			result.SkippedRows++
			continue
		}

		txn, err := parseRow(record, dateCol, descCol, amountCol, clientID, source)
		if err != nil {
			logger.Warn("skipping malformed CSV row", "line", line, "error", err)
			result.SkippedRows++
			continue
		}

		result.Transactions = append(result.Transactions, txn)
	}

	return result, nil
}

func parseRow(record []string, dateCol, descCol, amountCol int, clientID, source string) (model.Transaction, error) {
	widest := dateCol
	if descCol > widest {
		widest = descCol
	}
	if amountCol > widest {
		widest = amountCol
	}
	if len(record) <= widest {
		return model.Transaction{}, fmt.Errorf("%w: row has %d columns, need %d", common.ErrMalformedInput, len(record), widest+1)
	}

	date, err := parseDate(strings.TrimSpace(record[dateCol]))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: %w", common.ErrMalformedInput, err)
	}

	description := strings.TrimSpace(record[descCol])
	if description == "" {
		return model.Transaction{}, fmt.Errorf("%w: empty description", common.ErrMalformedInput)
	}

	amount, err := parseAmount(strings.TrimSpace(record[amountCol]))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: %w", common.ErrMalformedInput, err)
	}

	txn := model.Transaction{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		Date:        date,
		Description: description,
		Amount:      amount,
		Source:      source,
	}
	txn.Hash = txn.GenerateHash()
	return txn, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAmount handles currency symbols, thousands separators, and
// parenthesized negatives.
func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	if negative {
		amount = -amount
	}
	return amount, nil
}
