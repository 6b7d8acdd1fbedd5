package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single parsed statement row. It is created by the
// ingest layer and never mutated by the classification pipeline.
type Transaction struct {
	Date        time.Time
	ID          string
	ClientID    string
	Description string // Raw statement description
	Source      string // Statement source tag (e.g., "chase-checking")
	Hash        string
	Amount      float64 // Signed; debits are negative
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s",
		t.ClientID,
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// WellFormed reports whether the transaction carries the fields the pipeline
// requires. Malformed rows are skipped, never processed.
func (t *Transaction) WellFormed() bool {
	return t.ID != "" && t.ClientID != "" && !t.Date.IsZero() && t.Description != ""
}
