// Package common provides shared utilities and types used across the application.
package common

import "errors"

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Pipeline errors.
	ErrMalformedInput  = errors.New("malformed transaction")
	ErrInferenceFailed = errors.New("inference failed")
	ErrSchemaViolation = errors.New("inference response violates schema")
	ErrAmbiguousMatch  = errors.New("ambiguous prior match")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
)
