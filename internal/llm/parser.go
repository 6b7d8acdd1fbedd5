package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

// extractJSON trims any chatter the model wrapped around the JSON object.
// Providers are instructed to answer with bare JSON but occasionally add
// markdown fences anyway.
func extractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in response", common.ErrSchemaViolation)
	}
	return content[start : end+1], nil
}

// decodeStrict decodes JSON into v, rejecting unknown fields.
func decodeStrict(data string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSchemaViolation, err)
	}
	return nil
}

// parsePayeeResponse validates a Pass 1 response against its schema.
func parsePayeeResponse(content string) (PayeeResponse, error) {
	var resp PayeeResponse

	data, err := extractJSON(content)
	if err != nil {
		return resp, err
	}
	if err := decodeStrict(data, &resp); err != nil {
		return resp, err
	}

	if resp.Payee == "" {
		return resp, fmt.Errorf("%w: missing payee", common.ErrSchemaViolation)
	}
	if !model.Confidence(resp.Confidence).Valid() {
		return resp, fmt.Errorf("%w: confidence %q", common.ErrSchemaViolation, resp.Confidence)
	}
	return resp, nil
}

// parseCategoryResponse validates a Pass 2 response against its schema.
func parseCategoryResponse(content string) (CategoryResponse, error) {
	var resp CategoryResponse

	data, err := extractJSON(content)
	if err != nil {
		return resp, err
	}
	if err := decodeStrict(data, &resp); err != nil {
		return resp, err
	}

	if resp.GeneralCategory == "" {
		return resp, fmt.Errorf("%w: missing general_category", common.ErrSchemaViolation)
	}
	if !model.Confidence(resp.Confidence).Valid() {
		return resp, fmt.Errorf("%w: confidence %q", common.ErrSchemaViolation, resp.Confidence)
	}
	return resp, nil
}

// parseTaxResponse validates a Pass 3 response against its schema.
func parseTaxResponse(content string) (TaxResponse, error) {
	var resp TaxResponse

	data, err := extractJSON(content)
	if err != nil {
		return resp, err
	}
	if err := decodeStrict(data, &resp); err != nil {
		return resp, err
	}

	if resp.TaxCategory == "" {
		return resp, fmt.Errorf("%w: missing tax_category", common.ErrSchemaViolation)
	}
	if !model.Worksheet(resp.Worksheet).Valid() {
		return resp, fmt.Errorf("%w: worksheet %q", common.ErrSchemaViolation, resp.Worksheet)
	}
	if !model.Confidence(resp.Confidence).Valid() {
		return resp, fmt.Errorf("%w: confidence %q", common.ErrSchemaViolation, resp.Confidence)
	}
	if resp.BusinessPercentage < 0 || resp.BusinessPercentage > 100 {
		return resp, fmt.Errorf("%w: business_percentage %d", common.ErrSchemaViolation, resp.BusinessPercentage)
	}
	return resp, nil
}
