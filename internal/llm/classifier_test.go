package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

const validPayeeJSON = `{
	"payee": "Shell",
	"business_description": "Fuel station chain",
	"category_hint": "Car & Truck Expenses",
	"confidence": "high",
	"ambiguous": false
}`

// scriptedClient replays canned completions in order, repeating the last one.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
}

func (c *scriptedClient) Complete(_ context.Context, _, _ string) (string, error) {
	i := c.calls
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	c.calls++
	if c.errs != nil && c.errs[i] != nil {
		return "", c.errs[i]
	}
	return c.replies[i], nil
}

func newTestClassifier(t *testing.T, client Client) *Classifier {
	t.Helper()
	c := NewClassifierWithClient(client, slog.Default())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func payeeReq() PayeeRequest {
	return PayeeRequest{
		Profile:     model.ClientProfile{ID: "acme", Name: "Acme Repair"},
		Description: "SHELL OIL 5521",
		Amount:      -40.00,
	}
}

func TestIdentifyPayee(t *testing.T) {
	client := &scriptedClient{replies: []string{validPayeeJSON}}
	c := newTestClassifier(t, client)

	resp, err := c.IdentifyPayee(context.Background(), payeeReq())
	require.NoError(t, err)
	assert.Equal(t, "Shell", resp.Payee)
	assert.Equal(t, "high", resp.Confidence)
	assert.Equal(t, 1, client.calls)
}

func TestIdentifyPayee_RetriesSchemaViolation(t *testing.T) {
	client := &scriptedClient{replies: []string{"I think the payee is Shell.", validPayeeJSON}}
	c := newTestClassifier(t, client)

	resp, err := c.IdentifyPayee(context.Background(), payeeReq())
	require.NoError(t, err)
	assert.Equal(t, "Shell", resp.Payee)
	assert.Equal(t, 2, client.calls)
}

func TestIdentifyPayee_ExhaustedRetries(t *testing.T) {
	client := &scriptedClient{replies: []string{"not json"}}
	c := newTestClassifier(t, client)

	_, err := c.IdentifyPayee(context.Background(), payeeReq())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInferenceFailed))
	assert.True(t, errors.Is(err, common.ErrMaxRetries))
	assert.Equal(t, 3, client.calls)
}

func TestIdentifyPayee_TransientProviderError(t *testing.T) {
	client := &scriptedClient{
		replies: []string{"", validPayeeJSON},
		errs:    []error{errors.New("upstream 503"), nil},
	}
	c := newTestClassifier(t, client)

	resp, err := c.IdentifyPayee(context.Background(), payeeReq())
	require.NoError(t, err)
	assert.Equal(t, "Shell", resp.Payee)
	assert.Equal(t, 2, client.calls)
}
