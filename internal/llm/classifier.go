package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/service"
)

const jsonOnlySystem = "You are a tax preparation assistant classifying financial transactions. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, " +
	"markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }."

// Classifier exposes the three pipeline passes over an inference provider,
// applying the shared rate limiter, per-call timeout, and bounded retries.
type Classifier struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
	callTimeout time.Duration
}

// Config holds configuration for the inference classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	CallTimeout time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// NewClassifier creates an inference classifier for the configured provider.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	callTimeout := cfg.CallTimeout
	if callTimeout == 0 {
		callTimeout = 45 * time.Second
	}

	return &Classifier{
		client:      client,
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		callTimeout: callTimeout,
	}, nil
}

// NewClassifierWithClient wires a classifier around an existing client.
// Tests use this with a mock provider.
func NewClassifierWithClient(client Client, logger *slog.Logger) *Classifier {
	return &Classifier{
		client:      client,
		logger:      logger,
		rateLimiter: newRateLimiter(0),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
		callTimeout: 45 * time.Second,
	}
}

// complete runs one rate-limited, retried, timed-out call. parse validates
// the raw output; a schema violation counts as a retryable failure because
// models frequently self-correct on a second attempt.
func (c *Classifier) complete(ctx context.Context, prompt string, parse func(string) error) error {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		content, err := c.client.Complete(callCtx, jsonOnlySystem, prompt)
		if err != nil {
			c.logger.Warn("inference attempt failed", "error", err)
			return &common.RetryableError{Err: err, Retryable: true}
		}

		if err := parse(content); err != nil {
			c.logger.Warn("inference response rejected", "error", err)
			return &common.RetryableError{Err: err, Retryable: true}
		}
		return nil
	}, c.retryOpts)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInferenceFailed, err)
	}
	return nil
}

// IdentifyPayee runs the Pass 1 inference call.
func (c *Classifier) IdentifyPayee(ctx context.Context, req PayeeRequest) (PayeeResponse, error) {
	var resp PayeeResponse

	err := c.complete(ctx, buildPayeePrompt(req), func(content string) error {
		parsed, parseErr := parsePayeeResponse(content)
		if parseErr != nil {
			return parseErr
		}
		resp = parsed
		return nil
	})
	if err != nil {
		return PayeeResponse{}, fmt.Errorf("payee identification failed: %w", err)
	}

	c.logger.Debug("payee identified",
		"payee", resp.Payee,
		"confidence", resp.Confidence,
		"ambiguous", resp.Ambiguous)

	return resp, nil
}

// AssignCategory runs the Pass 2 inference call.
func (c *Classifier) AssignCategory(ctx context.Context, req CategoryRequest) (CategoryResponse, error) {
	var resp CategoryResponse

	err := c.complete(ctx, buildCategoryPrompt(req), func(content string) error {
		parsed, parseErr := parseCategoryResponse(content)
		if parseErr != nil {
			return parseErr
		}
		resp = parsed
		return nil
	})
	if err != nil {
		return CategoryResponse{}, fmt.Errorf("category assignment failed: %w", err)
	}

	c.logger.Debug("category assigned",
		"category", resp.GeneralCategory,
		"confidence", resp.Confidence)

	return resp, nil
}

// ClassifyTax runs the Pass 3 inference call.
func (c *Classifier) ClassifyTax(ctx context.Context, req TaxRequest) (TaxResponse, error) {
	var resp TaxResponse

	err := c.complete(ctx, buildTaxPrompt(req), func(content string) error {
		parsed, parseErr := parseTaxResponse(content)
		if parseErr != nil {
			return parseErr
		}
		resp = parsed
		return nil
	})
	if err != nil {
		return TaxResponse{}, fmt.Errorf("tax classification failed: %w", err)
	}

	c.logger.Debug("tax classification produced",
		"tax_category", resp.TaxCategory,
		"worksheet", resp.Worksheet,
		"business_percentage", resp.BusinessPercentage)

	return resp, nil
}

// Close stops background goroutines and cleans up resources.
func (c *Classifier) Close() error {
	if c.rateLimiter != nil {
		c.rateLimiter.Close()
	}
	return nil
}
