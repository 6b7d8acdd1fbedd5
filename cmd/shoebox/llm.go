package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/llm"
)

// createClassifier creates an inference classifier based on configuration.
// Shared by every command that needs inference.
func createClassifier() (*llm.Classifier, error) {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		provider = "openai"
	}

	cfg := llm.Config{
		Provider:    provider,
		Model:       viper.GetString("llm.model"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		CallTimeout: viper.GetDuration("llm.call_timeout"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 60 // requests per minute
	}

	switch provider {
	case "openai":
		apiKey := viper.GetString("llm.openai_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key not found in config or OPENAI_API_KEY environment variable", common.ErrMissingConfig)
		}
		cfg.APIKey = apiKey

	case "anthropic":
		apiKey := viper.GetString("llm.anthropic_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w: anthropic API key not found in config or ANTHROPIC_API_KEY environment variable", common.ErrMissingConfig)
		}
		cfg.APIKey = apiKey

	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", provider)
	}

	classifier, err := llm.NewClassifier(cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create inference classifier: %w", err)
	}

	return classifier, nil
}
