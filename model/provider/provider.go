// Package provider builds the configured model.Client.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"fitplanner"
	"fitplanner/model"
	"fitplanner/model/bedrock"
	"fitplanner/model/gemini"
	"fitplanner/model/mock"
	"fitplanner/model/ollama"
	"fitplanner/model/openai"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	Bedrock = "bedrock"
	Ollama  = "ollama"
	Gemini  = "gemini"
	OpenAI  = "openai"
	Mock    = "mock"
)

// New returns the client selected by cfg.Provider, bounded by cfg.Timeout and
// throttled by pc. The returned close func releases provider resources.
func New(ctx context.Context, cfg fitplanner.ModelConfig, pc fitplanner.PipelineConfig) (model.Client, func() error, error) {
	noop := func() error { return nil }

	base, closeFn, err := newBase(ctx, cfg)
	if err != nil {
		return nil, noop, err
	}

	slog.Info("SETUP: Model provider ready", "provider", cfg.Provider, "model", cfg.ModelID)

	limited := model.Limit(model.WithTimeout(base, cfg.Timeout), model.LimitOptions{
		RatePerSecond: pc.RatePerSecond,
		Burst:         pc.Burst,
		MaxConcurrent: pc.MaxConcurrent,
	})
	return limited, closeFn, nil
}

func newBase(ctx context.Context, cfg fitplanner.ModelConfig) (model.Client, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Provider) {
	case Bedrock, "":
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.Options{
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		}), noop, nil

	case Ollama:
		c, err := ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: cfg.OllamaEndpoint,
			ModelID:      cfg.ModelID,
			Temperature:  cfg.Temperature,
			TopP:         cfg.TopP,
			MaxTokens:    cfg.MaxTokens,
			HTTPClient:   http.DefaultClient,
		})
		return c, noop, err

	case Gemini:
		c, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:      cfg.GeminiAPIKey,
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		})
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil

	case OpenAI:
		c, err := openai.NewClient(openai.ClientOpts{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			HTTPClient:  http.DefaultClient,
		})
		return c, noop, err

	case Mock:
		return mock.NewClient(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
