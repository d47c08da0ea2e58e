package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fitplanner/model"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerName   = "gemini"
	defaultModelID = "gemini-1.5-flash"
)

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey      string
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Client implements model.Client over the Gemini API. Structured requests go
// to a model configured with an application/json response MIME type.
type Client struct {
	closer     interface{ Close() error }
	structured generator
	text       generator
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	configure := func(m *genai.GenerativeModel) *genai.GenerativeModel {
		if opts.MaxTokens > 0 {
			m.SetMaxOutputTokens(opts.MaxTokens)
		}
		if opts.Temperature > 0 {
			m.SetTemperature(opts.Temperature)
		}
		if opts.TopP > 0 {
			m.SetTopP(opts.TopP)
		}
		return m
	}

	structured := configure(gc.GenerativeModel(opts.ModelID))
	structured.ResponseMIMEType = "application/json"

	return &Client{
		closer:     gc,
		structured: structured,
		text:       configure(gc.GenerativeModel(opts.ModelID)),
	}, nil
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	slog.Info("MODEL: Gemini invoked", "prompt_len", len(prompt), "structured", structured)

	g := c.text
	if structured {
		g = c.structured
	}

	resp, err := g.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.Error("MODEL: Gemini generate failed", "error", err)
		return "", classify(err)
	}

	if resp.UsageMetadata != nil {
		slog.Info("MODEL: Gemini responded",
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0, errors.New("no content generated"))
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0, errors.New("model hit max output tokens"))
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0, errors.New("generated content is not text"))
	}
	return b.String(), nil
}

func classify(err error) *model.ProviderError {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return model.NewProviderError(providerName, model.CategoryProvider, 0, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return model.NewProviderError(providerName, model.CategoryFromStatus(gerr.Code), gerr.Code, err)
	}

	// apierror.APIError from the REST transport exposes the status this way.
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return model.NewProviderError(providerName, model.CategoryFromStatus(coded.HTTPCode()), coded.HTTPCode(), err)
	}

	return model.Classify(providerName, err)
}
