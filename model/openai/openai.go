// Package openai talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, Groq, vLLM).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"fitplanner"
	"fitplanner/model"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModelID = "gpt-4o-mini"
)

type ClientOpts struct {
	BaseURL     string
	APIKey      string
	ModelID     string
	MaxTokens   int32
	Temperature float32
	HTTPClient  fitplanner.HTTPClient
}

type Client struct {
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int32
	temp       float32
	httpClient fitplanner.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		endpoint:   strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		apiKey:     opts.APIKey,
		model:      opts.ModelID,
		maxTokens:  opts.MaxTokens,
		temp:       opts.Temperature,
		httpClient: opts.HTTPClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature,omitempty"`
	MaxTokens      int32           `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	slog.Info("MODEL: OpenAI-compatible invoked", "model", c.model, "prompt_len", len(prompt), "structured", structured)

	body := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temp,
		MaxTokens:   c.maxTokens,
	}
	if structured {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", model.NewProviderError(providerName, model.CategoryTransport, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.Classify(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.Classify(providerName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", model.NewProviderError(providerName, model.CategoryFromStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", model.NewProviderError(providerName, model.CategoryProvider, resp.StatusCode,
			fmt.Errorf("failed to decode response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return "", model.NewProviderError(providerName, model.CategoryProvider, resp.StatusCode, errors.New("no content generated"))
	}

	slog.Info("MODEL: OpenAI-compatible responded",
		"finish_reason", cr.Choices[0].FinishReason,
		"input_tokens", cr.Usage.PromptTokens,
		"output_tokens", cr.Usage.CompletionTokens,
	)

	switch cr.Choices[0].FinishReason {
	case "length":
		return "", model.NewProviderError(providerName, model.CategoryProvider, resp.StatusCode, errors.New("model hit max_tokens limit"))
	case "content_filter":
		return "", model.NewProviderError(providerName, model.CategoryProvider, resp.StatusCode, errors.New("response blocked by content filter"))
	}

	return cr.Choices[0].Message.Content, nil
}
