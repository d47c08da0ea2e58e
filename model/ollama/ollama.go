package ollama

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

const providerName = "ollama"

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient fitplanner.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	Temperature  float32
	TopP         float32
	MaxTokens    int32
	HTTPClient   fitplanner.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, errors.New("ollama: model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	o := options{
		Temperature:   0.2,
		TopP:          0.9,
		RepeatPenalty: 1.05,
		NumCtx:        16384,
		NumPredict:    int(opts.MaxTokens),
	}
	if opts.Temperature != 0 {
		o.Temperature = float64(opts.Temperature)
	}
	if opts.TopP != 0 {
		o.TopP = float64(opts.TopP)
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options:    o,
	}, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  options       `json:"options"`
}

type wireResponse struct {
	Message         wireMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Generate posts a single user message to /api/chat. Structured requests set
// format=json so the server constrains decoding to a JSON value.
func (c *Client) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	slog.Info("MODEL: Ollama invoked", "model", c.model, "prompt_len", len(prompt), "structured", structured)

	reqBody := wireRequest{
		Model:    c.model,
		Messages: []wireMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  c.options,
	}
	if structured {
		reqBody.Format = "json"
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", model.NewProviderError(providerName, model.CategoryTransport, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.Classify(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.Classify(providerName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", model.NewProviderError(providerName, model.CategoryFromStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", model.NewProviderError(providerName, model.CategoryProvider, resp.StatusCode,
			fmt.Errorf("decode chat response: %w", err))
	}

	slog.Info("MODEL: Ollama responded",
		"done_reason", wr.DoneReason,
		"prompt_tokens", wr.PromptEvalCount,
		"output_tokens", wr.EvalCount,
	)

	if wr.DoneReason == "length" {
		return "", model.NewProviderError(providerName, model.CategoryProvider, resp.StatusCode,
			errors.New("model hit num_predict limit"))
	}
	if strings.TrimSpace(wr.Message.Content) == "" {
		return "", model.NewProviderError(providerName, model.CategoryProvider, resp.StatusCode, errors.New("empty model response"))
	}

	return wr.Message.Content, nil
}
