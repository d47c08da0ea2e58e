package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fitplanner/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

const (
	providerName = "bedrock"

	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// A full week plan with seven days of three meals does not fit in 1k tokens.
	defaultMaxTokens = 4096

	// Low temperature and top_p keep structured outputs consistent.
	defaultTemperature = 0.2
	defaultTopP        = 0.9

	structuredSystemPrompt = "You are a nutrition planning assistant. Respond with exactly one JSON object and nothing else: no markdown, no commentary."
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Options struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Client implements model.Client over the Bedrock Converse API.
type Client struct {
	brc  bedrockRuntimeClient
	opts Options
}

func NewClient(brc bedrockRuntimeClient, opts Options) *Client {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &Client{
		brc:  brc,
		opts: opts,
	}
}

func (c *Client) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	slog.Info("MODEL: Bedrock invoked", "model", c.opts.ModelID, "prompt_len", len(prompt), "structured", structured)

	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.opts.ModelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
	if structured {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: structuredSystemPrompt}}
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("MODEL: Bedrock converse failed", "error", err)
		return "", classify(err)
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens),
		)
	}
	slog.Info("MODEL: Bedrock converse succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("MODEL: Bedrock hit MaxTokens limit")
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0,
			fmt.Errorf("model hit MaxTokens limit (%d); raise MAX_TOKENS", c.opts.MaxTokens))

	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		slog.Warn("MODEL: Bedrock response blocked by safety filters")
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0,
			errors.New("model response blocked by safety filters"))
	}

	text := textFromOutput(out)
	if text == "" {
		return "", model.NewProviderError(providerName, model.CategoryProvider, 0, errors.New("empty model response"))
	}
	return text, nil
}

// textFromOutput prefers the last text block that is a single JSON object,
// otherwise joins all text blocks with newlines.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var texts []string
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}

	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s
		}
	}
	return strings.Join(texts, "\n")
}

func classify(err error) *model.ProviderError {
	if ctxErr := model.Classify(providerName, err); ctxErr.Category == model.CategoryCanceled || ctxErr.Category == model.CategoryTimeout {
		return ctxErr
	}

	status := 0
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		status = re.HTTPStatusCode()
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException":
			return model.NewProviderError(providerName, model.CategoryRateLimited, status, err)
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return model.NewProviderError(providerName, model.CategoryAuth, status, err)
		case "ModelTimeoutException":
			return model.NewProviderError(providerName, model.CategoryTimeout, status, err)
		}
		if status == 0 {
			return model.NewProviderError(providerName, model.CategoryProvider, status, err)
		}
	}

	if status != 0 {
		return model.NewProviderError(providerName, model.CategoryFromStatus(status), status, err)
	}
	return model.NewProviderError(providerName, model.CategoryTransport, 0, err)
}
