package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"fitplanner/model"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type mockGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	calls int
}

func (m *mockGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.calls++
	return m.resp, m.err
}

func textResponse(reason genai.FinishReason, parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: parts},
			FinishReason: reason,
		}},
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	require.Error(t, err)
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name             string
		resp             *genai.GenerateContentResponse
		err              error
		expected         string
		expectedCategory model.Category
		expectedStatus   int
	}{
		{
			name:     "joins text parts",
			resp:     textResponse(genai.FinishReasonStop, genai.Text(`{"a":`), genai.Text(`1}`)),
			expected: `{"a":1}`,
		},
		{
			name:             "no candidates",
			resp:             &genai.GenerateContentResponse{},
			expectedCategory: model.CategoryProvider,
		},
		{
			name:             "truncated",
			resp:             textResponse(genai.FinishReasonMaxTokens, genai.Text(`{"a":`)),
			expectedCategory: model.CategoryProvider,
		},
		{
			name:             "non text",
			resp:             textResponse(genai.FinishReasonStop, genai.Blob{MIMEType: "image/png"}),
			expectedCategory: model.CategoryProvider,
		},
		{
			name:             "quota",
			err:              &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"},
			expectedCategory: model.CategoryRateLimited,
			expectedStatus:   http.StatusTooManyRequests,
		},
		{
			name:             "bad key",
			err:              &googleapi.Error{Code: http.StatusForbidden, Message: "denied"},
			expectedCategory: model.CategoryAuth,
			expectedStatus:   http.StatusForbidden,
		},
		{
			name:             "canceled",
			err:              context.Canceled,
			expectedCategory: model.CategoryCanceled,
		},
		{
			name:             "transport",
			err:              errors.New("tls handshake"),
			expectedCategory: model.CategoryTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &mockGenerator{resp: tt.resp, err: tt.err}
			c := &Client{structured: g, text: g}

			out, err := c.Generate(context.Background(), "plan", true)
			if tt.expectedCategory != "" {
				var pe *model.ProviderError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.expectedCategory, pe.Category)
				assert.Equal(t, tt.expectedStatus, pe.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestClient_Generate_RoutesByMode(t *testing.T) {
	structured := &mockGenerator{resp: textResponse(genai.FinishReasonStop, genai.Text("{}"))}
	text := &mockGenerator{resp: textResponse(genai.FinishReasonStop, genai.Text("hi"))}
	c := &Client{structured: structured, text: text}

	_, err := c.Generate(context.Background(), "p", true)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p", false)
	require.NoError(t, err)

	assert.Equal(t, 1, structured.calls)
	assert.Equal(t, 1, text.calls)
	assert.NoError(t, c.Close())
}
