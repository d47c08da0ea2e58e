package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"fitplanner/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc  func(req *http.Request) (*http.Response, error)
	request *http.Request
	body    []byte
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.request = req
	if req.Body != nil {
		m.body, _ = io.ReadAll(req.Body)
	}
	return m.doFunc(req)
}

func respond(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Body:       io.NopCloser(bytes.NewBufferString(body)),
		}, nil
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434"})
	require.Error(t, err)

	c, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434/", ModelID: "llama3.1", Temperature: 0.5, MaxTokens: 2048})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/api/chat", c.endpoint)
	assert.Equal(t, 0.5, c.options.Temperature)
	assert.Equal(t, 0.9, c.options.TopP)
	assert.Equal(t, 2048, c.options.NumPredict)
	assert.Equal(t, http.DefaultClient, c.httpClient)
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name             string
		doFunc           func(*http.Request) (*http.Response, error)
		expected         string
		expectedCategory model.Category
		expectedStatus   int
	}{
		{
			name:     "success",
			doFunc:   respond(http.StatusOK, `{"message":{"role":"assistant","content":"{\"ok\":true}"},"done_reason":"stop"}`),
			expected: `{"ok":true}`,
		},
		{
			name:             "rate limited",
			doFunc:           respond(http.StatusTooManyRequests, "busy"),
			expectedCategory: model.CategoryRateLimited,
			expectedStatus:   http.StatusTooManyRequests,
		},
		{
			name:             "server error",
			doFunc:           respond(http.StatusInternalServerError, "model not loaded"),
			expectedCategory: model.CategoryProvider,
			expectedStatus:   http.StatusInternalServerError,
		},
		{
			name:             "undecodable body",
			doFunc:           respond(http.StatusOK, "not json"),
			expectedCategory: model.CategoryProvider,
			expectedStatus:   http.StatusOK,
		},
		{
			name:             "truncated",
			doFunc:           respond(http.StatusOK, `{"message":{"content":"{\"week"},"done_reason":"length"}`),
			expectedCategory: model.CategoryProvider,
			expectedStatus:   http.StatusOK,
		},
		{
			name: "transport failure",
			doFunc: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			expectedCategory: model.CategoryTransport,
		},
		{
			name: "deadline",
			doFunc: func(*http.Request) (*http.Response, error) {
				return nil, context.DeadlineExceeded
			},
			expectedCategory: model.CategoryTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &mockHTTPClient{doFunc: tt.doFunc}
			c, err := NewClient(ClientOpts{BaseEndpoint: "http://ollama", ModelID: "llama3.1", HTTPClient: hc})
			require.NoError(t, err)

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

func TestClient_Generate_RequestShape(t *testing.T) {
	hc := &mockHTTPClient{doFunc: respond(http.StatusOK, `{"message":{"content":"hi"}}`)}
	c, err := NewClient(ClientOpts{BaseEndpoint: "http://ollama", ModelID: "llama3.1", HTTPClient: hc})
	require.NoError(t, err)

	for _, structured := range []bool{true, false} {
		_, err := c.Generate(context.Background(), "hello", structured)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, hc.request.Method)
		assert.Equal(t, "http://ollama/api/chat", hc.request.URL.String())

		var req map[string]any
		require.NoError(t, json.Unmarshal(hc.body, &req))
		assert.Equal(t, "llama3.1", req["model"])
		assert.Equal(t, false, req["stream"])
		if structured {
			assert.Equal(t, "json", req["format"])
		} else {
			assert.NotContains(t, req, "format")
		}
	}
}
