package provider

import (
	"context"
	"testing"

	"fitplanner"
	"fitplanner/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     fitplanner.ModelConfig
		wantErr bool
	}{
		{name: "mock", cfg: fitplanner.ModelConfig{Provider: "mock"}},
		{name: "ollama", cfg: fitplanner.ModelConfig{Provider: "ollama", ModelID: "llama3.1", OllamaEndpoint: "http://localhost:11434"}},
		{name: "openai", cfg: fitplanner.ModelConfig{Provider: "OpenAI", OpenAIAPIKey: "k"}},
		{name: "ollama without model", cfg: fitplanner.ModelConfig{Provider: "ollama"}, wantErr: true},
		{name: "openai without key", cfg: fitplanner.ModelConfig{Provider: "openai"}, wantErr: true},
		{name: "gemini without key", cfg: fitplanner.ModelConfig{Provider: "gemini"}, wantErr: true},
		{name: "unknown", cfg: fitplanner.ModelConfig{Provider: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, closeFn, err := New(context.Background(), tt.cfg, fitplanner.PipelineConfig{})
			require.NotNil(t, closeFn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &model.Limited{}, c)
			assert.NoError(t, closeFn())
		})
	}
}

func TestNew_MockRoundTrip(t *testing.T) {
	c, _, err := New(context.Background(), fitplanner.ModelConfig{Provider: Mock}, fitplanner.PipelineConfig{RatePerSecond: 100, Burst: 10})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "Create a 7-day meal plan", true)
	require.NoError(t, err)
	assert.Contains(t, out, "week_plan")
}
