package fitplanner

import "time"

// ModelConfig selects and tunes the language-model provider used by every stage.
type ModelConfig struct {
	Provider       string        `env:"MODEL_PROVIDER,default=bedrock"`
	ModelID        string        `env:"MODEL_ID"`
	MaxTokens      int32         `env:"MAX_TOKENS,default=4096"`
	Temperature    float32       `env:"TEMPERATURE,default=0.2"`
	TopP           float32       `env:"TOP_P,default=0.9"`
	Timeout        time.Duration `env:"MODEL_TIMEOUT,default=90s"`
	OllamaEndpoint string        `env:"OLLAMA_ENDPOINT,default=http://localhost:11434"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL,default=https://api.openai.com/v1"`
}

type PipelineConfig struct {
	CostPerSecond     float64 `env:"PIPELINE_COST_PER_SECOND,default=0.002"`
	RatePerSecond     float64 `env:"PROVIDER_RATE_PER_SECOND,default=2"`
	Burst             int     `env:"PROVIDER_BURST,default=2"`
	MaxConcurrent     int64   `env:"PROVIDER_MAX_CONCURRENT,default=4"`
	FoodHistoryLimit  int     `env:"FOOD_HISTORY_LIMIT,default=20"`
	FoodContextWindow int     `env:"FOOD_CONTEXT_WINDOW,default=10"`
	DefaultBudget     float64 `env:"DEFAULT_BUDGET,default=100"`
}

type StoreConfig struct {
	// DatabasePath is resolved under /tmp by the Lambda entry point.
	DatabasePath    string `env:"DATABASE_PATH,default=fitness.db"`
	ArchiveS3Bucket string `env:"ARCHIVE_S3_BUCKET"`
	ArchiveS3Prefix string `env:"ARCHIVE_S3_PREFIX,default=meal-plans"`
	// ArchiveDir enables local plan archives when no bucket is configured.
	ArchiveDir string `env:"ARCHIVE_DIR"`
}

type NotifyConfig struct {
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL,default=#meal-plans"`
}
