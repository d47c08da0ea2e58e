package fitplanner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// StageLogger records the prompt and raw model output of each pipeline stage.
type StageLogger interface {
	LogStage(entry StageLog) error
}

// NewStageLogFilePath returns a log file path that embeds a cleaned up model name so runs against different models are easy to tell apart.
func NewStageLogFilePath(model string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model)),
	)
}

// StageLog is a single stage execution within a pipeline run.
type StageLog struct {
	RunID     string        `json:"run_id"`
	Stage     string        `json:"stage"`
	Position  int           `json:"position"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`
	Prompt    string        `json:"prompt,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// FileStageLogger accumulates stage entries and writes them as one document on Flush.
type FileStageLogger struct {
	mu      sync.Mutex
	entries []StageLog
	writer  io.Writer
}

func NewFileStageLogger(writer io.Writer) *FileStageLogger {
	return &FileStageLogger{
		entries: make([]StageLog, 0),
		writer:  writer,
	}
}

// LogStage buffers the entry; nothing is written until Flush.
func (l *FileStageLogger) LogStage(entry StageLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *FileStageLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"pipeline_session": map[string]any{
			"timestamp": time.Now(),
			"stages":    l.entries,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stage log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write stage log: %w", err)
	}

	l.entries = l.entries[:0]
	return nil
}

type NoOpStageLogger struct{}

func NewNoOpStageLogger() *NoOpStageLogger {
	return &NoOpStageLogger{}
}

func (NoOpStageLogger) LogStage(StageLog) error {
	return nil
}

// StdoutStageLogger writes each entry as a JSON line (for Lambda/CloudWatch).
type StdoutStageLogger struct {
	out io.Writer
}

func NewStdoutStageLogger() *StdoutStageLogger {
	return &StdoutStageLogger{out: os.Stdout}
}

func (l *StdoutStageLogger) LogStage(entry StageLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
