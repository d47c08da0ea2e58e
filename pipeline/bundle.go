package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AgentCalls is the number of provider calls in a complete run.
const AgentCalls = 4

type ExecutionMetrics struct {
	TotalTimeSeconds float64 `json:"total_time_seconds"`
	AgentCalls       int     `json:"agent_calls"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// Bundle is the result of one pipeline run: Complete with all four results and
// metrics, or Failed with an error and the results collected before the failing stage.
type Bundle struct {
	RunID   string
	State   State
	Results Results

	// Complete only.
	Metrics *ExecutionMetrics

	// Failed only.
	Err           error
	FailedStage   StageName
	ExecutionTime float64
}

func (b *Bundle) Complete() bool {
	return b.State == StateComplete
}

func (b *Bundle) Failed() bool {
	return b.State == StateFailed
}

// ErrorMessage is the failure description, empty for complete bundles.
func (b *Bundle) ErrorMessage() string {
	if b.Err == nil {
		return ""
	}
	return b.Err.Error()
}

type completeJSON struct {
	Results
	ExecutionMetrics *ExecutionMetrics `json:"execution_metrics"`
}

type failedJSON struct {
	Error          string  `json:"error"`
	PartialResults Results `json:"partial_results"`
	ExecutionTime  float64 `json:"execution_time"`
}

// MarshalJSON emits the complete or the failed wire shape.
func (b Bundle) MarshalJSON() ([]byte, error) {
	switch b.State {
	case StateComplete:
		return json.Marshal(completeJSON{Results: b.Results, ExecutionMetrics: b.Metrics})
	case StateFailed:
		return json.Marshal(failedJSON{
			Error:          b.ErrorMessage(),
			PartialResults: b.Results,
			ExecutionTime:  b.ExecutionTime,
		})
	default:
		return nil, fmt.Errorf("bundle in non-terminal state %s", b.State)
	}
}

// UnmarshalJSON reads either wire shape; the presence of "error" selects Failed.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if _, failed := probe["error"]; failed {
		var f failedJSON
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*b = Bundle{
			State:         StateFailed,
			Results:       f.PartialResults,
			Err:           errors.New(f.Error),
			ExecutionTime: f.ExecutionTime,
		}
		return nil
	}

	var c completeJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	if !c.Results.Complete() {
		return errors.New("bundle has neither an error nor all four stage results")
	}
	*b = Bundle{
		State:   StateComplete,
		Results: c.Results,
		Metrics: c.ExecutionMetrics,
	}
	if c.ExecutionMetrics != nil {
		b.ExecutionTime = c.ExecutionMetrics.TotalTimeSeconds
	}
	return nil
}
