package pipeline

import (
	"context"
	"log/slog"
	"time"

	"fitplanner"
	"fitplanner/model"
)

// StageInput is what a stage runner receives: the caller's profile and every
// result collected so far.
type StageInput struct {
	Profile fitplanner.UserProfile
	Results Results
}

// StageOutput carries the runner's results plus the exchange with the provider.
// Prompt and Raw are set whenever they were produced, even on failure.
type StageOutput struct {
	Results Results
	Prompt  string
	Raw     string
}

// StageRunner executes one stage.
type StageRunner interface {
	Run(ctx context.Context, in StageInput) (StageOutput, error)
}

// Agent runs a Stage against a model.Client: render, generate, parse.
type Agent struct {
	stage      Stage
	client     model.Client
	foodWindow int
}

func NewAgent(stage Stage, client model.Client, foodWindow int) *Agent {
	return &Agent{stage: stage, client: client, foodWindow: foodWindow}
}

func (a *Agent) Stage() Stage {
	return a.stage
}

func (a *Agent) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	out := StageOutput{Results: in.Results}

	if dep, missing := a.stage.Missing(in.Results); missing {
		return out, &DependencyMissingError{Stage: a.stage.Name, Missing: dep}
	}

	prompt, err := a.stage.Render(in.Profile, in.Results, a.foodWindow)
	if err != nil {
		return out, err
	}
	out.Prompt = prompt

	start := time.Now()
	raw, err := a.client.Generate(ctx, prompt, true)
	if err != nil {
		slog.Warn("AGENT: Provider call failed", "stage", a.stage.Name, "error", err, "elapsed", time.Since(start))
		return out, model.Classify("unknown", err)
	}
	out.Raw = raw

	next := in.Results
	if err := a.stage.Parse(raw, &next); err != nil {
		slog.Warn("AGENT: Output rejected", "stage", a.stage.Name, "error", err, "raw_len", len(raw))
		return out, err
	}

	slog.Info("AGENT: Stage output accepted", "stage", a.stage.Name, "elapsed", time.Since(start), "raw_len", len(raw))
	out.Results = next
	return out, nil
}
