package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fitplanner"
	"fitplanner/model"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultCostPerSecond is the rough provider cost estimate per second of pipeline time.
	DefaultCostPerSecond = 0.002
	// DefaultFoodContextWindow is how many recent food entries the meal plan prompt mentions.
	DefaultFoodContextWindow = 10
)

// Orchestrator runs the four stages strictly in order and always returns a Bundle.
// It holds no per-run state, so one Orchestrator serves concurrent runs.
type Orchestrator struct {
	stages        []Stage
	runners       map[StageName]StageRunner
	logger        fitplanner.StageLogger
	tracer        trace.Tracer
	meter         metric.Meter
	costPerSecond float64
	foodWindow    int
	now           func() time.Time

	runsCounter    metric.Int64Counter
	failedCounter  metric.Int64Counter
	stageDuration  metric.Float64Histogram
	pipelineLength metric.Float64Histogram
}

type Option func(*Orchestrator)

// WithRunner replaces the runner for one stage.
func WithRunner(name StageName, r StageRunner) Option {
	return func(o *Orchestrator) { o.runners[name] = r }
}

func WithStageLogger(l fitplanner.StageLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithMeter(m metric.Meter) Option {
	return func(o *Orchestrator) { o.meter = m }
}

func WithCostPerSecond(c float64) Option {
	return func(o *Orchestrator) { o.costPerSecond = c }
}

func WithFoodContextWindow(n int) Option {
	return func(o *Orchestrator) { o.foodWindow = n }
}

func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator builds an orchestrator whose stages call client unless replaced with WithRunner.
func NewOrchestrator(client model.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages:        Stages(),
		runners:       make(map[StageName]StageRunner, len(Stages())),
		logger:        fitplanner.NewNoOpStageLogger(),
		tracer:        otel.Tracer(fitplanner.TracerNamePipeline),
		meter:         otel.Meter(fitplanner.TracerNamePipeline),
		costPerSecond: DefaultCostPerSecond,
		foodWindow:    DefaultFoodContextWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	for _, s := range o.stages {
		if _, ok := o.runners[s.Name]; !ok {
			o.runners[s.Name] = NewAgent(s, client, o.foodWindow)
		}
	}

	o.runsCounter, _ = o.meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Total number of meal plan pipeline runs started"))
	o.failedCounter, _ = o.meter.Int64Counter("pipeline_runs_failed_total",
		metric.WithDescription("Total number of meal plan pipeline runs that ended Failed"))
	o.stageDuration, _ = o.meter.Float64Histogram("pipeline_stage_duration_seconds",
		metric.WithDescription("Duration of individual pipeline stages in seconds"))
	o.pipelineLength, _ = o.meter.Float64Histogram("pipeline_duration_seconds",
		metric.WithDescription("Total duration of a pipeline run in seconds"))

	return o
}

// Run drives the state machine to Complete or Failed. It never returns an error:
// failures are reported in the Bundle alongside the results collected before them.
func (o *Orchestrator) Run(ctx context.Context, profile fitplanner.UserProfile) Bundle {
	runID := uuid.NewString()
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run", trace.WithAttributes(
		attribute.String("pipeline.run_id", runID),
		attribute.String("user.goal", string(profile.Goal)),
		attribute.Int("user.target_calories", profile.TargetCalories),
	))
	defer span.End()

	o.runsCounter.Add(ctx, 1)
	slog.Info("PIPELINE: Starting run", "run_id", runID, "goal", profile.Goal, "budget", profile.WeeklyBudget)

	start := o.now()
	b := Bundle{RunID: runID, State: StateIdle}

	for !b.State.Terminal() {
		idx, ok := b.State.stageIndex()
		if !ok {
			b.State = b.State.next()
			continue
		}

		stage := o.stages[idx]
		if err := o.runStage(ctx, runID, stage, profile, &b); err != nil {
			b.State = StateFailed
			b.FailedStage = stage.Name
			b.Err = fmt.Errorf("%s stage failed: %w", stage.Name, err)
			break
		}
		b.State = b.State.next()
	}

	elapsed := o.now().Sub(start).Seconds()
	b.ExecutionTime = elapsed
	o.pipelineLength.Record(ctx, elapsed, metric.WithAttributes(attribute.String("outcome", b.State.String())))

	if b.State == StateFailed {
		o.failedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(b.FailedStage))))
		span.SetStatus(codes.Error, "pipeline failed")
		span.RecordError(b.Err)
		slog.Error("PIPELINE: Run failed",
			"run_id", runID,
			"stage", b.FailedStage,
			"collected", b.Results.Collected(),
			"elapsed", elapsed,
			"error", b.Err,
		)
		return b
	}

	b.Metrics = &ExecutionMetrics{
		TotalTimeSeconds: elapsed,
		AgentCalls:       AgentCalls,
		EstimatedCost:    elapsed * o.costPerSecond,
	}
	span.SetStatus(codes.Ok, "complete")
	slog.Info("PIPELINE: Run complete", "run_id", runID, "elapsed", elapsed, "estimated_cost", b.Metrics.EstimatedCost)
	return b
}

func (o *Orchestrator) runStage(ctx context.Context, runID string, stage Stage, profile fitplanner.UserProfile, b *Bundle) error {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Stage."+string(stage.Name), trace.WithAttributes(
		attribute.Int("stage.position", stage.Position),
	))
	defer span.End()

	entry := fitplanner.StageLog{RunID: runID, Stage: string(stage.Name), Position: stage.Position, Timestamp: o.now()}
	err := o.execute(ctx, stage, profile, b, &entry)
	entry.Duration = o.now().Sub(entry.Timestamp)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		entry.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage failed")
	}
	o.stageDuration.Record(ctx, entry.Duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", string(stage.Name)),
		attribute.String("outcome", outcome),
	))
	if lerr := o.logger.LogStage(entry); lerr != nil {
		slog.Warn("PIPELINE: Failed to log stage", "stage", stage.Name, "error", lerr)
	}

	slog.Info("PIPELINE: Stage finished", "run_id", runID, "stage", stage.Name, "outcome", outcome, "duration", entry.Duration)
	return err
}

func (o *Orchestrator) execute(ctx context.Context, stage Stage, profile fitplanner.UserProfile, b *Bundle, entry *fitplanner.StageLog) error {
	if err := ctx.Err(); err != nil {
		return model.Classify("pipeline", err)
	}
	if stage.Position == 1 {
		if err := profile.Validate(); err != nil {
			return fmt.Errorf("invalid profile: %w", err)
		}
	}
	if dep, missing := stage.Missing(b.Results); missing {
		return &DependencyMissingError{Stage: stage.Name, Missing: dep}
	}

	out, err := o.runners[stage.Name].Run(ctx, StageInput{Profile: profile, Results: b.Results})
	entry.Prompt = out.Prompt
	entry.Output = out.Raw
	if err != nil {
		return err
	}
	if !out.Results.Has(stage.Name) {
		return &ParseError{Stage: stage.Name, Reason: "stage produced no result"}
	}

	b.Results = b.Results.adopt(stage.Name, out.Results)
	return nil
}
