// Package macros estimates the protein, carbohydrate and fat grams of a logged
// food with a language model, falling back to a fixed calorie split.
package macros

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/model"
	"fitplanner/pipeline"
)

//go:embed prompts/estimate.tmpl
var estimatePrompt string

var promptTmpl = template.Must(template.New("estimate").Parse(estimatePrompt))

func gramsSchema() *jsonschema.Schema {
	zero := 0.0
	return &jsonschema.Schema{Type: "number", Minimum: &zero}
}

var resolvedSchema = func() *jsonschema.Resolved {
	s := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"protein", "carbs", "fats"},
		Properties: map[string]*jsonschema.Schema{
			"protein": gramsSchema(),
			"carbs":   gramsSchema(),
			"fats":    gramsSchema(),
		},
	}
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("macros: resolve schema: %v", err))
	}
	return r
}()

// Estimator asks the model for a macro split. Pass it the same client the
// pipeline uses so both share one rate limit.
type Estimator struct {
	client model.Client
	tracer trace.Tracer
}

func NewEstimator(client model.Client) *Estimator {
	return &Estimator{client: client, tracer: otel.Tracer(fitplanner.TracerNameMacros)}
}

// Estimate never fails: any provider, parse or validation error is logged and
// answered with fitness.FallbackMacros.
func (e *Estimator) Estimate(ctx context.Context, description string, calories float64) fitness.Macros {
	ctx, span := e.tracer.Start(ctx, "Estimator.Estimate", trace.WithAttributes(
		attribute.Float64("food.calories", calories),
	))
	defer span.End()

	m, err := e.estimate(ctx, description, calories)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fallback")
		slog.Warn("MACROS: Estimate failed, using fallback split", "description", description, "error", err)
		return fitness.FallbackMacros(calories)
	}
	span.SetStatus(codes.Ok, "estimated")
	slog.Info("MACROS: Estimated", "description", description, "protein", m.Protein, "carbs", m.Carbs, "fats", m.Fats)
	return m
}

func (e *Estimator) estimate(ctx context.Context, description string, calories float64) (fitness.Macros, error) {
	var b strings.Builder
	if err := promptTmpl.Execute(&b, struct {
		Description string
		Calories    float64
	}{description, calories}); err != nil {
		return fitness.Macros{}, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := e.client.Generate(ctx, b.String(), true)
	if err != nil {
		return fitness.Macros{}, err
	}
	return Parse(raw)
}

// Parse extracts and validates a {"protein","carbs","fats"} object from raw model text.
func Parse(raw string) (fitness.Macros, error) {
	obj, err := pipeline.ExtractObject(raw)
	if err != nil {
		return fitness.Macros{}, fmt.Errorf("no JSON object in output: %w", err)
	}
	var instance any
	if err := json.Unmarshal([]byte(obj), &instance); err != nil {
		return fitness.Macros{}, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := resolvedSchema.Validate(instance); err != nil {
		return fitness.Macros{}, fmt.Errorf("schema violation: %w", err)
	}
	var m fitness.Macros
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return fitness.Macros{}, fmt.Errorf("invalid data: %w", err)
	}
	return m, nil
}
