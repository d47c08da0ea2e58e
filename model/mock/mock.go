// Package mock provides deterministic model clients for tests and offline demos.
package mock

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"fitplanner/model"
)

//go:embed fixtures/*.json
var fixtures embed.FS

// Fixture returns one of the canned outputs: meal_plan, shopping_list,
// health_analysis, budget_optimization or macros.
func Fixture(name string) string {
	b, err := fixtures.ReadFile("fixtures/" + name + ".json")
	if err != nil {
		panic(fmt.Sprintf("mock: unknown fixture %q", name))
	}
	return string(b)
}

// Client answers each stage prompt with a canned, schema-conforming reply
// chosen from the output fields the prompt asks for.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", model.Classify("mock", err)
	}

	// Later stages embed earlier outputs, so match the newest marker first.
	var name string
	switch {
	case strings.Contains(prompt, "macronutrient"):
		name = "macros"
	case strings.Contains(prompt, "optimized_list"):
		name = "budget_optimization"
	case strings.Contains(prompt, "health_score"):
		name = "health_analysis"
	case strings.Contains(prompt, "grocery_list"):
		name = "shopping_list"
	default:
		name = "meal_plan"
	}

	slog.Info("MODEL: Mock returning fixture", "fixture", name, "structured", structured)
	return Fixture(name), nil
}

// Step is one scripted reply.
type Step struct {
	Output string
	Err    error
}

// Scripted replays Steps in order and records every prompt it receives.
type Scripted struct {
	mu      sync.Mutex
	steps   []Step
	prompts []string
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", model.Classify("mock", err)
	}

	i := len(s.prompts) - 1
	if i >= len(s.steps) {
		return "", model.NewProviderError("mock", model.CategoryProvider, 0, errors.New("script exhausted"))
	}
	return s.steps[i].Output, s.steps[i].Err
}

// Calls returns how many times Generate was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns a copy of the received prompts.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
