package pipeline

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"fitplanner"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// StageName identifies a stage and is also its key in the bundle.
type StageName string

const (
	StageMealPlan           StageName = "meal_plan"
	StageShoppingList       StageName = "shopping_list"
	StageHealthAnalysis     StageName = "health_analysis"
	StageBudgetOptimization StageName = "budget_optimization"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Stage is the data that distinguishes one planning agent from another:
// its prompt, its required output schema, and the stages it reads from.
type Stage struct {
	Name     StageName
	Position int
	Requires []StageName

	prompt *template.Template
	schema *jsonschema.Resolved
	decode func(data []byte, into *Results) error
}

// promptData is what the stage templates render from.
type promptData struct {
	Profile     fitplanner.UserProfile
	Allergies   string
	FoodContext string
	Results     Results
}

var (
	stagesOnce sync.Once
	stages     []Stage
)

// Stages returns the four stages in execution order.
func Stages() []Stage {
	stagesOnce.Do(func() {
		stages = []Stage{
			mustStage(StageMealPlan, 1, nil, mealPlanSchema(), decodeInto(func(r *Results, v *fitplanner.MealPlanResult) { r.MealPlan = v })),
			mustStage(StageShoppingList, 2, []StageName{StageMealPlan}, shoppingListSchema(), decodeInto(func(r *Results, v *fitplanner.ShoppingListResult) { r.ShoppingList = v })),
			mustStage(StageHealthAnalysis, 3, []StageName{StageMealPlan, StageShoppingList}, healthAnalysisSchema(), decodeInto(func(r *Results, v *fitplanner.HealthAnalysisResult) { r.HealthAnalysis = v })),
			mustStage(StageBudgetOptimization, 4, []StageName{StageShoppingList, StageHealthAnalysis}, budgetOptimizationSchema(), decodeInto(func(r *Results, v *fitplanner.BudgetOptimizationResult) { r.BudgetOptimization = v })),
		}
	})
	return stages
}

// StageByName looks up a stage definition.
func StageByName(name StageName) (Stage, bool) {
	for _, s := range Stages() {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

func mustStage(name StageName, pos int, requires []StageName, schema *jsonschema.Schema, decode func([]byte, *Results) error) Stage {
	tmpl, err := template.New(string(name) + ".tmpl").
		Funcs(template.FuncMap{"json": toJSON}).
		ParseFS(promptFS, "prompts/"+string(name)+".tmpl")
	if err != nil {
		panic(fmt.Sprintf("pipeline: parse %s prompt: %v", name, err))
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("pipeline: resolve %s schema: %v", name, err))
	}

	return Stage{
		Name:     name,
		Position: pos,
		Requires: requires,
		prompt:   tmpl,
		schema:   resolved,
		decode:   decode,
	}
}

// validatable is satisfied by the pointer forms of the stage result types.
type validatable[T any] interface {
	*T
	Validate() error
}

func decodeInto[T any, PT validatable[T]](assign func(*Results, PT)) func([]byte, *Results) error {
	return func(data []byte, into *Results) error {
		v := PT(new(T))
		if err := json.Unmarshal(data, v); err != nil {
			return err
		}
		if err := v.Validate(); err != nil {
			return err
		}
		assign(into, v)
		return nil
	}
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Missing returns the first declared dependency without a result.
func (s Stage) Missing(r Results) (StageName, bool) {
	for _, dep := range s.Requires {
		if !r.Has(dep) {
			return dep, true
		}
	}
	return "", false
}

// Render substitutes the profile and prior results into the stage prompt.
func (s Stage) Render(profile fitplanner.UserProfile, r Results, foodWindow int) (string, error) {
	var b strings.Builder
	err := s.prompt.Execute(&b, promptData{
		Profile:     profile,
		Allergies:   allergyText(profile.Allergies),
		FoodContext: FoodContext(profile.FoodHistory, foodWindow),
		Results:     r,
	})
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", s.Name, err)
	}
	return b.String(), nil
}

// Parse extracts the JSON object from raw model text, validates it against
// the stage schema and the typed record's own checks, and stores it into r.
func (s Stage) Parse(raw string, r *Results) error {
	obj, err := ExtractObject(raw)
	if err != nil {
		return &ParseError{Stage: s.Name, Reason: "no JSON object in output", Err: err}
	}

	var instance any
	if err := json.Unmarshal([]byte(obj), &instance); err != nil {
		return &ParseError{Stage: s.Name, Reason: "malformed JSON", Err: err}
	}
	if err := s.schema.Validate(instance); err != nil {
		return &ParseError{Stage: s.Name, Reason: "schema violation", Err: err}
	}
	if err := s.decode([]byte(obj), r); err != nil {
		return &ParseError{Stage: s.Name, Reason: "invalid data", Err: err}
	}
	return nil
}

// FoodContext summarizes the most recent window entries of a most-recent-first history.
func FoodContext(history []fitplanner.FoodEntry, window int) string {
	if len(history) == 0 {
		return "No previous food history"
	}
	if window > 0 && len(history) > window {
		history = history[:window]
	}
	descs := make([]string, 0, len(history))
	for _, e := range history {
		if d := strings.TrimSpace(e.Description); d != "" {
			descs = append(descs, d)
		}
	}
	if len(descs) == 0 {
		return "No previous food history"
	}
	return "Recent foods: " + strings.Join(descs, ", ")
}

func allergyText(allergies []string) string {
	if len(allergies) == 0 {
		return "none"
	}
	return strings.Join(allergies, ", ")
}
