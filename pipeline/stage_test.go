package pipeline

import (
	"strings"
	"testing"
	"time"

	"fitplanner"
	"fitplanner/model/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStages_Order(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 4)

	expected := []struct {
		name     StageName
		requires []StageName
	}{
		{StageMealPlan, nil},
		{StageShoppingList, []StageName{StageMealPlan}},
		{StageHealthAnalysis, []StageName{StageMealPlan, StageShoppingList}},
		{StageBudgetOptimization, []StageName{StageShoppingList, StageHealthAnalysis}},
	}
	for i, e := range expected {
		assert.Equal(t, e.name, stages[i].Name)
		assert.Equal(t, i+1, stages[i].Position)
		assert.Equal(t, e.requires, stages[i].Requires)
	}

	_, ok := StageByName("nope")
	assert.False(t, ok)
}

func TestStage_Parse_Fixtures(t *testing.T) {
	for _, s := range Stages() {
		t.Run(string(s.Name), func(t *testing.T) {
			var r Results
			require.NoError(t, s.Parse(mock.Fixture(string(s.Name)), &r))
			assert.True(t, r.Has(s.Name))
			assert.Equal(t, []StageName{s.Name}, r.Collected())
		})
	}
}

func TestStage_Parse_Defensive(t *testing.T) {
	stage, _ := StageByName(StageShoppingList)
	fixture := mock.Fixture("shopping_list")

	tests := []struct {
		name string
		raw  string
	}{
		{name: "markdown fence", raw: "```json\n" + fixture + "\n```"},
		{name: "leading prose", raw: "Sure! Here is your list:\n" + fixture + "\nEnjoy."},
		{name: "braces in leading prose", raw: "Here is the {consolidated} list you asked for:\n" + fixture},
		{name: "braces in trailing prose", raw: fixture + "\nLet me know if {anything} changes."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Results
			require.NoError(t, stage.Parse(tt.raw, &r))
			require.NotNil(t, r.ShoppingList)
			assert.Len(t, r.ShoppingList.GroceryList, 8)
		})
	}
}

func TestStage_Parse_Rejects(t *testing.T) {
	mealPlan := mock.Fixture("meal_plan")

	tests := []struct {
		name   string
		stage  StageName
		raw    string
		reason string
	}{
		{name: "prose only", stage: StageMealPlan, raw: "I cannot help with that.", reason: "no JSON object in output"},
		{name: "truncated", stage: StageMealPlan, raw: `{"week_plan": {"day_1": `, reason: "no JSON object in output"},
		{name: "missing reasoning", stage: StageMealPlan, raw: strings.Replace(mealPlan, `"reasoning"`, `"notes"`, 1), reason: "schema violation"},
		{name: "six days", stage: StageMealPlan, raw: strings.Replace(mealPlan, `"day_7"`, `"day_8"`, 1), reason: "schema violation"},
		{name: "string calories", stage: StageMealPlan, raw: strings.Replace(mealPlan, `"calories": 350`, `"calories": "350 kcal"`, 1), reason: "schema violation"},
		{name: "missing grocery_list", stage: StageShoppingList, raw: `{"estimated_cost": 10, "shopping_categories": []}`, reason: "schema violation"},
		{name: "empty grocery_list", stage: StageShoppingList, raw: `{"grocery_list": [], "estimated_cost": 10, "shopping_categories": []}`, reason: "schema violation"},
		{name: "score above 100", stage: StageHealthAnalysis, raw: strings.Replace(mock.Fixture("health_analysis"), `"health_score": 82`, `"health_score": 120`, 1), reason: "schema violation"},
		{name: "unknown approval", stage: StageHealthAnalysis, raw: strings.Replace(mock.Fixture("health_analysis"), `"approved"`, `"maybe"`, 1), reason: "schema violation"},
		{name: "bad percent", stage: StageHealthAnalysis, raw: strings.Replace(mock.Fixture("health_analysis"), `"30%"`, `"lots"`, 1), reason: "invalid data"},
		{name: "unknown budget status", stage: StageBudgetOptimization, raw: strings.Replace(mock.Fixture("budget_optimization"), `"under"`, `"fine"`, 1), reason: "schema violation"},
		{name: "missing savings", stage: StageBudgetOptimization, raw: strings.Replace(mock.Fixture("budget_optimization"), `"savings"`, `"saved"`, 1), reason: "schema violation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, ok := StageByName(tt.stage)
			require.True(t, ok)

			var r Results
			err := stage.Parse(tt.raw, &r)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.stage, pe.Stage)
			assert.Equal(t, tt.reason, pe.Reason)
			assert.False(t, r.Has(tt.stage), "rejected output must not be recorded")
		})
	}
}

func TestStage_Render(t *testing.T) {
	profile := fitplanner.UserProfile{
		Goal:           fitplanner.GoalGainMuscle,
		WeeklyBudget:   75,
		Allergies:      []string{"peanuts", "shellfish"},
		TargetCalories: 2600,
		FoodHistory: []fitplanner.FoodEntry{
			{Description: "oatmeal", Calories: 300, Timestamp: time.Now()},
			{Description: "burrito", Calories: 800, Timestamp: time.Now().Add(-time.Hour)},
		},
	}

	var r Results
	for _, s := range Stages() {
		prompt, err := s.Render(profile, r, 10)
		require.NoError(t, err, s.Name)
		assert.NotEmpty(t, prompt)
		require.NoError(t, s.Parse(mock.Fixture(string(s.Name)), &r))

		switch s.Name {
		case StageMealPlan:
			assert.Contains(t, prompt, "Goal: gain_muscle")
			assert.Contains(t, prompt, "$75.00/week")
			assert.Contains(t, prompt, "Allergies: peanuts, shellfish")
			assert.Contains(t, prompt, "Recent foods: oatmeal, burrito")
			assert.Contains(t, prompt, "2600/day")
		case StageShoppingList:
			assert.Contains(t, prompt, `"day_1":{"breakfast":{"recipe":"Greek yogurt with berries"`)
		case StageHealthAnalysis:
			assert.Contains(t, prompt, "Goal=gain_muscle, Allergies=peanuts, shellfish")
			assert.Contains(t, prompt, `"grocery_list":[{"item":"chicken breast"`)
		case StageBudgetOptimization:
			assert.Contains(t, prompt, "within budget $75.00")
			assert.Contains(t, prompt, `"health_score":82`)
		}
	}
}

func TestFoodContext(t *testing.T) {
	history := make([]fitplanner.FoodEntry, 0, 15)
	for i := 0; i < 15; i++ {
		history = append(history, fitplanner.FoodEntry{Description: string(rune('a' + i))})
	}

	tests := []struct {
		name     string
		history  []fitplanner.FoodEntry
		window   int
		expected string
	}{
		{name: "empty", expected: "No previous food history"},
		{name: "blank descriptions", history: []fitplanner.FoodEntry{{Description: " "}}, window: 10, expected: "No previous food history"},
		{name: "most recent window", history: history, window: 3, expected: "Recent foods: a, b, c"},
		{name: "no window", history: history[:2], window: 0, expected: "Recent foods: a, b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FoodContext(tt.history, tt.window))
		})
	}
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
		wantErr  bool
	}{
		{name: "plain", in: `{"a":1}`, expected: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":{\"b\":2}}\n```", expected: `{"a":{"b":2}}`},
		{name: "brace in string", in: `note {"a":"}{"} trailing`, expected: `{"a":"}{"}`},
		{name: "escaped quote", in: `{"a":"say \"}\""}`, expected: `{"a":"say \"}\""}`},
		{name: "none", in: "no json here", wantErr: true},
		{name: "unbalanced", in: `{"a":{`, wantErr: true},
		{name: "braced prose first", in: `see {notes} then {"a":1}`, expected: `{"a":1}`},
		{name: "nested in prose braces", in: `{wrapper {"a":1} end}`, expected: `{"a":1}`},
		{name: "no valid span keeps first", in: `{bad} and {worse}`, expected: `{bad}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObject(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
