package fitplanner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGoal(t *testing.T) {
	tests := []struct {
		in      string
		want    Goal
		wantErr bool
	}{
		{in: "", want: GoalMaintain},
		{in: " Lose_Weight ", want: GoalLoseWeight},
		{in: "gain_muscle", want: GoalGainMuscle},
		{in: "bulk", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGoal(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercent(t *testing.T) {
	for _, in := range []string{`25`, `"25"`, `"25%"`, `" 25 % "`} {
		var p Percent
		require.NoError(t, json.Unmarshal([]byte(in), &p), in)
		assert.Equal(t, Percent(25), p, in)
	}

	var p Percent
	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &p))
	assert.Error(t, json.Unmarshal([]byte(`true`), &p))

	data, err := json.Marshal(Percent(30.5))
	require.NoError(t, err)
	assert.Equal(t, `"30.5%"`, string(data))
}

func TestUserProfile_Validate(t *testing.T) {
	valid := UserProfile{Goal: GoalMaintain, WeeklyBudget: 100, TargetCalories: 2000}
	assert.NoError(t, valid.Validate())

	tests := map[string]func(p *UserProfile){
		"unknown goal":    func(p *UserProfile) { p.Goal = "bulk" },
		"negative budget": func(p *UserProfile) { p.WeeklyBudget = -1 },
		"no target":       func(p *UserProfile) { p.TargetCalories = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func weekOf(meal Meal) map[string]DayPlan {
	week := map[string]DayPlan{}
	for _, k := range DayKeys {
		week[k] = DayPlan{Breakfast: meal, Lunch: meal, Dinner: meal}
	}
	return week
}

func TestMealPlanResult_Validate(t *testing.T) {
	meal := Meal{Recipe: "oats", Calories: 400, PrepTime: "5 min"}

	ok := MealPlanResult{WeekPlan: weekOf(meal), TotalWeeklyCalories: 8400}
	assert.NoError(t, ok.Validate())

	short := MealPlanResult{WeekPlan: weekOf(meal)}
	delete(short.WeekPlan, "day_7")
	assert.ErrorContains(t, short.Validate(), "7 days")

	renamed := MealPlanResult{WeekPlan: weekOf(meal)}
	delete(renamed.WeekPlan, "day_3")
	renamed.WeekPlan["day_8"] = DayPlan{Breakfast: meal, Lunch: meal, Dinner: meal}
	assert.ErrorContains(t, renamed.Validate(), "missing day_3")

	blank := MealPlanResult{WeekPlan: weekOf(Meal{Recipe: " "})}
	assert.ErrorContains(t, blank.Validate(), "no recipe")
}

func TestHealthAnalysisResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		result  HealthAnalysisResult
		wantErr bool
	}{
		{name: "approved", result: HealthAnalysisResult{HealthScore: 80, ApprovalStatus: ApprovalApproved}},
		{name: "score too high", result: HealthAnalysisResult{HealthScore: 101, ApprovalStatus: ApprovalApproved}, wantErr: true},
		{name: "unknown status", result: HealthAnalysisResult{HealthScore: 50, ApprovalStatus: "maybe"}, wantErr: true},
		{
			name: "macro out of range",
			result: HealthAnalysisResult{
				HealthScore:         50,
				ApprovalStatus:      ApprovalNeedsRevision,
				NutritionalAnalysis: NutritionalAnalysis{MacroDistribution: map[string]Percent{"protein": 140}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBudgetOptimizationResult_Validate(t *testing.T) {
	assert.NoError(t, (&BudgetOptimizationResult{BudgetStatus: BudgetExact}).Validate())
	assert.Error(t, (&BudgetOptimizationResult{BudgetStatus: "cheap"}).Validate())
	assert.Error(t, (&BudgetOptimizationResult{BudgetStatus: BudgetOver, TotalCost: -3}).Validate())
	assert.Error(t, (&ShoppingListResult{GroceryList: []GroceryItem{{Item: ""}}}).Validate())
}
