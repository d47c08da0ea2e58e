package pipeline

import "fitplanner"

// Results holds whichever stage outputs have been produced so far.
type Results struct {
	MealPlan           *fitplanner.MealPlanResult           `json:"meal_plan,omitempty"`
	ShoppingList       *fitplanner.ShoppingListResult       `json:"shopping_list,omitempty"`
	HealthAnalysis     *fitplanner.HealthAnalysisResult     `json:"health_analysis,omitempty"`
	BudgetOptimization *fitplanner.BudgetOptimizationResult `json:"budget_optimization,omitempty"`
}

func (r Results) Has(name StageName) bool {
	switch name {
	case StageMealPlan:
		return r.MealPlan != nil
	case StageShoppingList:
		return r.ShoppingList != nil
	case StageHealthAnalysis:
		return r.HealthAnalysis != nil
	case StageBudgetOptimization:
		return r.BudgetOptimization != nil
	}
	return false
}

// Collected lists the stages with a result, in pipeline order.
func (r Results) Collected() []StageName {
	var names []StageName
	for _, s := range Stages() {
		if r.Has(s.Name) {
			names = append(names, s.Name)
		}
	}
	return names
}

// Complete reports whether all four stages have a result.
func (r Results) Complete() bool {
	return len(r.Collected()) == len(Stages())
}

// adopt copies only the named stage's result from src.
func (r Results) adopt(name StageName, src Results) Results {
	switch name {
	case StageMealPlan:
		r.MealPlan = src.MealPlan
	case StageShoppingList:
		r.ShoppingList = src.ShoppingList
	case StageHealthAnalysis:
		r.HealthAnalysis = src.HealthAnalysis
	case StageBudgetOptimization:
		r.BudgetOptimization = src.BudgetOptimization
	}
	return r
}
