package fitplanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Goal is the user's fitness goal.
type Goal string

const (
	GoalLoseWeight Goal = "lose_weight"
	GoalGainMuscle Goal = "gain_muscle"
	GoalMaintain   Goal = "maintain"
)

// ParseGoal normalizes a goal string. An empty string is treated as maintain.
func ParseGoal(s string) (Goal, error) {
	switch g := Goal(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GoalMaintain, nil
	case GoalLoseWeight, GoalGainMuscle, GoalMaintain:
		return g, nil
	default:
		return "", fmt.Errorf("unknown goal %q", s)
	}
}

// FoodEntry is one row of the user's food history.
type FoodEntry struct {
	Description string    `json:"description"`
	Calories    float64   `json:"calories"`
	Timestamp   time.Time `json:"timestamp"`
}

// UserProfile is the per-invocation input of the planning pipeline.
// FoodHistory is ordered most-recent-first.
type UserProfile struct {
	Goal           Goal        `json:"goal"`
	WeeklyBudget   float64     `json:"budget"`
	Allergies      []string    `json:"allergies"`
	TargetCalories int         `json:"target_calories"`
	FoodHistory    []FoodEntry `json:"food_history"`
}

func (p UserProfile) Validate() error {
	if _, err := ParseGoal(string(p.Goal)); err != nil {
		return err
	}
	if p.WeeklyBudget < 0 {
		return fmt.Errorf("budget must not be negative, got %v", p.WeeklyBudget)
	}
	if p.TargetCalories <= 0 {
		return fmt.Errorf("target calories must be positive, got %d", p.TargetCalories)
	}
	return nil
}

// DayKeys are the keys of a week plan, in order.
var DayKeys = []string{"day_1", "day_2", "day_3", "day_4", "day_5", "day_6", "day_7"}

// Meal is a single planned meal.
type Meal struct {
	Recipe   string  `json:"recipe"`
	Calories float64 `json:"calories"`
	PrepTime string  `json:"prep_time"`
}

// DayPlan holds the three meals of one day.
type DayPlan struct {
	Breakfast Meal `json:"breakfast"`
	Lunch     Meal `json:"lunch"`
	Dinner    Meal `json:"dinner"`
}

// MealPlanResult is the output of the meal plan stage.
type MealPlanResult struct {
	WeekPlan            map[string]DayPlan `json:"week_plan"`
	TotalWeeklyCalories float64            `json:"total_weekly_calories"`
	Reasoning           string             `json:"reasoning"`
}

// Validate checks that every day of the week is planned with three named meals.
func (mp *MealPlanResult) Validate() error {
	if len(mp.WeekPlan) != len(DayKeys) {
		return fmt.Errorf("week_plan must have %d days, got %d", len(DayKeys), len(mp.WeekPlan))
	}
	for _, key := range DayKeys {
		day, ok := mp.WeekPlan[key]
		if !ok {
			return fmt.Errorf("week_plan is missing %s", key)
		}
		for name, meal := range map[string]Meal{"breakfast": day.Breakfast, "lunch": day.Lunch, "dinner": day.Dinner} {
			if strings.TrimSpace(meal.Recipe) == "" {
				return fmt.Errorf("%s.%s has no recipe", key, name)
			}
			if meal.Calories < 0 {
				return fmt.Errorf("%s.%s has negative calories", key, name)
			}
		}
	}
	if mp.TotalWeeklyCalories < 0 {
		return errors.New("total_weekly_calories must not be negative")
	}
	return nil
}

// GroceryItem is one consolidated line of the shopping list.
type GroceryItem struct {
	Item     string `json:"item"`
	Quantity string `json:"quantity"`
	Category string `json:"category"`
}

// ShoppingListResult is the output of the shopping list stage.
type ShoppingListResult struct {
	GroceryList        []GroceryItem `json:"grocery_list"`
	EstimatedCost      float64       `json:"estimated_cost"`
	ShoppingCategories []string      `json:"shopping_categories"`
}

func (sl *ShoppingListResult) Validate() error {
	for i, item := range sl.GroceryList {
		if strings.TrimSpace(item.Item) == "" {
			return fmt.Errorf("grocery_list[%d] has no item", i)
		}
	}
	if sl.EstimatedCost < 0 {
		return errors.New("estimated_cost must not be negative")
	}
	return nil
}

// Percent accepts 25, "25" or "25%" and always encodes as "25%".
type Percent float64

func (p *Percent) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*p = Percent(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("percent must be a number or string: %w", err)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
	if err != nil {
		return fmt.Errorf("invalid percent %q: %w", s, err)
	}
	*p = Percent(n)
	return nil
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(p), 'f', -1, 64) + "%")
}

type NutritionalAnalysis struct {
	ProteinAdequacy   string             `json:"protein_adequacy"`
	MicronutrientGaps []string           `json:"micronutrient_gaps"`
	MacroDistribution map[string]Percent `json:"macro_distribution"`
}

type ApprovalStatus string

const (
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalNeedsRevision ApprovalStatus = "needs_revision"
)

// HealthAnalysisResult is the output of the health validation stage.
type HealthAnalysisResult struct {
	HealthScore         float64             `json:"health_score"`
	NutritionalAnalysis NutritionalAnalysis `json:"nutritional_analysis"`
	Warnings            []string            `json:"warnings"`
	Improvements        []string            `json:"improvements"`
	ApprovalStatus      ApprovalStatus      `json:"approval_status"`
}

func (ha *HealthAnalysisResult) Validate() error {
	if ha.HealthScore < 0 || ha.HealthScore > 100 {
		return fmt.Errorf("health_score must be within 0..100, got %v", ha.HealthScore)
	}
	switch ha.ApprovalStatus {
	case ApprovalApproved, ApprovalNeedsRevision:
	default:
		return fmt.Errorf("unknown approval_status %q", ha.ApprovalStatus)
	}
	for macro, pct := range ha.NutritionalAnalysis.MacroDistribution {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("macro_distribution.%s out of range: %v", macro, float64(pct))
		}
	}
	return nil
}

type OptimizedItem struct {
	Item            string  `json:"item"`
	Quantity        string  `json:"quantity"`
	Price           float64 `json:"price"`
	SubstitutedFrom string  `json:"substituted_from,omitempty"`
}

type Substitution struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Reason      string `json:"reason"`
}

type BudgetStatus string

const (
	BudgetUnder BudgetStatus = "under"
	BudgetOver  BudgetStatus = "over"
	BudgetExact BudgetStatus = "exact"
)

// BudgetOptimizationResult is the output of the budget optimization stage.
type BudgetOptimizationResult struct {
	OptimizedList     []OptimizedItem `json:"optimized_list"`
	TotalCost         float64         `json:"total_cost"`
	Savings           float64         `json:"savings"`
	SubstitutionsMade []Substitution  `json:"substitutions_made"`
	RemovedItems      []string        `json:"removed_items"`
	BudgetStatus      BudgetStatus    `json:"budget_status"`
}

func (bo *BudgetOptimizationResult) Validate() error {
	switch bo.BudgetStatus {
	case BudgetUnder, BudgetOver, BudgetExact:
	default:
		return fmt.Errorf("unknown budget_status %q", bo.BudgetStatus)
	}
	if bo.TotalCost < 0 {
		return errors.New("total_cost must not be negative")
	}
	return nil
}
