package pipeline

import (
	"fitplanner"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

func ptr[T any](v T) *T { return &v }

func object(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Required: required, Properties: props}
}

func arrayOf(items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: items}
}

func enum(values ...string) *jsonschema.Schema {
	e := make([]any, len(values))
	for i, v := range values {
		e[i] = v
	}
	return &jsonschema.Schema{Type: "string", Enum: e}
}

// Subschemas are built fresh for every use: a resolved schema must be a tree.
func str() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }
func num() *jsonschema.Schema { return &jsonschema.Schema{Type: "number"} }

func mealSchema() *jsonschema.Schema {
	return object([]string{"recipe", "calories", "prep_time"}, map[string]*jsonschema.Schema{
		"recipe":    str(),
		"calories":  num(),
		"prep_time": str(),
	})
}

func mealPlanSchema() *jsonschema.Schema {
	days := make(map[string]*jsonschema.Schema, len(fitplanner.DayKeys))
	for _, key := range fitplanner.DayKeys {
		days[key] = object([]string{"breakfast", "lunch", "dinner"}, map[string]*jsonschema.Schema{
			"breakfast": mealSchema(),
			"lunch":     mealSchema(),
			"dinner":    mealSchema(),
		})
	}

	return object([]string{"week_plan", "total_weekly_calories", "reasoning"}, map[string]*jsonschema.Schema{
		"week_plan":             object(fitplanner.DayKeys, days),
		"total_weekly_calories": num(),
		"reasoning":             str(),
	})
}

func shoppingListSchema() *jsonschema.Schema {
	item := object([]string{"item", "quantity", "category"}, map[string]*jsonschema.Schema{
		"item":     str(),
		"quantity": str(),
		"category": str(),
	})
	list := arrayOf(item)
	list.MinItems = ptr(1)

	return object([]string{"grocery_list", "estimated_cost", "shopping_categories"}, map[string]*jsonschema.Schema{
		"grocery_list":        list,
		"estimated_cost":      num(),
		"shopping_categories": arrayOf(str()),
	})
}

func healthAnalysisSchema() *jsonschema.Schema {
	score := &jsonschema.Schema{Type: "number", Minimum: ptr(0.0), Maximum: ptr(100.0)}

	analysis := object([]string{"protein_adequacy", "micronutrient_gaps", "macro_distribution"}, map[string]*jsonschema.Schema{
		"protein_adequacy":   str(),
		"micronutrient_gaps": arrayOf(str()),
		"macro_distribution": {Type: "object"},
	})

	return object([]string{"health_score", "nutritional_analysis", "warnings", "improvements", "approval_status"}, map[string]*jsonschema.Schema{
		"health_score":         score,
		"nutritional_analysis": analysis,
		"warnings":             arrayOf(str()),
		"improvements":         arrayOf(str()),
		"approval_status":      enum(string(fitplanner.ApprovalApproved), string(fitplanner.ApprovalNeedsRevision)),
	})
}

func budgetOptimizationSchema() *jsonschema.Schema {
	item := object([]string{"item", "quantity", "price"}, map[string]*jsonschema.Schema{
		"item":     str(),
		"quantity": str(),
		"price":    num(),
	})
	substitution := object([]string{"original", "replacement", "reason"}, map[string]*jsonschema.Schema{
		"original":    str(),
		"replacement": str(),
		"reason":      str(),
	})

	return object([]string{"optimized_list", "total_cost", "savings", "substitutions_made", "removed_items", "budget_status"}, map[string]*jsonschema.Schema{
		"optimized_list":     arrayOf(item),
		"total_cost":         num(),
		"savings":            num(),
		"substitutions_made": arrayOf(substitution),
		"removed_items":      arrayOf(str()),
		"budget_status":      enum(string(fitplanner.BudgetUnder), string(fitplanner.BudgetOver), string(fitplanner.BudgetExact)),
	})
}
