package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/pipeline"
	"fitplanner/planner"
	"fitplanner/store"
)

var (
	accentColor  = lipgloss.Color("#7D56F4")
	subtleColor  = lipgloss.Color("#6C6C6C")
	successColor = lipgloss.Color("#73F59F")
	errorColor   = lipgloss.Color("#FF6B6B")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtleColor).
			Padding(0, 1)
)

func renderBundle(b pipeline.Bundle) string {
	var sections []string
	if b.Failed() {
		sections = append(sections, errorStyle.Render("Pipeline failed: "+b.ErrorMessage()))
		if collected := b.Results.Collected(); len(collected) > 0 {
			names := make([]string, len(collected))
			for i, n := range collected {
				names[i] = string(n)
			}
			sections = append(sections, subtleStyle.Render("partial results: "+strings.Join(names, ", ")))
		}
	}

	r := b.Results
	if r.MealPlan != nil {
		sections = append(sections, renderMealPlan(r.MealPlan))
	}
	if r.HealthAnalysis != nil {
		h := r.HealthAnalysis
		lines := []string{fmt.Sprintf("Score %.0f/100, %s", h.HealthScore, h.ApprovalStatus)}
		for _, w := range h.Warnings {
			lines = append(lines, "! "+w)
		}
		sections = append(sections, headingStyle.Render("Health")+"\n"+strings.Join(lines, "\n"))
	}
	if r.BudgetOptimization != nil {
		sections = append(sections, renderGroceries(r.BudgetOptimization))
	} else if r.ShoppingList != nil {
		lines := make([]string, 0, len(r.ShoppingList.GroceryList))
		for _, g := range r.ShoppingList.GroceryList {
			lines = append(lines, fmt.Sprintf("%-24s %s", g.Item, g.Quantity))
		}
		sections = append(sections, headingStyle.Render(fmt.Sprintf("Shopping list (est. $%.2f)", r.ShoppingList.EstimatedCost))+"\n"+strings.Join(lines, "\n"))
	}
	if m := b.Metrics; m != nil {
		sections = append(sections, subtleStyle.Render(fmt.Sprintf("%.1fs, %d agent calls, est. $%.4f", m.TotalTimeSeconds, m.AgentCalls, m.EstimatedCost)))
	}
	return strings.Join(sections, "\n")
}

func renderMealPlan(mp *fitplanner.MealPlanResult) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Weekly meal plan, %.0f kcal", mp.TotalWeeklyCalories)))
	for i, key := range fitplanner.DayKeys {
		day, ok := mp.WeekPlan[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\nDay %d  B: %s | L: %s | D: %s", i+1, day.Breakfast.Recipe, day.Lunch.Recipe, day.Dinner.Recipe)
	}
	return boxStyle.Render(sb.String())
}

func renderGroceries(bo *fitplanner.BudgetOptimizationResult) string {
	lines := make([]string, 0, len(bo.OptimizedList))
	for _, it := range bo.OptimizedList {
		line := fmt.Sprintf("%-24s %-10s $%6.2f", it.Item, it.Quantity, it.Price)
		if it.SubstitutedFrom != "" {
			line += subtleStyle.Render(" (was " + it.SubstitutedFrom + ")")
		}
		lines = append(lines, line)
	}
	heading := fmt.Sprintf("Groceries $%.2f, saved $%.2f (%s budget)", bo.TotalCost, bo.Savings, bo.BudgetStatus)
	return headingStyle.Render(heading) + "\n" + strings.Join(lines, "\n")
}

func renderPlanList(plans []store.StoredPlan) string {
	if len(plans) == 0 {
		return subtleStyle.Render("no meal plans yet")
	}
	lines := make([]string, 0, len(plans))
	for _, p := range plans {
		marker := " "
		if p.Active {
			marker = successStyle.Render("*")
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s", marker, p.ID, p.CreatedAt.Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n")
}

func renderStatus(s planner.PlanStatus) string {
	if s.Status != planner.StatusActive || s.PlanID == nil {
		return subtleStyle.Render("no active plan")
	}
	generated := ""
	if s.LastGenerated != nil {
		generated = s.LastGenerated.Format("2006-01-02 15:04")
	}
	return successStyle.Render("active") + fmt.Sprintf(" %s, generated %s", *s.PlanID, generated)
}

func renderProfile(p planner.Profile) string {
	body := fmt.Sprintf("%s\nage %d, %s, %d cm, %d kg\ngoal %s, target %d kcal/day",
		titleStyle.Render(p.Username), p.Age, p.Sex, p.HeightCM, p.WeightKG, p.Goal, p.TargetCalories)
	return boxStyle.Render(body)
}

func renderExerciseStopped(e store.Exercise) string {
	return successStyle.Render(fmt.Sprintf("Stopped %s after %d min %02d s, %d kcal burned",
		e.Type, e.DurationSeconds/60, e.DurationSeconds%60, e.CaloriesBurned))
}

func renderDailySummary(d planner.DailySummary, m planner.MacroSummary, ex planner.ExerciseSummary) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s today", d.Username)))
	fmt.Fprintf(&sb, "\n%.0f of %d kcal, %.0f remaining (%s)", d.ConsumedToday, d.TargetCalories, d.RemainingCalories, d.Goal)
	for _, row := range []struct {
		name string
		p    fitness.MacroProgress
	}{{"protein", m.Protein}, {"carbs", m.Carbs}, {"fats", m.Fats}} {
		fmt.Fprintf(&sb, "\n%-8s %4d/%-4d g %3d%%", row.name, row.p.Current, row.p.Target, row.p.Percentage)
	}

	sb.WriteString("\n" + headingStyle.Render(fmt.Sprintf("Exercise, %d kcal", ex.TotalCalories)))
	if len(ex.Exercises) == 0 {
		sb.WriteString("\n" + subtleStyle.Render("no exercise yet"))
	}
	for _, e := range ex.Exercises {
		line := fmt.Sprintf("\n%s %-10s %-7s %4d kcal", e.Icon, e.Type, e.Duration, e.Calories)
		if e.IsPR {
			line += successStyle.Render(" PR")
		}
		sb.WriteString(line)
	}
	return boxStyle.Render(sb.String())
}

func renderStreak(sd fitness.StreakData) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%d day streak, best %d", sd.CurrentStreak, sd.LongestStreak)))
	fmt.Fprintf(&sb, "\n%s: %d/%d days\n", sd.MonthName, sd.MonthProgress, sd.MonthTotal)
	for i, day := range sd.Calendar {
		cell := fmt.Sprintf("%2d", day.Day)
		switch {
		case day.Completed:
			cell = successStyle.Render(cell)
		case day.IsToday:
			cell = titleStyle.Render(cell)
		default:
			cell = subtleStyle.Render(cell)
		}
		sb.WriteString(cell)
		if (i+1)%7 == 0 {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
	}
	return boxStyle.Render(strings.TrimRight(sb.String(), " \n"))
}
