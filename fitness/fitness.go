// Package fitness holds the per-user arithmetic the planner feeds into the pipeline.
package fitness

import (
	"errors"
	"fmt"
	"strings"

	"fitplanner"
)

// activityMultiplier assumes light-to-moderate activity.
const activityMultiplier = 1.4

const (
	loseWeightDeficit = 500
	gainMuscleSurplus = 300
)

// User is a registered user and the body metrics target calories derive from.
type User struct {
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	Age      int             `json:"age"`
	Sex      string          `json:"sex"`
	HeightCM int             `json:"height_cm"`
	WeightKG int             `json:"weight_kg"`
	Goal     fitplanner.Goal `json:"goal"`
}

// NormalizeUsername lower-cases and trims a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (u User) Validate() error {
	if NormalizeUsername(u.Username) == "" {
		return errors.New("username is required")
	}
	if u.Age <= 0 || u.HeightCM <= 0 || u.WeightKG <= 0 {
		return fmt.Errorf("age, height and weight must be positive (got %d, %d, %d)", u.Age, u.HeightCM, u.WeightKG)
	}
	if _, err := fitplanner.ParseGoal(string(u.Goal)); err != nil {
		return err
	}
	return nil
}

// BMR is the Mifflin-St Jeor basal metabolic rate. Any sex other than male
// uses the lower constant.
func BMR(u User) float64 {
	base := 10*float64(u.WeightKG) + 6.25*float64(u.HeightCM) - 5*float64(u.Age)
	if strings.EqualFold(strings.TrimSpace(u.Sex), "male") {
		return base + 5
	}
	return base - 161
}

// TargetCalories is TDEE adjusted for the goal, truncated to whole calories.
func TargetCalories(u User) int {
	target := BMR(u) * activityMultiplier
	switch u.Goal {
	case fitplanner.GoalLoseWeight:
		target -= loseWeightDeficit
	case fitplanner.GoalGainMuscle:
		target += gainMuscleSurplus
	}
	return int(target)
}

// ParseAllergies splits a comma-separated allergy list, dropping blanks.
func ParseAllergies(s string) []string {
	allergies := []string{}
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			allergies = append(allergies, a)
		}
	}
	return allergies
}

// BuildProfile assembles the pipeline input for u. history must be most-recent-first.
func BuildProfile(u User, history []fitplanner.FoodEntry, budget float64, allergies []string) fitplanner.UserProfile {
	goal, err := fitplanner.ParseGoal(string(u.Goal))
	if err != nil {
		goal = fitplanner.GoalMaintain
	}
	if allergies == nil {
		allergies = []string{}
	}
	if history == nil {
		history = []fitplanner.FoodEntry{}
	}
	u.Goal = goal
	return fitplanner.UserProfile{
		Goal:           goal,
		WeeklyBudget:   budget,
		Allergies:      allergies,
		TargetCalories: TargetCalories(u),
		FoodHistory:    history,
	}
}
