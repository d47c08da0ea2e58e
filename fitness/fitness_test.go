package fitness

import (
	"testing"
	"time"

	"fitplanner"

	"github.com/stretchr/testify/assert"
)

func TestTargetCalories(t *testing.T) {
	tests := []struct {
		name     string
		user     User
		expected int
	}{
		{
			// BMR = 800 + 1125 - 150 + 5 = 1780; TDEE = 2492
			name:     "male maintain",
			user:     User{Age: 30, Sex: "male", HeightCM: 180, WeightKG: 80, Goal: fitplanner.GoalMaintain},
			expected: 2492,
		},
		{
			name:     "male lose weight",
			user:     User{Age: 30, Sex: "Male", HeightCM: 180, WeightKG: 80, Goal: fitplanner.GoalLoseWeight},
			expected: 1992,
		},
		{
			// BMR = 600 + 1031.25 - 125 - 161 = 1345.25; TDEE = 1883.35; +300
			name:     "female gain muscle truncates",
			user:     User{Age: 25, Sex: "female", HeightCM: 165, WeightKG: 60, Goal: fitplanner.GoalGainMuscle},
			expected: 2183,
		},
		{
			name:     "unspecified sex uses lower constant",
			user:     User{Age: 25, Sex: "", HeightCM: 165, WeightKG: 60, Goal: fitplanner.GoalMaintain},
			expected: 1883,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TargetCalories(tt.user))
		})
	}
}

func TestParseAllergies(t *testing.T) {
	tests := []struct {
		in       string
		expected []string
	}{
		{in: "", expected: []string{}},
		{in: "peanuts", expected: []string{"peanuts"}},
		{in: "peanuts, shellfish ,,dairy", expected: []string{"peanuts", "shellfish", "dairy"}},
		{in: " , ", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAllergies(tt.in))
		})
	}
}

func TestUser_Validate(t *testing.T) {
	valid := User{Username: "Sam", Age: 30, Sex: "male", HeightCM: 180, WeightKG: 80, Goal: fitplanner.GoalMaintain}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Username = "  "
	assert.Error(t, noName.Validate())

	badGoal := valid
	badGoal.Goal = "bulk"
	assert.Error(t, badGoal.Validate())

	noAge := valid
	noAge.Age = 0
	assert.Error(t, noAge.Validate())
}

func TestBuildProfile(t *testing.T) {
	u := User{Age: 30, Sex: "male", HeightCM: 180, WeightKG: 80, Goal: fitplanner.GoalLoseWeight}
	history := []fitplanner.FoodEntry{{Description: "salad", Calories: 300, Timestamp: time.Now()}}

	p := BuildProfile(u, history, 50, []string{"peanuts"})
	assert.Equal(t, fitplanner.GoalLoseWeight, p.Goal)
	assert.Equal(t, 50.0, p.WeeklyBudget)
	assert.Equal(t, 1992, p.TargetCalories)
	assert.Equal(t, []string{"peanuts"}, p.Allergies)
	assert.Equal(t, history, p.FoodHistory)
	assert.NoError(t, p.Validate())

	empty := BuildProfile(User{Age: 30, HeightCM: 170, WeightKG: 70}, nil, 100, nil)
	assert.Equal(t, fitplanner.GoalMaintain, empty.Goal)
	assert.NotNil(t, empty.Allergies)
	assert.NotNil(t, empty.FoodHistory)

	assert.Equal(t, "sam", NormalizeUsername("  Sam "))
}
