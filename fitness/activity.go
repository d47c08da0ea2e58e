package fitness

import (
	"math"
	"sort"
	"strings"
	"time"
)

// runningMET is the metabolic equivalent used for every exercise type.
const runningMET = 9.8

// StreakWindowDays bounds how far back activity is read for streaks.
const StreakWindowDays = 60

// Macros are grams of protein, carbohydrate and fat.
type Macros struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fats    float64 `json:"fats"`
}

// FallbackMacros splits calories 25/50/25 across protein, carbs and fats.
func FallbackMacros(calories float64) Macros {
	return Macros{
		Protein: calories * 0.25 / 4,
		Carbs:   calories * 0.50 / 4,
		Fats:    calories * 0.25 / 9,
	}
}

// MacroTargets splits a daily calorie target 30/40/30.
func MacroTargets(targetCalories int) Macros {
	c := float64(targetCalories)
	return Macros{
		Protein: c * 0.30 / 4,
		Carbs:   c * 0.40 / 4,
		Fats:    c * 0.30 / 9,
	}
}

// MacroProgress is one macro's intake against its target, in whole grams.
type MacroProgress struct {
	Current    int `json:"current"`
	Target     int `json:"target"`
	Percentage int `json:"percentage"`
}

// Progress rounds current and target and caps the percentage at 100.
func Progress(current, target float64) MacroProgress {
	p := MacroProgress{Current: int(math.Round(current)), Target: int(math.Round(target))}
	if target > 0 {
		p.Percentage = min(int(math.Round(current/target*100)), 100)
	}
	return p
}

// ExerciseCalories estimates calories burned as MET x weight x hours, truncated.
func ExerciseCalories(weightKG int, d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(runningMET * float64(weightKG) * d.Hours())
}

var exerciseIcons = map[string]string{
	"running":  "🏃",
	"walking":  "🚶",
	"cycling":  "🚴",
	"swimming": "🏊",
	"strength": "💪",
	"yoga":     "🧘",
}

// ExerciseIcon returns the emoji for an exercise type, a runner when unknown.
func ExerciseIcon(exerciseType string) string {
	if icon, ok := exerciseIcons[strings.ToLower(exerciseType)]; ok {
		return icon
	}
	return "🏃"
}

// NormalizeExerciseType lower-cases and trims, defaulting to "other".
func NormalizeExerciseType(s string) string {
	if s = strings.ToLower(strings.TrimSpace(s)); s == "" {
		return "other"
	}
	return s
}

// CalendarDay is one day of the current month.
type CalendarDay struct {
	Day       int  `json:"day"`
	Completed bool `json:"completed"`
	IsToday   bool `json:"is_today"`
}

type StreakData struct {
	CurrentStreak int           `json:"current_streak"`
	LongestStreak int           `json:"longest_streak"`
	MonthProgress int           `json:"month_progress"`
	MonthTotal    int           `json:"month_total"`
	Calendar      []CalendarDay `json:"calendar"`
	MonthName     string        `json:"month_name"`
}

// Streak derives streaks and the month calendar from activity times. Days are
// calendar days in now's location. The current streak is zero unless today
// has activity.
func Streak(activity []time.Time, now time.Time) StreakData {
	loc := now.Location()
	today := dayOf(now, loc)

	active := make(map[time.Time]bool, len(activity))
	for _, t := range activity {
		active[dayOf(t, loc)] = true
	}

	var sd StreakData
	for d := today; active[d]; d = d.AddDate(0, 0, -1) {
		sd.CurrentStreak++
	}

	days := make([]time.Time, 0, len(active))
	for d := range active {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	run := 0
	for i, d := range days {
		if i > 0 && days[i-1].AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		sd.LongestStreak = max(sd.LongestStreak, run)
	}

	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	sd.MonthTotal = last.Day()
	sd.MonthName = today.Month().String()
	sd.Calendar = make([]CalendarDay, 0, sd.MonthTotal)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		done := active[d]
		if done {
			sd.MonthProgress++
		}
		sd.Calendar = append(sd.Calendar, CalendarDay{Day: d.Day(), Completed: done, IsToday: d.Equal(today)})
	}
	return sd
}

// DayBounds returns the start of t's calendar day in its location and the
// start of the next day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := dayOf(t, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
