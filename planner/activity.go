package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/store"
)

// StartExercise opens a timed session for the user.
func (s *Service) StartExercise(ctx context.Context, username, exerciseType string) (store.Exercise, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return store.Exercise{}, err
	}
	e := store.Exercise{
		UserID:    u.ID,
		Type:      fitness.NormalizeExerciseType(exerciseType),
		StartTime: s.now(),
	}
	if e.ID, err = s.exercises.StartExercise(ctx, u.ID, e.Type, e.StartTime); err != nil {
		return store.Exercise{}, err
	}
	slog.Info("PLANNER: Exercise started", "user", u.Username, "session_id", e.ID, "type", e.Type)
	return e, nil
}

// StopExercise ends one of the user's running sessions and records its
// whole-second duration and the calories burned at the user's weight.
func (s *Service) StopExercise(ctx context.Context, username string, sessionID int64) (store.Exercise, error) {
	if sessionID <= 0 {
		return store.Exercise{}, errors.New("session id is required to stop an exercise")
	}
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return store.Exercise{}, err
	}
	e, err := s.exercises.Exercise(ctx, u.ID, sessionID)
	if err != nil {
		return store.Exercise{}, err
	}
	if e.Finished() {
		return store.Exercise{}, fmt.Errorf("exercise session %d: %w", sessionID, store.ErrExerciseStopped)
	}

	e.EndTime = s.now()
	e.DurationSeconds = max(int(e.EndTime.Sub(e.StartTime).Seconds()), 0)
	e.CaloriesBurned = fitness.ExerciseCalories(u.WeightKG, time.Duration(e.DurationSeconds)*time.Second)
	if err := s.exercises.FinishExercise(ctx, e); err != nil {
		return store.Exercise{}, err
	}
	slog.Info("PLANNER: Exercise stopped",
		"user", u.Username,
		"session_id", e.ID,
		"duration_seconds", e.DurationSeconds,
		"calories_burned", e.CaloriesBurned,
	)
	return e, nil
}

// DailySummary is today's intake against the calorie target.
type DailySummary struct {
	Username          string          `json:"username"`
	ConsumedToday     float64         `json:"consumed_today"`
	TargetCalories    int             `json:"target_calories"`
	RemainingCalories float64         `json:"remaining_calories"`
	Goal              fitplanner.Goal `json:"goal"`
}

func (s *Service) DailySummary(ctx context.Context, username string) (DailySummary, error) {
	u, totals, err := s.today(ctx, username)
	if err != nil {
		return DailySummary{}, err
	}
	target := fitness.TargetCalories(u)
	return DailySummary{
		Username:          u.Username,
		ConsumedToday:     totals.Calories,
		TargetCalories:    target,
		RemainingCalories: float64(target) - totals.Calories,
		Goal:              u.Goal,
	}, nil
}

// MacroSummary is today's macro intake against a 30/40/30 split of the target.
type MacroSummary struct {
	Protein fitness.MacroProgress `json:"protein"`
	Carbs   fitness.MacroProgress `json:"carbs"`
	Fats    fitness.MacroProgress `json:"fats"`
}

func (s *Service) MacroSummary(ctx context.Context, username string) (MacroSummary, error) {
	u, totals, err := s.today(ctx, username)
	if err != nil {
		return MacroSummary{}, err
	}
	target := fitness.MacroTargets(fitness.TargetCalories(u))
	return MacroSummary{
		Protein: fitness.Progress(totals.Protein, target.Protein),
		Carbs:   fitness.Progress(totals.Carbs, target.Carbs),
		Fats:    fitness.Progress(totals.Fats, target.Fats),
	}, nil
}

func (s *Service) today(ctx context.Context, username string) (fitness.User, store.FoodTotals, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return fitness.User{}, store.FoodTotals{}, err
	}
	from, to := fitness.DayBounds(s.now())
	totals, err := s.logs.FoodTotals(ctx, u.ID, from, to)
	if err != nil {
		return fitness.User{}, store.FoodTotals{}, fmt.Errorf("failed to total food logs: %w", err)
	}
	return u, totals, nil
}

// ExerciseEntry is one finished session in the exercise summary. IsPR marks a
// session that matches the user's longest for its type.
type ExerciseEntry struct {
	Type      string    `json:"type"`
	Icon      string    `json:"icon"`
	Duration  string    `json:"duration"`
	Calories  int       `json:"calories"`
	IsPR      bool      `json:"isPR"`
	StartTime time.Time `json:"start_time"`
}

type ExerciseSummary struct {
	Exercises     []ExerciseEntry `json:"exercises"`
	TotalCalories int             `json:"total_calories"`
}

// ExerciseSummary lists today's finished sessions, newest first.
func (s *Service) ExerciseSummary(ctx context.Context, username string) (ExerciseSummary, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return ExerciseSummary{}, err
	}
	from, to := fitness.DayBounds(s.now())
	done, err := s.exercises.CompletedExercises(ctx, u.ID, from, to)
	if err != nil {
		return ExerciseSummary{}, err
	}
	longest, err := s.exercises.LongestDurations(ctx, u.ID)
	if err != nil {
		return ExerciseSummary{}, err
	}

	// A Caser holds state, so each call gets its own.
	title := cases.Title(language.English)
	sum := ExerciseSummary{Exercises: make([]ExerciseEntry, 0, len(done))}
	for _, e := range done {
		sum.TotalCalories += e.CaloriesBurned
		best, ok := longest[e.Type]
		sum.Exercises = append(sum.Exercises, ExerciseEntry{
			Type:      title.String(e.Type),
			Icon:      fitness.ExerciseIcon(e.Type),
			Duration:  fmt.Sprintf("%d min", e.DurationSeconds/60),
			Calories:  e.CaloriesBurned,
			IsPR:      ok && e.DurationSeconds == best,
			StartTime: e.StartTime,
		})
	}
	return sum, nil
}

// StreakData reports activity streaks over the last fitness.StreakWindowDays
// days and the current month's calendar.
func (s *Service) StreakData(ctx context.Context, username string) (fitness.StreakData, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return fitness.StreakData{}, err
	}
	now := s.now()
	today, _ := fitness.DayBounds(now)
	since := today.AddDate(0, 0, -fitness.StreakWindowDays)

	activity, err := s.exercises.ActivityTimes(ctx, u.ID, since)
	if err != nil {
		return fitness.StreakData{}, err
	}
	return fitness.Streak(activity, now), nil
}
