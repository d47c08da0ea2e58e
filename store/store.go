// Package store defines persistence contracts for users, food and exercise
// logs, and meal plans.
package store

import (
	"context"
	"errors"
	"time"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/pipeline"
)

// SchemaVersion is stamped on every saved plan record.
const SchemaVersion = 1

var (
	ErrNotFound     = errors.New("not found")
	ErrFailedBundle = errors.New("refusing to save a failed bundle")
	ErrUserExists   = errors.New("user already exists")

	// ErrExerciseStopped is returned when finishing a session that already has an end time.
	ErrExerciseStopped = errors.New("exercise session already stopped")
)

// StoredPlan is a persisted Complete bundle.
type StoredPlan struct {
	ID        string          `json:"plan_id"`
	UserID    int64           `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	Active    bool            `json:"is_active"`
	Version   int             `json:"schema_version"`
	Bundle    pipeline.Bundle `json:"plan_data"`
}

// PlanStore persists plans. At most one plan per user is active.
type PlanStore interface {
	// Save deactivates the user's plans and stores b as the active plan. The
	// returned record is exactly what Active will read back.
	Save(ctx context.Context, userID int64, b pipeline.Bundle) (StoredPlan, error)
	Active(ctx context.Context, userID int64) (StoredPlan, error)
	// List returns every plan for the user, newest first.
	List(ctx context.Context, userID int64) ([]StoredPlan, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u fitness.User) (fitness.User, error)
	UserByUsername(ctx context.Context, username string) (fitness.User, error)
}

// FoodLog is one logged food entry. Macros start at zero and are filled in
// once estimated.
type FoodLog struct {
	ID     int64
	UserID int64
	Type   string
	fitplanner.FoodEntry
	fitness.Macros
}

// FoodTotals sums the food logged in a time range.
type FoodTotals struct {
	Calories float64
	fitness.Macros
}

type FoodLogStore interface {
	// AddFoodLog inserts l and returns its id.
	AddFoodLog(ctx context.Context, l FoodLog) (int64, error)
	UpdateMacros(ctx context.Context, logID int64, m fitness.Macros) error
	// RecentFoodLogs returns up to limit entries, most recent first.
	RecentFoodLogs(ctx context.Context, userID int64, limit int) ([]fitplanner.FoodEntry, error)
	// FoodTotals sums entries with from <= timestamp < to.
	FoodTotals(ctx context.Context, userID int64, from, to time.Time) (FoodTotals, error)
}

// Exercise is one timed exercise session. EndTime is zero while it runs.
type Exercise struct {
	ID              int64     `json:"session_id"`
	UserID          int64     `json:"user_id"`
	Type            string    `json:"exercise_type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int       `json:"duration_seconds"`
	CaloriesBurned  int       `json:"calories_burned"`
}

func (e Exercise) Finished() bool {
	return !e.EndTime.IsZero()
}

type ExerciseStore interface {
	// StartExercise opens a session and returns its id.
	StartExercise(ctx context.Context, userID int64, exerciseType string, start time.Time) (int64, error)
	// Exercise returns the user's session, or ErrNotFound.
	Exercise(ctx context.Context, userID, sessionID int64) (Exercise, error)
	// FinishExercise records the end of a running session. It returns
	// ErrExerciseStopped when the session already ended.
	FinishExercise(ctx context.Context, e Exercise) error
	// CompletedExercises returns finished sessions started in [from, to), newest first.
	CompletedExercises(ctx context.Context, userID int64, from, to time.Time) ([]Exercise, error)
	// LongestDurations maps each exercise type to the user's longest finished session, in seconds.
	LongestDurations(ctx context.Context, userID int64) (map[string]int, error)
	// ActivityTimes returns food log times and finished exercise start times at or after since.
	ActivityTimes(ctx context.Context, userID int64, since time.Time) ([]time.Time, error)
}
