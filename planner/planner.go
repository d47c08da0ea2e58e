// Package planner is the caller-side service around the pipeline: it resolves
// users and their food history, runs the pipeline, and persists complete plans.
// It also owns food and exercise logging and the daily summaries built on them.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/pipeline"
	"fitplanner/store"
)

const (
	DefaultBudget           = 100.0
	DefaultFoodHistoryLimit = 20

	StatusActive       = "active"
	StatusNoActivePlan = "no_active_plan"
)

// Runner runs one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, profile fitplanner.UserProfile) pipeline.Bundle
}

type Notifier interface {
	NotifyPlanReady(ctx context.Context, username string, p store.StoredPlan) error
}

// MacroEstimator splits a food's calories into macros. It never fails.
type MacroEstimator interface {
	Estimate(ctx context.Context, description string, calories float64) fitness.Macros
}

type Options struct {
	DefaultBudget    float64
	FoodHistoryLimit int
	// Archiver and Notifier are best-effort; their failures are logged only.
	Archiver store.Archiver
	Notifier Notifier
	// Macros fills in food log macros after the entry is stored. Without it
	// entries are stored with the fallback split.
	Macros MacroEstimator
	Tracer trace.Tracer
	// Clock defaults to time.Now. Its location decides where "today" starts.
	Clock func() time.Time
}

type Service struct {
	users     store.UserStore
	logs      store.FoodLogStore
	exercises store.ExerciseStore
	plans     store.PlanStore
	runner    Runner
	archiver  store.Archiver
	notifier  Notifier
	macros    MacroEstimator
	tracer    trace.Tracer
	now       func() time.Time

	defaultBudget float64
	historyLimit  int

	pending sync.WaitGroup
}

func NewService(users store.UserStore, logs store.FoodLogStore, exercises store.ExerciseStore, plans store.PlanStore, runner Runner, opts Options) *Service {
	s := &Service{
		users:         users,
		logs:          logs,
		exercises:     exercises,
		plans:         plans,
		runner:        runner,
		archiver:      opts.Archiver,
		notifier:      opts.Notifier,
		macros:        opts.Macros,
		tracer:        opts.Tracer,
		now:           opts.Clock,
		defaultBudget: opts.DefaultBudget,
		historyLimit:  opts.FoodHistoryLimit,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.defaultBudget <= 0 {
		s.defaultBudget = DefaultBudget
	}
	if s.historyLimit <= 0 {
		s.historyLimit = DefaultFoodHistoryLimit
	}
	if s.archiver == nil {
		s.archiver = store.NoOpArchiver{}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(fitplanner.TracerNamePlanner)
	}
	return s
}

// PlanRequest asks for a new plan. A non-positive Budget uses the default;
// Allergies is a comma-separated list.
type PlanRequest struct {
	Username  string
	Budget    float64
	Allergies string
}

// PlanOutcome carries the pipeline bundle and, when it was saved, the plan id.
type PlanOutcome struct {
	Bundle     pipeline.Bundle
	PlanID     string
	ArchiveKey string
}

func (o PlanOutcome) Saved() bool {
	return o.PlanID != ""
}

// CreateMealPlan runs the pipeline for the user and activates the result when
// it is complete. A failed bundle is returned without an error; the error is
// reserved for lookups and persistence.
func (s *Service) CreateMealPlan(ctx context.Context, req PlanRequest) (PlanOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreateMealPlan", trace.WithAttributes(
		attribute.String("user.name", fitness.NormalizeUsername(req.Username)),
	))
	defer span.End()

	user, err := s.users.UserByUsername(ctx, req.Username)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return PlanOutcome{}, err
	}

	history, err := s.logs.RecentFoodLogs(ctx, user.ID, s.historyLimit)
	if err != nil {
		span.SetStatus(codes.Error, "food history failed")
		return PlanOutcome{}, fmt.Errorf("failed to load food history: %w", err)
	}

	budget := req.Budget
	if budget <= 0 {
		budget = s.defaultBudget
	}
	profile := fitness.BuildProfile(user, history, budget, fitness.ParseAllergies(req.Allergies))
	slog.Info("PLANNER: Creating meal plan",
		"user", user.Username,
		"target_calories", profile.TargetCalories,
		"budget", budget,
		"history", len(history),
	)

	out := PlanOutcome{Bundle: s.runner.Run(ctx, profile)}
	if !out.Bundle.Complete() {
		span.SetStatus(codes.Error, "pipeline failed")
		slog.Warn("PLANNER: Plan not saved", "user", user.Username, "error", out.Bundle.ErrorMessage())
		return out, nil
	}

	saved, err := s.plans.Save(ctx, user.ID, out.Bundle)
	if err != nil {
		span.SetStatus(codes.Error, "save failed")
		return out, fmt.Errorf("failed to save plan: %w", err)
	}
	out.PlanID = saved.ID
	span.SetAttributes(attribute.String("plan.id", out.PlanID))

	if key, err := s.archiver.Archive(ctx, saved); err != nil {
		slog.Warn("PLANNER: Archive failed", "plan_id", out.PlanID, "error", err)
	} else {
		out.ArchiveKey = key
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyPlanReady(ctx, user.Username, saved); err != nil {
			slog.Warn("PLANNER: Notification failed", "plan_id", out.PlanID, "error", err)
		}
	}

	span.SetStatus(codes.Ok, "plan saved")
	slog.Info("PLANNER: Plan saved", "user", user.Username, "plan_id", out.PlanID)
	return out, nil
}

func (s *Service) ActivePlan(ctx context.Context, username string) (store.StoredPlan, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return store.StoredPlan{}, err
	}
	return s.plans.Active(ctx, user.ID)
}

// AllPlans lists the user's plans, newest first.
func (s *Service) AllPlans(ctx context.Context, username string) ([]store.StoredPlan, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.plans.List(ctx, user.ID)
}

type PlanStatus struct {
	Status        string     `json:"status"`
	LastGenerated *time.Time `json:"last_generated"`
	PlanID        *string    `json:"plan_id"`
}

func (s *Service) PlanStatus(ctx context.Context, username string) (PlanStatus, error) {
	p, err := s.ActivePlan(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		if _, uerr := s.users.UserByUsername(ctx, username); uerr != nil {
			return PlanStatus{}, uerr
		}
		return PlanStatus{Status: StatusNoActivePlan}, nil
	}
	if err != nil {
		return PlanStatus{}, err
	}
	return PlanStatus{Status: StatusActive, LastGenerated: &p.CreatedAt, PlanID: &p.ID}, nil
}

func (s *Service) RegisterUser(ctx context.Context, u fitness.User) (fitness.User, error) {
	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return fitness.User{}, err
	}
	slog.Info("PLANNER: User registered", "user", created.Username, "id", created.ID)
	return created, nil
}

// Profile is the user's stored metrics plus the derived calorie target.
type Profile struct {
	fitness.User
	TargetCalories int `json:"target_calories"`
}

func (s *Service) Profile(ctx context.Context, username string) (Profile, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, TargetCalories: fitness.TargetCalories(u)}, nil
}

// LogFood appends a food entry, stamped now when the timestamp is zero, and
// returns its id. Macros are estimated in the background; Wait blocks until
// every pending estimate is stored.
func (s *Service) LogFood(ctx context.Context, username string, entry fitplanner.FoodEntry) (int64, error) {
	if entry.Description == "" {
		return 0, errors.New("food description is required")
	}
	if entry.Calories < 0 {
		return 0, fmt.Errorf("calories must not be negative, got %v", entry.Calories)
	}
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	l := store.FoodLog{UserID: u.ID, Type: "food", FoodEntry: entry}
	if s.macros == nil {
		l.Macros = fitness.FallbackMacros(entry.Calories)
	}
	id, err := s.logs.AddFoodLog(ctx, l)
	if err != nil {
		return 0, err
	}
	if s.macros != nil {
		bg := context.WithoutCancel(ctx)
		s.pending.Go(func() { s.updateMacros(bg, id, entry) })
	}
	return id, nil
}

func (s *Service) updateMacros(ctx context.Context, logID int64, entry fitplanner.FoodEntry) {
	m := s.macros.Estimate(ctx, entry.Description, entry.Calories)
	if err := s.logs.UpdateMacros(ctx, logID, m); err != nil {
		slog.Warn("PLANNER: Macro update failed", "log_id", logID, "error", err)
		return
	}
	slog.Info("PLANNER: Macros stored", "log_id", logID)
}

// Wait blocks until background macro estimates have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}
