package planner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/model"
	"fitplanner/model/mock"
	"fitplanner/pipeline"
	"fitplanner/store"
	"fitplanner/store/sqlite"
)

type recordingRunner struct {
	next     Runner
	profiles []fitplanner.UserProfile
}

func (r *recordingRunner) Run(ctx context.Context, p fitplanner.UserProfile) pipeline.Bundle {
	r.profiles = append(r.profiles, p)
	return r.next.Run(ctx, p)
}

type recordingNotifier struct {
	users []string
	plans []string
	err   error
}

func (n *recordingNotifier) NotifyPlanReady(ctx context.Context, username string, p store.StoredPlan) error {
	n.users = append(n.users, username)
	n.plans = append(n.plans, p.ID)
	return n.err
}

type failingArchiver struct{}

func (failingArchiver) Archive(context.Context, store.StoredPlan) (string, error) {
	return "", errors.New("bucket unavailable")
}

type fixture struct {
	svc      *Service
	db       *sqlite.Store
	runner   *recordingRunner
	notifier *recordingNotifier
}

func newFixture(t *testing.T, client model.Client, opts Options) fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "fitness.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := &recordingRunner{next: pipeline.NewOrchestrator(client)}
	notifier := &recordingNotifier{}
	if opts.Notifier == nil {
		opts.Notifier = notifier
	}
	svc := NewService(db, db, db, db, runner, opts)

	_, err = svc.RegisterUser(context.Background(), fitness.User{
		Username: "Sam", Age: 30, Sex: "male", HeightCM: 180, WeightKG: 80, Goal: fitplanner.GoalLoseWeight,
	})
	require.NoError(t, err)
	return fixture{svc: svc, db: db, runner: runner, notifier: notifier}
}

func TestCreateMealPlan_Complete(t *testing.T) {
	f := newFixture(t, mock.NewClient(), Options{})
	ctx := context.Background()

	_, err := f.svc.LogFood(ctx, "sam", fitplanner.FoodEntry{Description: "oatmeal", Calories: 300})
	require.NoError(t, err)
	_, err = f.svc.LogFood(ctx, "sam", fitplanner.FoodEntry{Description: "burrito", Calories: 800})
	require.NoError(t, err)

	out, err := f.svc.CreateMealPlan(ctx, PlanRequest{Username: "SAM", Allergies: "peanuts, shellfish"})
	require.NoError(t, err)
	require.True(t, out.Bundle.Complete())
	assert.True(t, out.Saved())

	require.Len(t, f.runner.profiles, 1)
	p := f.runner.profiles[0]
	assert.Equal(t, fitplanner.GoalLoseWeight, p.Goal)
	assert.Equal(t, DefaultBudget, p.WeeklyBudget)
	assert.Equal(t, 1992, p.TargetCalories)
	assert.Equal(t, []string{"peanuts", "shellfish"}, p.Allergies)
	require.Len(t, p.FoodHistory, 2)
	assert.Equal(t, "burrito", p.FoodHistory[0].Description)

	assert.Equal(t, []string{"sam"}, f.notifier.users)
	assert.Equal(t, []string{out.PlanID}, f.notifier.plans)

	active, err := f.svc.ActivePlan(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, out.PlanID, active.ID)

	status, err := f.svc.PlanStatus(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status.Status)
	require.NotNil(t, status.PlanID)
	assert.Equal(t, out.PlanID, *status.PlanID)
	assert.NotNil(t, status.LastGenerated)
}

func TestCreateMealPlan_FailedBundleIsNotSaved(t *testing.T) {
	client := mock.NewScripted(
		mock.Step{Output: mock.Fixture("meal_plan")},
		mock.Step{Err: model.NewProviderError("mock", model.CategoryRateLimited, 429, errors.New("slow down"))},
	)
	f := newFixture(t, client, Options{})
	ctx := context.Background()

	out, err := f.svc.CreateMealPlan(ctx, PlanRequest{Username: "sam", Budget: 60})
	require.NoError(t, err)
	assert.True(t, out.Bundle.Failed())
	assert.False(t, out.Saved())
	assert.Equal(t, pipeline.StageShoppingList, out.Bundle.FailedStage)
	assert.NotNil(t, out.Bundle.Results.MealPlan)
	assert.Empty(t, f.notifier.users)

	_, err = f.svc.ActivePlan(ctx, "sam")
	assert.ErrorIs(t, err, store.ErrNotFound)

	status, err := f.svc.PlanStatus(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, PlanStatus{Status: StatusNoActivePlan}, status)
}

func TestCreateMealPlan_SideEffectFailuresAreBestEffort(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	f := newFixture(t, mock.NewClient(), Options{Archiver: failingArchiver{}, Notifier: notifier})

	out, err := f.svc.CreateMealPlan(context.Background(), PlanRequest{Username: "sam"})
	require.NoError(t, err)
	assert.True(t, out.Saved())
	assert.Empty(t, out.ArchiveKey)
	assert.Len(t, notifier.plans, 1)
}

func TestCreateMealPlan_ArchivesToDirectory(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, mock.NewClient(), Options{Archiver: store.NewDirArchiver(dir), DefaultBudget: 75})

	out, err := f.svc.CreateMealPlan(context.Background(), PlanRequest{Username: "sam"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.ArchiveKey, dir))
	assert.Equal(t, 75.0, f.runner.profiles[0].WeeklyBudget)

	archived, err := store.LoadArchive(out.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, out.PlanID, archived.ID)

	// The archive copy carries the stored creation time, not a second clock read.
	active, err := f.svc.ActivePlan(context.Background(), "sam")
	require.NoError(t, err)
	assert.True(t, active.CreatedAt.Equal(archived.CreatedAt), "active %v, archived %v", active.CreatedAt, archived.CreatedAt)
	assert.Equal(t, active.UserID, archived.UserID)
}

func TestCreateMealPlan_UnknownUser(t *testing.T) {
	f := newFixture(t, mock.NewClient(), Options{})

	_, err := f.svc.CreateMealPlan(context.Background(), PlanRequest{Username: "nobody"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.runner.profiles)

	_, err = f.svc.PlanStatus(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAllPlans_NewestFirst(t *testing.T) {
	f := newFixture(t, mock.NewClient(), Options{})
	ctx := context.Background()

	first, err := f.svc.CreateMealPlan(ctx, PlanRequest{Username: "sam"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.svc.CreateMealPlan(ctx, PlanRequest{Username: "sam"})
	require.NoError(t, err)

	plans, err := f.svc.AllPlans(ctx, "sam")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, second.PlanID, plans[0].ID)
	assert.Equal(t, first.PlanID, plans[1].ID)
	assert.True(t, plans[0].Active)
	assert.False(t, plans[1].Active)
}

func TestProfileAndRegister(t *testing.T) {
	f := newFixture(t, mock.NewClient(), Options{})
	ctx := context.Background()

	p, err := f.svc.Profile(ctx, " sam ")
	require.NoError(t, err)
	assert.Equal(t, "sam", p.Username)
	assert.Equal(t, 1992, p.TargetCalories)

	_, err = f.svc.RegisterUser(ctx, fitness.User{Username: "SAM", Age: 22, Sex: "female", HeightCM: 160, WeightKG: 50})
	assert.ErrorIs(t, err, store.ErrUserExists)
}

func TestLogFood_Validation(t *testing.T) {
	f := newFixture(t, mock.NewClient(), Options{})
	ctx := context.Background()

	logFood := func(username string, e fitplanner.FoodEntry) error {
		_, err := f.svc.LogFood(ctx, username, e)
		return err
	}
	assert.Error(t, logFood("sam", fitplanner.FoodEntry{Calories: 100}))
	assert.Error(t, logFood("sam", fitplanner.FoodEntry{Description: "x", Calories: -1}))
	assert.ErrorIs(t, logFood("nobody", fitplanner.FoodEntry{Description: "x"}), store.ErrNotFound)
}
