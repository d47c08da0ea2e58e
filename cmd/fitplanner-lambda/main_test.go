package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplanner/pipeline"
	"fitplanner/planner"
	"fitplanner/store"
)

type fakeService struct {
	req     planner.PlanRequest
	outcome planner.PlanOutcome
	err     error
}

func (f *fakeService) CreateMealPlan(ctx context.Context, req planner.PlanRequest) (planner.PlanOutcome, error) {
	f.req = req
	return f.outcome, f.err
}

func (f *fakeService) ActivePlan(ctx context.Context, username string) (store.StoredPlan, error) {
	return store.StoredPlan{}, f.err
}

func (f *fakeService) AllPlans(ctx context.Context, username string) ([]store.StoredPlan, error) {
	return []store.StoredPlan{}, f.err
}

func (f *fakeService) PlanStatus(ctx context.Context, username string) (planner.PlanStatus, error) {
	return planner.PlanStatus{Status: planner.StatusNoActivePlan}, f.err
}

func TestHandle_CreateReturnsFailedBundleAsOutput(t *testing.T) {
	failed := pipeline.Bundle{State: pipeline.StateFailed, Err: errors.New("meal_plan stage failed: timeout"), ExecutionTime: 1.5}
	svc := &fakeService{outcome: planner.PlanOutcome{Bundle: failed}}
	h := &handler{svc: svc}

	res, err := h.Handle(context.Background(), Params{Username: "sam", Budget: 40, Allergies: "nuts"})
	require.NoError(t, err)
	assert.Empty(t, res.PlanID)
	assert.Equal(t, planner.PlanRequest{Username: "sam", Budget: 40, Allergies: "nuts"}, svc.req)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":{"error":"meal_plan stage failed: timeout","partial_results":{},"execution_time":1.5}}`, string(data))
}

func TestHandle_Errors(t *testing.T) {
	h := &handler{svc: &fakeService{err: store.ErrNotFound}}

	_, err := h.Handle(context.Background(), Params{Action: ActionCreate})
	assert.ErrorContains(t, err, "username is required")

	_, err = h.Handle(context.Background(), Params{Action: "delete", Username: "sam"})
	assert.ErrorContains(t, err, "unknown action")

	_, err = h.Handle(context.Background(), Params{Action: ActionActive, Username: "sam"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandle_Status(t *testing.T) {
	h := &handler{svc: &fakeService{}}
	res, err := h.Handle(context.Background(), Params{Action: ActionStatus, Username: "sam"})
	require.NoError(t, err)
	assert.Equal(t, planner.PlanStatus{Status: planner.StatusNoActivePlan}, res.Output)
}

func TestDatabasePath(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{name: "default relative name", in: "fitness.db", expected: "/tmp/fitness.db"},
		{name: "relative subdirectory", in: "data/fitness.db", expected: "/tmp/data/fitness.db"},
		{name: "absolute kept", in: "/mnt/efs/fitness.db", expected: "/mnt/efs/fitness.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, databasePath(tt.in))
		})
	}
}
