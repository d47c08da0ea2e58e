package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"fitplanner"
	"fitplanner/model/provider"
	"fitplanner/pipeline"
	"fitplanner/planner"
	"fitplanner/slack"
	"fitplanner/store"
	"fitplanner/store/s3"
	"fitplanner/store/sqlite"
)

func main() {
	godotenv.Load() // nolint: errcheck

	var (
		modelConfig    fitplanner.ModelConfig
		pipelineConfig fitplanner.PipelineConfig
		storeConfig    fitplanner.StoreConfig
		notifyConfig   fitplanner.NotifyConfig
	)
	for _, target := range []any{&modelConfig, &pipelineConfig, &storeConfig, &notifyConfig} {
		if err := envdecode.Decode(target); err != nil {
			log.Fatalf("SETUP: Failed to decode: %s", err)
		}
	}

	ctx := context.Background()

	otelShutdown, err := fitplanner.InitOtel(ctx)
	if err != nil {
		log.Fatalf("SETUP: Failed to initialize OpenTelemetry: %s", err)
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	db, err := sqlite.Open(databasePath(storeConfig.DatabasePath))
	if err != nil {
		log.Fatalf("SETUP: Failed to open database: %s", err)
	}
	defer db.Close()

	client, closeClient, err := provider.New(ctx, modelConfig, pipelineConfig)
	if err != nil {
		log.Fatalf("SETUP: Failed to create model client: %s", err)
	}
	defer closeClient() // nolint: errcheck

	orchestrator := pipeline.NewOrchestrator(client,
		pipeline.WithStageLogger(fitplanner.NewStdoutStageLogger()),
		pipeline.WithCostPerSecond(pipelineConfig.CostPerSecond),
		pipeline.WithFoodContextWindow(pipelineConfig.FoodContextWindow),
	)

	opts := planner.Options{
		DefaultBudget:    pipelineConfig.DefaultBudget,
		FoodHistoryLimit: pipelineConfig.FoodHistoryLimit,
		Archiver:         store.NoOpArchiver{},
	}
	if storeConfig.ArchiveS3Bucket != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("SETUP: Failed to load AWS config: %s", err)
		}
		opts.Archiver = s3.NewArchiver(awss3.NewFromConfig(awsCfg), storeConfig.ArchiveS3Bucket, storeConfig.ArchiveS3Prefix)
		slog.Info("SETUP: S3 plan archive enabled", "bucket", storeConfig.ArchiveS3Bucket)
	}
	if notifyConfig.SlackWebhookURL != "" {
		opts.Notifier = slack.NewClient(notifyConfig.SlackWebhookURL, notifyConfig.SlackChannel, http.DefaultClient)
	}

	h := &handler{svc: planner.NewService(db, db, db, db, orchestrator, opts)}
	lambda.Start(h.Handle)
}

// lambdaTmpDir is the only writable path in the Lambda runtime.
const lambdaTmpDir = "/tmp"

// databasePath resolves a relative database path under /tmp, since the task
// directory is read-only. The database lives and dies with the execution
// environment: each warm instance has its own users, logs and plans, and a
// cold start begins empty. Archive plans to S3 for anything that must persist.
func databasePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(lambdaTmpDir, p)
}

const (
	ActionCreate = "create"
	ActionActive = "active"
	ActionPlans  = "plans"
	ActionStatus = "status"
)

type Params struct {
	Action    string  `json:"action"`
	Username  string  `json:"username"`
	Budget    float64 `json:"budget,omitempty"`
	Allergies string  `json:"allergies,omitempty"`
}

type Results struct {
	PlanID string `json:"plan_id,omitempty"`
	Output any    `json:"output"`
}

type service interface {
	CreateMealPlan(ctx context.Context, req planner.PlanRequest) (planner.PlanOutcome, error)
	ActivePlan(ctx context.Context, username string) (store.StoredPlan, error)
	AllPlans(ctx context.Context, username string) ([]store.StoredPlan, error)
	PlanStatus(ctx context.Context, username string) (planner.PlanStatus, error)
}

type handler struct {
	svc service
}

// Handle dispatches one invocation. A failed pipeline run is returned as
// output, not as an invocation error.
func (h *handler) Handle(ctx context.Context, params Params) (Results, error) {
	if params.Username == "" {
		return Results{}, fmt.Errorf("username is required")
	}

	switch params.Action {
	case ActionCreate, "":
		out, err := h.svc.CreateMealPlan(ctx, planner.PlanRequest{
			Username:  params.Username,
			Budget:    params.Budget,
			Allergies: params.Allergies,
		})
		if err != nil {
			slog.Error("RESULT: Error creating plan", "user", params.Username, "error", err)
			return Results{}, err
		}
		return Results{PlanID: out.PlanID, Output: out.Bundle}, nil
	case ActionActive:
		p, err := h.svc.ActivePlan(ctx, params.Username)
		if err != nil {
			return Results{}, err
		}
		return Results{PlanID: p.ID, Output: p.Bundle}, nil
	case ActionPlans:
		plans, err := h.svc.AllPlans(ctx, params.Username)
		if err != nil {
			return Results{}, err
		}
		return Results{Output: plans}, nil
	case ActionStatus:
		status, err := h.svc.PlanStatus(ctx, params.Username)
		if err != nil {
			return Results{}, err
		}
		return Results{Output: status}, nil
	default:
		return Results{}, fmt.Errorf("unknown action %q", params.Action)
	}
}
