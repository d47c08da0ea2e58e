package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"fitplanner"
	"fitplanner/macros"
	"fitplanner/model"
	"fitplanner/model/provider"
	"fitplanner/pipeline"
	"fitplanner/planner"
	"fitplanner/slack"
	"fitplanner/store"
	"fitplanner/store/s3"
	"fitplanner/store/sqlite"
)

type configs struct {
	model    fitplanner.ModelConfig
	pipeline fitplanner.PipelineConfig
	store    fitplanner.StoreConfig
	notify   fitplanner.NotifyConfig
}

func loadConfigs() (configs, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("SETUP: Failed to load .env", "error", err)
	}

	var c configs
	for _, target := range []any{&c.model, &c.pipeline, &c.store, &c.notify} {
		if err := envdecode.Decode(target); err != nil {
			return c, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	return c, nil
}

// app holds the wired service and the cleanups to run on exit.
type app struct {
	cfg      configs
	db       *sqlite.Store
	svc      *planner.Service
	cleanups []func() error
}

// Close waits for background macro estimates before releasing resources.
func (a *app) Close() error {
	if a.svc != nil {
		a.svc.Wait()
	}
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		errs = append(errs, a.cleanups[i]())
	}
	return errors.Join(errs...)
}

// appNeeds is how much of the stack a command wires beyond the database.
type appNeeds int

const (
	needStore appNeeds = iota
	// needModel adds the model client for macro estimates.
	needModel
	// needPipeline adds the orchestrator and the side-effect sinks plan creation needs.
	needPipeline
)

// newApp opens the database and wires what needs asks for. Macro estimates and
// the pipeline share one model client and therefore one rate limit.
func newApp(ctx context.Context, needs appNeeds, stageLogs bool) (*app, error) {
	cfg, err := loadConfigs()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.store.DatabasePath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, cleanups: []func() error{db.Close}}

	opts := planner.Options{
		DefaultBudget:    cfg.pipeline.DefaultBudget,
		FoodHistoryLimit: cfg.pipeline.FoodHistoryLimit,
	}

	var runner planner.Runner = noPipeline{}
	if needs >= needModel {
		client, err := a.newModelClient(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts.Macros = macros.NewEstimator(client)

		if needs >= needPipeline {
			if runner, err = a.newOrchestrator(client, stageLogs); err != nil {
				a.Close()
				return nil, err
			}
			if opts.Archiver, err = newArchiver(ctx, cfg.store); err != nil {
				a.Close()
				return nil, err
			}
			if cfg.notify.SlackWebhookURL != "" {
				opts.Notifier = slack.NewClient(cfg.notify.SlackWebhookURL, cfg.notify.SlackChannel, http.DefaultClient)
			}
		}
	}

	a.svc = planner.NewService(db, db, db, db, runner, opts)
	return a, nil
}

// newModelClient returns the rate-limited provider client shared by every caller.
func (a *app) newModelClient(ctx context.Context) (model.Client, error) {
	otelShutdown, err := fitplanner.InitOtel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.cleanups = append(a.cleanups, func() error { return otelShutdown(context.Background()) })

	client, closeClient, err := provider.New(ctx, a.cfg.model, a.cfg.pipeline)
	if err != nil {
		return nil, err
	}
	a.cleanups = append(a.cleanups, closeClient)
	return client, nil
}

func (a *app) newOrchestrator(client model.Client, stageLogs bool) (*pipeline.Orchestrator, error) {
	var logger fitplanner.StageLogger = fitplanner.NewNoOpStageLogger()
	if stageLogs {
		fileLogger, cleanup, err := newStageLogger(cmp.Or(a.cfg.model.ModelID, a.cfg.model.Provider))
		if err != nil {
			return nil, err
		}
		logger = fileLogger
		a.cleanups = append(a.cleanups, cleanup)
	}

	return pipeline.NewOrchestrator(client,
		pipeline.WithStageLogger(logger),
		pipeline.WithCostPerSecond(a.cfg.pipeline.CostPerSecond),
		pipeline.WithFoodContextWindow(a.cfg.pipeline.FoodContextWindow),
	), nil
}

func newArchiver(ctx context.Context, cfg fitplanner.StoreConfig) (store.Archiver, error) {
	switch {
	case cfg.ArchiveS3Bucket != "":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return s3.NewArchiver(awss3.NewFromConfig(awsCfg), cfg.ArchiveS3Bucket, cfg.ArchiveS3Prefix), nil
	case cfg.ArchiveDir != "":
		return store.NewDirArchiver(cfg.ArchiveDir), nil
	default:
		return store.NoOpArchiver{}, nil
	}
}

func newStageLogger(modelID string) (fitplanner.StageLogger, func() error, error) {
	path := fitplanner.NewStageLogFilePath(modelID)
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := fitplanner.NewFileStageLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}

// noPipeline backs commands that never create plans.
type noPipeline struct{}

func (noPipeline) Run(context.Context, fitplanner.UserProfile) pipeline.Bundle {
	return pipeline.Bundle{State: pipeline.StateFailed, Err: errors.New("pipeline not configured")}
}
