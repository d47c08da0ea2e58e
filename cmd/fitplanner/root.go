package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/planner"
)

var rootCmd = &cobra.Command{
	Use:          "fitplanner",
	Short:        "Generate weekly meal plans with a four-stage model pipeline",
	Long:         `fitplanner registers users, logs food and exercise, summarizes each day, and generates a meal plan, shopping list, health review and budget-optimized grocery list for a week.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

var (
	flagDebug     bool
	flagJSON      bool
	flagStageLogs bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print raw JSON instead of a rendered summary")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "dump full results to stderr")

	rootCmd.AddCommand(
		registerCmd(), logFoodCmd(), exerciseCmd(),
		planCmd(), activeCmd(), plansCmd(), statusCmd(),
		profileCmd(), summaryCmd(), streakCmd(),
	)
}

// withApp opens the app for a single command and closes it afterwards.
func withApp(cmd *cobra.Command, needs appNeeds, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, needs, flagStageLogs)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func registerCmd() *cobra.Command {
	var u fitness.User
	var goal string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a user and their body metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Username = args[0]
			u.Goal = fitplanner.Goal(goal)
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				created, err := a.svc.RegisterUser(ctx, u)
				if err != nil {
					return err
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("Registered %s (id %d)", created.Username, created.ID)))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&u.Age, "age", 0, "age in years")
	cmd.Flags().StringVar(&u.Sex, "sex", "", "male or female")
	cmd.Flags().IntVar(&u.HeightCM, "height", 0, "height in cm")
	cmd.Flags().IntVar(&u.WeightKG, "weight", 0, "weight in kg")
	cmd.Flags().StringVar(&goal, "goal", string(fitplanner.GoalMaintain), "lose_weight, gain_muscle or maintain")
	for _, f := range []string{"age", "sex", "height", "weight"} {
		cmd.MarkFlagRequired(f) // nolint: errcheck
	}
	return cmd
}

func logFoodCmd() *cobra.Command {
	var calories float64
	var at string
	var estimate bool
	cmd := &cobra.Command{
		Use:   "log-food <username> <description...>",
		Short: "Log a food entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := fitplanner.FoodEntry{Description: strings.Join(args[1:], " "), Calories: calories}
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				entry.Timestamp = ts
			}
			needs := needStore
			if estimate {
				needs = needModel
			}
			return withApp(cmd, needs, func(ctx context.Context, a *app) error {
				id, err := a.svc.LogFood(ctx, args[0], entry)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(map[string]any{"status": "logged", "log_id": id, "description": entry.Description, "calories": calories})
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("Logged %q (%.0f kcal)", entry.Description, calories)))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&calories, "calories", 0, "calories in the entry")
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 timestamp, defaults to now")
	cmd.Flags().BoolVar(&estimate, "estimate-macros", true, "ask the model for a macro split instead of the fixed 25/50/25 split")
	return cmd
}

func exerciseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exercise",
		Short: "Start or stop a timed exercise session",
	}

	var exerciseType string
	start := &cobra.Command{
		Use:   "start <username>",
		Short: "Start an exercise session and print its session id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				e, err := a.svc.StartExercise(ctx, args[0], exerciseType)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(map[string]any{"status": "exercise_started", "session_id": e.ID})
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("Started %s, session %d", e.Type, e.ID)))
				return nil
			})
		},
	}
	start.Flags().StringVar(&exerciseType, "type", "running", "running, walking, cycling, swimming, strength, yoga or other")

	stop := &cobra.Command{
		Use:   "stop <username> <session-id>",
		Short: "Stop an exercise session and record calories burned",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", args[1], err)
			}
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				e, err := a.svc.StopExercise(ctx, args[0], id)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(map[string]any{
						"status":           "exercise_stopped",
						"duration_seconds": e.DurationSeconds,
						"calories_burned":  e.CaloriesBurned,
					})
				}
				fmt.Println(renderExerciseStopped(e))
				return nil
			})
		},
	}

	cmd.AddCommand(start, stop)
	return cmd
}

func planCmd() *cobra.Command {
	var req planner.PlanRequest
	cmd := &cobra.Command{
		Use:   "plan <username>",
		Short: "Generate and activate a new weekly meal plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Username = args[0]
			return withApp(cmd, needPipeline, func(ctx context.Context, a *app) error {
				out, err := a.svc.CreateMealPlan(ctx, req)
				if flagDebug {
					fitplanner.Dump(out)
				}
				if err != nil && !out.Bundle.State.Terminal() {
					return err
				}
				if flagJSON {
					if jerr := printJSON(out.Bundle); jerr != nil {
						return jerr
					}
				} else {
					fmt.Println(renderBundle(out.Bundle))
					if out.Saved() {
						fmt.Println(subtleStyle.Render("plan id: " + out.PlanID))
					}
				}
				if err != nil {
					return err
				}
				if out.Bundle.Failed() {
					return fmt.Errorf("plan generation failed: %s", out.Bundle.ErrorMessage())
				}
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&req.Budget, "budget", 0, "weekly grocery budget in dollars (default from DEFAULT_BUDGET)")
	cmd.Flags().StringVar(&req.Allergies, "allergies", "", "comma-separated allergies")
	cmd.Flags().BoolVar(&flagStageLogs, "stage-logs", false, "write per-stage prompts and outputs to ./logs")
	return cmd
}

func activeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active <username>",
		Short: "Show the active meal plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				p, err := a.svc.ActivePlan(ctx, args[0])
				if err != nil {
					return err
				}
				if flagDebug {
					fitplanner.Dump(p)
				}
				if flagJSON {
					return printJSON(p.Bundle)
				}
				fmt.Println(renderBundle(p.Bundle))
				fmt.Println(subtleStyle.Render(fmt.Sprintf("plan id: %s, created %s", p.ID, p.CreatedAt.Format(time.RFC3339))))
				return nil
			})
		},
	}
}

func plansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans <username>",
		Short: "List every meal plan, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				plans, err := a.svc.AllPlans(ctx, args[0])
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(plans)
				}
				fmt.Println(renderPlanList(plans))
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <username>",
		Short: "Show whether the user has an active plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				status, err := a.svc.PlanStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(status)
				}
				fmt.Println(renderStatus(status))
				return nil
			})
		},
	}
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <username>",
		Short: "Show the user's metrics and calorie target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				p, err := a.svc.Profile(ctx, args[0])
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(p)
				}
				fmt.Println(renderProfile(p))
				return nil
			})
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <username>",
		Short: "Show today's calories, macros and exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				daily, err := a.svc.DailySummary(ctx, args[0])
				if err != nil {
					return err
				}
				macros, err := a.svc.MacroSummary(ctx, args[0])
				if err != nil {
					return err
				}
				exercise, err := a.svc.ExerciseSummary(ctx, args[0])
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(map[string]any{"summary": daily, "macros": macros, "exercise": exercise})
				}
				fmt.Println(renderDailySummary(daily, macros, exercise))
				return nil
			})
		},
	}
}

func streakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak <username>",
		Short: "Show activity streaks and this month's calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, needStore, func(ctx context.Context, a *app) error {
				sd, err := a.svc.StreakData(ctx, args[0])
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(sd)
				}
				fmt.Println(renderStreak(sd))
				return nil
			})
		},
	}
}
