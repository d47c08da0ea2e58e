// Package sqlite implements the store contracts on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fitplanner"
	"fitplanner/fitness"
	"fitplanner/pipeline"
	"fitplanner/store"
)

// timeLayout sorts lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const defaultFoodLogLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    age INTEGER NOT NULL,
    sex TEXT NOT NULL,
    height_cm INTEGER NOT NULL,
    weight_kg INTEGER NOT NULL,
    goal TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    type TEXT NOT NULL,
    description TEXT NOT NULL,
    calories REAL NOT NULL,
    protein REAL NOT NULL DEFAULT 0,
    carbs REAL NOT NULL DEFAULT 0,
    fats REAL NOT NULL DEFAULT 0,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS meal_plans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id TEXT NOT NULL UNIQUE,
    user_id INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    plan_data TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 0,
    schema_version INTEGER NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS exercise_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    exercise_type TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    calories_burned INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_exercise_logs_user_start ON exercise_logs(user_id, start_time);
CREATE INDEX IF NOT EXISTS idx_user_logs_user_ts ON user_logs(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_meal_plans_user_created ON meal_plans(user_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_meal_plans_one_active ON meal_plans(user_id) WHERE is_active = 1;
`

var (
	_ store.PlanStore     = (*Store)(nil)
	_ store.UserStore     = (*Store)(nil)
	_ store.FoodLogStore  = (*Store)(nil)
	_ store.ExerciseStore = (*Store)(nil)
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps the per-connection pragmas in force and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	slog.Info("STORE: Database ready", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u fitness.User) (fitness.User, error) {
	u.Username = fitness.NormalizeUsername(u.Username)
	goal, err := fitplanner.ParseGoal(string(u.Goal))
	if err != nil {
		return fitness.User{}, err
	}
	u.Goal = goal
	if err := u.Validate(); err != nil {
		return fitness.User{}, fmt.Errorf("invalid user: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fitness.User{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username = ?`, u.Username).Scan(&exists); err != nil {
		return fitness.User{}, fmt.Errorf("failed to check username: %w", err)
	}
	if exists > 0 {
		return fitness.User{}, fmt.Errorf("%q: %w", u.Username, store.ErrUserExists)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, age, sex, height_cm, weight_kg, goal) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Age, u.Sex, u.HeightCM, u.WeightKG, string(u.Goal))
	if err != nil {
		return fitness.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return fitness.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fitness.User{}, fmt.Errorf("failed to commit user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (fitness.User, error) {
	var (
		u    fitness.User
		goal string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, age, sex, height_cm, weight_kg, goal FROM users WHERE username = ?`,
		fitness.NormalizeUsername(username)).
		Scan(&u.ID, &u.Username, &u.Age, &u.Sex, &u.HeightCM, &u.WeightKG, &goal)
	if errors.Is(err, sql.ErrNoRows) {
		return fitness.User{}, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	if err != nil {
		return fitness.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	u.Goal = fitplanner.Goal(goal)
	return u, nil
}

func (s *Store) AddFoodLog(ctx context.Context, l store.FoodLog) (int64, error) {
	ts := l.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	if l.Type == "" {
		l.Type = "food"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_logs (user_id, timestamp, type, description, calories, protein, carbs, fats)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.UserID, formatTime(ts), l.Type, l.Description, l.Calories, l.Protein, l.Carbs, l.Fats)
	if err != nil {
		return 0, fmt.Errorf("failed to insert food log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read food log id: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateMacros(ctx context.Context, logID int64, m fitness.Macros) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_logs SET protein = ?, carbs = ?, fats = ? WHERE id = ?`,
		m.Protein, m.Carbs, m.Fats, logID)
	if err != nil {
		return fmt.Errorf("failed to update macros: %w", err)
	}
	return expectRow(res, fmt.Sprintf("food log %d", logID))
}

func (s *Store) FoodTotals(ctx context.Context, userID int64, from, to time.Time) (store.FoodTotals, error) {
	var t store.FoodTotals
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(calories), 0), COALESCE(SUM(protein), 0), COALESCE(SUM(carbs), 0), COALESCE(SUM(fats), 0)
         FROM user_logs WHERE user_id = ? AND timestamp >= ? AND timestamp < ?`,
		userID, formatTime(from), formatTime(to)).
		Scan(&t.Calories, &t.Protein, &t.Carbs, &t.Fats)
	if err != nil {
		return store.FoodTotals{}, fmt.Errorf("failed to sum food logs: %w", err)
	}
	return t, nil
}

func (s *Store) RecentFoodLogs(ctx context.Context, userID int64, limit int) ([]fitplanner.FoodEntry, error) {
	if limit <= 0 {
		limit = defaultFoodLogLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT description, calories, timestamp FROM user_logs
         WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query food logs: %w", err)
	}
	defer rows.Close()

	entries := []fitplanner.FoodEntry{}
	for rows.Next() {
		var (
			e  fitplanner.FoodEntry
			ts string
		)
		if err := rows.Scan(&e.Description, &e.Calories, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan food log: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save stores b as the user's only active plan in a single transaction.
func (s *Store) Save(ctx context.Context, userID int64, b pipeline.Bundle) (store.StoredPlan, error) {
	if !b.Complete() {
		return store.StoredPlan{}, store.ErrFailedBundle
	}
	data, err := json.Marshal(b)
	if err != nil {
		return store.StoredPlan{}, fmt.Errorf("failed to encode bundle: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.StoredPlan{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE meal_plans SET is_active = 0 WHERE user_id = ? AND is_active = 1`, userID); err != nil {
		return store.StoredPlan{}, fmt.Errorf("failed to deactivate plans: %w", err)
	}

	p := store.StoredPlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Active:    true,
		Version:   store.SchemaVersion,
		Bundle:    b,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meal_plans (plan_id, user_id, created_at, plan_data, is_active, schema_version)
         VALUES (?, ?, ?, ?, 1, ?)`,
		p.ID, userID, formatTime(p.CreatedAt), string(data), p.Version); err != nil {
		return store.StoredPlan{}, fmt.Errorf("failed to insert plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.StoredPlan{}, fmt.Errorf("failed to commit plan: %w", err)
	}
	slog.Info("STORE: Plan saved", "plan_id", p.ID, "user_id", userID)
	return p, nil
}

const planColumns = `plan_id, user_id, created_at, plan_data, is_active, schema_version`

func (s *Store) Active(ctx context.Context, userID int64) (store.StoredPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM meal_plans
         WHERE user_id = ? AND is_active = 1 ORDER BY created_at DESC LIMIT 1`, userID)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.StoredPlan{}, fmt.Errorf("active plan for user %d: %w", userID, store.ErrNotFound)
	}
	return p, err
}

func (s *Store) List(ctx context.Context, userID int64) ([]store.StoredPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM meal_plans
         WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	plans := []store.StoredPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(sc scanner) (store.StoredPlan, error) {
	var (
		p         store.StoredPlan
		createdAt string
		data      string
	)
	if err := sc.Scan(&p.ID, &p.UserID, &createdAt, &data, &p.Active, &p.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan plan: %w", err)
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(data), &p.Bundle); err != nil {
		return p, fmt.Errorf("failed to decode plan %s: %w", p.ID, err)
	}
	return p, nil
}

// expectRow maps an update that touched nothing to store.ErrNotFound.
func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
