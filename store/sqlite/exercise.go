package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitplanner/store"
)

const exerciseColumns = `id, user_id, exercise_type, start_time, end_time, duration_seconds, calories_burned`

func (s *Store) StartExercise(ctx context.Context, userID int64, exerciseType string, start time.Time) (int64, error) {
	if start.IsZero() {
		start = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exercise_logs (user_id, exercise_type, start_time) VALUES (?, ?, ?)`,
		userID, exerciseType, formatTime(start))
	if err != nil {
		return 0, fmt.Errorf("failed to insert exercise: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read exercise id: %w", err)
	}
	return id, nil
}

func (s *Store) Exercise(ctx context.Context, userID, sessionID int64) (store.Exercise, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+exerciseColumns+` FROM exercise_logs WHERE id = ? AND user_id = ?`, sessionID, userID)
	e, err := scanExercise(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Exercise{}, fmt.Errorf("exercise session %d: %w", sessionID, store.ErrNotFound)
	}
	return e, err
}

func (s *Store) FinishExercise(ctx context.Context, e store.Exercise) error {
	if !e.Finished() {
		return errors.New("exercise end time is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE exercise_logs SET end_time = ?, duration_seconds = ?, calories_burned = ?
         WHERE id = ? AND user_id = ? AND end_time IS NULL`,
		formatTime(e.EndTime), e.DurationSeconds, e.CaloriesBurned, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("failed to finish exercise: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing updated: tell a missing session from a stopped one.
	if _, err := s.Exercise(ctx, e.UserID, e.ID); err != nil {
		return err
	}
	return fmt.Errorf("exercise session %d: %w", e.ID, store.ErrExerciseStopped)
}

func (s *Store) CompletedExercises(ctx context.Context, userID int64, from, to time.Time) ([]store.Exercise, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exerciseColumns+` FROM exercise_logs
         WHERE user_id = ? AND start_time >= ? AND start_time < ? AND end_time IS NOT NULL
         ORDER BY start_time DESC, id DESC`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query exercises: %w", err)
	}
	defer rows.Close()

	exercises := []store.Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

func (s *Store) LongestDurations(ctx context.Context, userID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_type, MAX(duration_seconds) FROM exercise_logs
         WHERE user_id = ? AND end_time IS NOT NULL GROUP BY exercise_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exercise records: %w", err)
	}
	defer rows.Close()

	longest := map[string]int{}
	for rows.Next() {
		var (
			typ string
			sec int
		)
		if err := rows.Scan(&typ, &sec); err != nil {
			return nil, fmt.Errorf("failed to scan exercise record: %w", err)
		}
		longest[typ] = sec
	}
	return longest, rows.Err()
}

func (s *Store) ActivityTimes(ctx context.Context, userID int64, since time.Time) ([]time.Time, error) {
	from := formatTime(since)
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp FROM user_logs WHERE user_id = ? AND timestamp >= ?
         UNION ALL
         SELECT start_time FROM exercise_logs WHERE user_id = ? AND start_time >= ? AND end_time IS NOT NULL`,
		userID, from, userID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	times := []time.Time{}
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func scanExercise(sc scanner) (store.Exercise, error) {
	var (
		e     store.Exercise
		start string
		end   sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.UserID, &e.Type, &start, &end, &e.DurationSeconds, &e.CaloriesBurned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan exercise: %w", err)
	}
	var err error
	if e.StartTime, err = parseTime(start); err != nil {
		return e, err
	}
	if end.Valid {
		if e.EndTime, err = parseTime(end.String); err != nil {
			return e, err
		}
	}
	return e, nil
}
