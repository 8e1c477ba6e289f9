package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run is one capture session. It records counts only.
type Run struct {
	ID        uuid.UUID
	Source    string
	Detector  string
	StartedAt time.Time
	EndedAt   *time.Time
	Frames    int64
	AvgFPS    float64
}

// RunRepository records capture sessions.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Start inserts a new run. A nil ID is replaced with a fresh UUID and a zero
// StartedAt with the current time.
func (r *RunRepository) Start(run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, source, detector, started_at) VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.Source, run.Detector, run.StartedAt,
	)
	return err
}

// Finish stamps the end of a run with its frame count and average frame rate.
func (r *RunRepository) Finish(id uuid.UUID, frames int64, avgFPS float64) error {
	result, err := r.db.Exec(
		`UPDATE runs SET ended_at = ?, frames = ?, avg_fps = ? WHERE id = ?`,
		time.Now(), frames, avgFPS, id.String(),
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(id uuid.UUID) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, source, detector, started_at, ended_at, frames, avg_fps FROM runs WHERE id = ?`,
		id.String(),
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns all runs, newest first.
func (r *RunRepository) List() ([]*Run, error) {
	rows, err := r.db.Query(
		`SELECT id, source, detector, started_at, ended_at, frames, avg_fps FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run   Run
		ended sql.NullTime
	)
	if err := s.Scan(&run.ID, &run.Source, &run.Detector, &run.StartedAt, &ended, &run.Frames, &run.AvgFPS); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		run.EndedAt = &t
	}
	return &run, nil
}
