// Package sqlite persists per-step diagnostic traces of pushing runs.
package sqlite

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/skatepush/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Session is one recorded run.
type Session struct {
	SessionID string             `json:"session_id"`
	TaskName  string             `json:"task_name"`
	Params    map[string]float64 `json:"params,omitempty"`
	CreatedAt int64              `json:"created_at"`
}

// StepRecord is one control step of a session.
type StepRecord struct {
	SessionID    string             `json:"session_id"`
	Step         int                `json:"step"`
	SimTime      float64            `json:"sim_time"`
	Mode         int                `json:"mode"`
	FrameIndex   float64            `json:"frame_index"`
	GoalX        float64            `json:"goal_x"`
	GoalY        float64            `json:"goal_y"`
	Relocated    bool               `json:"relocated"`
	ResidualNorm float64            `json:"residual_norm"`
	BlockNorms   map[string]float64 `json:"block_norms,omitempty"`
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store is a SQLite-backed trace store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// embedded schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db.
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Prefixed("migrate")(format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// NewSession records a new run and returns its generated id.
func (s *Store) NewSession(taskName string, params map[string]float64) (string, error) {
	id := uuid.New().String()
	var paramsStr interface{}
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("marshal params: %w", err)
		}
		paramsStr = string(b)
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO push_sessions (session_id, task_name, params_json, created_at)
			VALUES (?, ?, ?, ?)`,
			id, taskName, paramsStr, time.Now().UnixNano(),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	var paramsStr sql.NullString
	err := s.db.QueryRow(`
		SELECT session_id, task_name, params_json, created_at
		FROM push_sessions
		WHERE session_id = ?`, id,
	).Scan(&sess.SessionID, &sess.TaskName, &paramsStr, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s not found", id)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if paramsStr.Valid {
		if err := json.Unmarshal([]byte(paramsStr.String), &sess.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	return &sess, nil
}

// InsertStep appends one step to its session.
func (s *Store) InsertStep(r StepRecord) error {
	var normsStr interface{}
	if len(r.BlockNorms) > 0 {
		b, err := json.Marshal(r.BlockNorms)
		if err != nil {
			return fmt.Errorf("marshal block norms: %w", err)
		}
		normsStr = string(b)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO push_steps (
				session_id, step, sim_time, mode, frame_index,
				goal_x, goal_y, relocated, residual_norm, block_norms_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionID, r.Step, r.SimTime, r.Mode, r.FrameIndex,
			r.GoalX, r.GoalY, r.Relocated, r.ResidualNorm, normsStr,
		)
		return err
	})
}

// ListSteps returns a session's steps in step order.
func (s *Store) ListSteps(sessionID string) ([]StepRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, step, sim_time, mode, frame_index,
		       goal_x, goal_y, relocated, residual_norm, block_norms_json
		FROM push_steps
		WHERE session_id = ?
		ORDER BY step ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var r StepRecord
		var normsStr sql.NullString
		if err := rows.Scan(
			&r.SessionID, &r.Step, &r.SimTime, &r.Mode, &r.FrameIndex,
			&r.GoalX, &r.GoalY, &r.Relocated, &r.ResidualNorm, &normsStr,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if normsStr.Valid {
			if err := json.Unmarshal([]byte(normsStr.String), &r.BlockNorms); err != nil {
				return nil, fmt.Errorf("unmarshal block norms: %w", err)
			}
		}
		steps = append(steps, r)
	}
	return steps, rows.Err()
}

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// retryOnBusy retries fn while SQLite reports the database as busy or
// locked.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyBackoff * time.Duration(attempt+1))
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
