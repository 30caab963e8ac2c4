// Package storage persists execution history and archived plans in a
// local sqlite database.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// ErrPlanNotArchived reports a lookup for a plan the archive never saw.
var ErrPlanNotArchived = errors.New("plan not archived")

// ExecutionStore keeps the append-only history of finished plans plus a
// full archive of each plan and its per-task results. One store serves
// both the engine's HistoryStore and PlanArchive interfaces.
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore opens (or creates) the database at path and ensures
// the schema is in place.
func NewExecutionStore(path string) (*ExecutionStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configuring store: %w", err)
		}
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			description TEXT,
			plan_id TEXT NOT NULL,
			status TEXT NOT NULL,
			task_count INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_count INTEGER NOT NULL,
			modified_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS archived_plans (
			plan_id TEXT PRIMARY KEY,
			description TEXT,
			status TEXT NOT NULL,
			archived_at TEXT NOT NULL,
			plan_json TEXT NOT NULL,
			results_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_plan ON history(plan_id)`,
	}
	for _, s := range schemas {
		if _, err := db.Exec(s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("preparing store schema: %w", err)
		}
	}

	return &ExecutionStore{db: db}, nil
}

// AppendRecord adds one finished-plan record to the history.
func (s *ExecutionStore) AppendRecord(rec models.ExecutionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO history (timestamp, description, plan_id, status, task_count, duration_ms, created_count, modified_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Description,
		rec.PlanID,
		string(rec.Status),
		rec.TaskCount,
		rec.Duration.Milliseconds(),
		rec.CreatedCount,
		rec.ModifiedCount,
	)
	if err != nil {
		return fmt.Errorf("appending history record: %w", err)
	}
	return nil
}

// Records returns history entries newest first. A non-positive limit
// returns everything.
func (s *ExecutionStore) Records(limit int) ([]models.ExecutionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT timestamp, description, plan_id, status, task_count, duration_ms, created_count, modified_count
		 FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.ExecutionRecord
	for rows.Next() {
		var (
			rec        models.ExecutionRecord
			timestamp  string
			status     string
			durationMS int64
		)
		if err := rows.Scan(&timestamp, &rec.Description, &rec.PlanID, &status, &rec.TaskCount, &durationMS, &rec.CreatedCount, &rec.ModifiedCount); err != nil {
			return nil, fmt.Errorf("scanning history record: %w", err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("parsing history timestamp %q: %w", timestamp, err)
		}
		rec.Status = models.PlanStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return records, nil
}

// ArchivePlan stores a terminal plan with its results. Re-archiving the
// same plan id replaces the earlier row.
func (s *ExecutionStore) ArchivePlan(plan *models.ExecutionPlan, results map[string]models.TaskResult) error {
	if plan == nil {
		return fmt.Errorf("archiving plan: plan must not be nil")
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encoding plan %s: %w", plan.ID, err)
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding results for plan %s: %w", plan.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO archived_plans (plan_id, description, status, archived_at, plan_json, results_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Description,
		string(plan.Status),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(planJSON),
		string(resultsJSON),
	)
	if err != nil {
		return fmt.Errorf("archiving plan %s: %w", plan.ID, err)
	}
	return nil
}

// ArchivedPlan loads one archived plan and its results.
func (s *ExecutionStore) ArchivedPlan(planID string) (*models.ExecutionPlan, map[string]models.TaskResult, error) {
	var planJSON, resultsJSON string
	err := s.db.QueryRow(
		`SELECT plan_json, results_json FROM archived_plans WHERE plan_id = ?`, planID).
		Scan(&planJSON, &resultsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("plan %s: %w", planID, ErrPlanNotArchived)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading archived plan %s: %w", planID, err)
	}

	var plan models.ExecutionPlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, nil, fmt.Errorf("decoding archived plan %s: %w", planID, err)
	}
	var results map[string]models.TaskResult
	if err := json.Unmarshal([]byte(resultsJSON), &results); err != nil {
		return nil, nil, fmt.Errorf("decoding archived results for %s: %w", planID, err)
	}
	return &plan, results, nil
}

// ArchivedPlanIDs lists archived plans, most recently archived first.
func (s *ExecutionStore) ArchivedPlanIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT plan_id FROM archived_plans ORDER BY archived_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing archived plans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning archived plan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing archived plans: %w", err)
	}
	return ids, nil
}

// Close releases the underlying database.
func (s *ExecutionStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
