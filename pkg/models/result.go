package models

import "time"

// TaskResult is the outcome of attempting one task. Error is set iff
// Status is TaskFailed; CreatedEntityIDs and ModifiedEntityIDs feed
// rollback bookkeeping and downstream tasks.
type TaskResult struct {
	TaskID            string         `yaml:"task_id" json:"task_id"`
	Status            TaskStatus     `yaml:"status" json:"status"`
	Data              map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
	Error             string         `yaml:"error,omitempty" json:"error,omitempty"`
	CreatedEntityIDs  []string       `yaml:"created_entity_ids,omitempty" json:"created_entity_ids,omitempty"`
	ModifiedEntityIDs []string       `yaml:"modified_entity_ids,omitempty" json:"modified_entity_ids,omitempty"`
	Duration          time.Duration  `yaml:"duration" json:"duration"`
}

// ExecutionSummary is the coordinator's digest of one finished plan run.
// Status is "completed" when every task succeeded, "partial_success" when
// some did, "failed" when none did, or "cancelled". Results holds only
// tasks that were actually attempted; Unattempted lists the rest.
type ExecutionSummary struct {
	PlanID            string                `yaml:"plan_id" json:"plan_id"`
	Description       string                `yaml:"description" json:"description"`
	Status            string                `yaml:"status" json:"status"`
	Results           map[string]TaskResult `yaml:"results,omitempty" json:"results,omitempty"`
	Unattempted       []string              `yaml:"unattempted,omitempty" json:"unattempted,omitempty"`
	CreatedEntityIDs  []string              `yaml:"created_entity_ids,omitempty" json:"created_entity_ids,omitempty"`
	ModifiedEntityIDs []string              `yaml:"modified_entity_ids,omitempty" json:"modified_entity_ids,omitempty"`
	Error             string                `yaml:"error,omitempty" json:"error,omitempty"`
	Duration          time.Duration         `yaml:"duration" json:"duration"`
}

// ValidationReport is the outcome of a dry-run feasibility check over a
// set of task specs: the plan is built and every task checked for a
// capable worker, but nothing executes.
type ValidationReport struct {
	Feasible  bool     `yaml:"feasible" json:"feasible"`
	TaskCount int      `yaml:"task_count" json:"task_count"`
	Issues    []string `yaml:"issues,omitempty" json:"issues,omitempty"`
}

// ExecutionRecord is one append-only history entry written when a plan
// reaches a terminal state.
type ExecutionRecord struct {
	Timestamp     time.Time     `yaml:"timestamp" json:"timestamp"`
	Description   string        `yaml:"description" json:"description"`
	PlanID        string        `yaml:"plan_id" json:"plan_id"`
	Status        PlanStatus    `yaml:"status" json:"status"`
	TaskCount     int           `yaml:"task_count" json:"task_count"`
	Duration      time.Duration `yaml:"duration" json:"duration"`
	CreatedCount  int           `yaml:"created_count" json:"created_count"`
	ModifiedCount int           `yaml:"modified_count" json:"modified_count"`
}
