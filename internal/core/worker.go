package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// Worker executes tasks of the types it declares. CanHandle intersects
// the type check with an operation-specific gate; ValidateParameters is
// structural only and must not consult live state. Execute reports
// expected failures inside the TaskResult and reserves the error return
// for genuinely unexpected faults.
type Worker interface {
	Name() string
	Capabilities() []models.TaskType
	CanHandle(task models.Task) bool
	ValidateParameters(params map[string]any) error
	Execute(ctx context.Context, task models.Task) (models.TaskResult, error)
}

// TaskLogEntry is one line of the executor's in-memory execution log,
// appended after every safety-wrapped attempt regardless of outcome.
type TaskLogEntry struct {
	TaskID    string             `yaml:"task_id" json:"task_id"`
	Type      models.TaskType    `yaml:"type" json:"type"`
	Status    models.TaskStatus  `yaml:"status" json:"status"`
	Duration  time.Duration      `yaml:"duration" json:"duration"`
	Timestamp time.Time          `yaml:"timestamp" json:"timestamp"`
}

// Executor wraps worker execution in the safety envelope: validation,
// document availability, the safety gate, timed execution and bookkeeping.
type Executor interface {
	ExecuteWithSafety(ctx context.Context, worker Worker, task models.Task) models.TaskResult
	TaskLog() []TaskLogEntry
	CurrentTasks() []string
}

// safeExecutor implements Executor. The bookkeeping in finish runs on
// every path out of ExecuteWithSafety, including panics from the worker.
type safeExecutor struct {
	safety            SafetyController
	doc               Document
	events            EventLogger
	timeout           time.Duration
	rollbackOnFailure bool

	// now is injectable for tests.
	now func() time.Time

	mu      sync.Mutex
	current map[string]bool
	log     []TaskLogEntry
}

// NewExecutor creates an Executor. timeout of zero disables the worker
// deadline; rollbackOnFailure controls whether a failed risky operation
// is rolled back to its snapshot automatically.
func NewExecutor(safety SafetyController, doc Document, events EventLogger, timeout time.Duration, rollbackOnFailure bool) Executor {
	return newExecutor(safety, doc, events, timeout, rollbackOnFailure, time.Now)
}

func newExecutor(safety SafetyController, doc Document, events EventLogger, timeout time.Duration, rollbackOnFailure bool, now func() time.Time) *safeExecutor {
	if events == nil {
		events = nopEventLogger{}
	}
	return &safeExecutor{
		safety:            safety,
		doc:               doc,
		events:            events,
		timeout:           timeout,
		rollbackOnFailure: rollbackOnFailure,
		now:               now,
		current:           make(map[string]bool),
	}
}

// ExecuteWithSafety runs one task through the full envelope, in order:
// capability and parameter validation, document availability, the safety
// gate, rollback point for risky operations, timed execution, and
// automatic rollback on failure. Denials and expected failures come back
// as Failed results; the scheduler never sees a panic.
func (e *safeExecutor) ExecuteWithSafety(ctx context.Context, worker Worker, task models.Task) (result models.TaskResult) {
	start := e.now()
	e.mu.Lock()
	e.current[task.ID] = true
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			result = models.TaskResult{
				Status: models.TaskFailed,
				Error:  fmt.Sprintf("unexpected fault: %v", r),
			}
		}
		result.TaskID = task.ID
		result.Duration = e.now().Sub(start)
		e.finish(task, result)
	}()

	if !worker.CanHandle(task) {
		return failedResult(fmt.Sprintf("worker %s cannot handle task %s (%s)",
			worker.Name(), task.ID, task.Type))
	}
	if err := worker.ValidateParameters(task.Parameters); err != nil {
		return failedResult(fmt.Sprintf("invalid parameters: %v", err))
	}

	if e.doc == nil || !e.doc.Attached() {
		return failedResult("no document attached")
	}

	check := e.safety.ValidateOperation(task, e.doc.ContextSnapshot())
	if !e.safety.RequireUserConfirmation(task, check) {
		reason := "operation not approved"
		if len(check.Errors) > 0 {
			reason = strings.Join(check.Errors, "; ")
		}
		return failedResult("BLOCKED: " + reason)
	}

	var snapshotID string
	if check.RiskLevel.AtLeast(models.RiskHigh) {
		id, err := e.safety.SetupRollbackPoint(task.ID)
		if err != nil {
			_ = e.events.LogEvent("rollback_point_failed", map[string]any{
				"task_id": task.ID,
				"error":   err.Error(),
			})
		} else {
			snapshotID = id
		}
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := worker.Execute(runCtx, task)
	if err != nil {
		res = failedResult(fmt.Sprintf("worker fault: %v", err))
	}

	if res.Status == models.TaskFailed && snapshotID != "" && e.rollbackOnFailure {
		if e.safety.ExecuteRollback(snapshotID) {
			res.Error += " (changes rolled back)"
		}
	}

	return res
}

func failedResult(msg string) models.TaskResult {
	return models.TaskResult{Status: models.TaskFailed, Error: msg}
}

// finish appends the execution log entry, clears the in-flight marker and
// recomputes the document when the task touched entities.
func (e *safeExecutor) finish(task models.Task, result models.TaskResult) {
	e.mu.Lock()
	delete(e.current, task.ID)
	e.log = append(e.log, TaskLogEntry{
		TaskID:    task.ID,
		Type:      task.Type,
		Status:    result.Status,
		Duration:  result.Duration,
		Timestamp: e.now(),
	})
	e.mu.Unlock()

	if len(result.CreatedEntityIDs)+len(result.ModifiedEntityIDs) > 0 &&
		e.doc != nil && e.doc.Attached() {
		if err := e.doc.Recompute(); err != nil {
			_ = e.events.LogEvent("recompute_failed", map[string]any{
				"task_id": task.ID,
				"error":   err.Error(),
			})
		}
	}

	_ = e.events.LogEvent("task_executed", map[string]any{
		"task_id":     task.ID,
		"task_type":   string(task.Type),
		"status":      string(result.Status),
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// TaskLog returns a copy of the execution log in append order.
func (e *safeExecutor) TaskLog() []TaskLogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TaskLogEntry, len(e.log))
	copy(out, e.log)
	return out
}

// CurrentTasks returns the ids of tasks currently inside the envelope,
// sorted for stable output.
func (e *safeExecutor) CurrentTasks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.current))
	for id := range e.current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
