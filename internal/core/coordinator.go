package core

import (
	"context"
	"fmt"
	"time"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// Coordinator is the facade callers go through: it registers workers
// with the planner, turns task specs into validated plans, runs them,
// summarizes the outcome and keeps the append-only execution history.
type Coordinator interface {
	RegisterWorker(w Worker) error
	BuildPlan(description string, specs []models.TaskSpec) (*models.ExecutionPlan, error)
	ValidateSpecs(specs []models.TaskSpec) (*models.ValidationReport, error)
	ExecuteSpecs(ctx context.Context, description string, specs []models.TaskSpec) (*models.ExecutionSummary, error)
	ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) (*models.ExecutionSummary, error)
	PlanStatus(planID string) (*models.ExecutionPlan, error)
	CancelPlan(planID string) error
	ActivePlans() []*models.ExecutionPlan
	CompletedPlans() []*models.ExecutionPlan
	History(limit int) ([]models.ExecutionRecord, error)
	Shutdown() error
}

// coordinator implements Coordinator.
type coordinator struct {
	planner Planner
	doc     Document
	idGen   IDGenerator
	history HistoryStore
	archive PlanArchive
	events  EventLogger

	// now is injectable for tests.
	now func() time.Time
}

// NewCoordinator creates a Coordinator. history and archive may be nil
// when persistence is not wired; events may be nil to discard events.
func NewCoordinator(planner Planner, doc Document, history HistoryStore, archive PlanArchive, events EventLogger) Coordinator {
	return newCoordinator(planner, doc, history, archive, events, time.Now)
}

func newCoordinator(planner Planner, doc Document, history HistoryStore, archive PlanArchive, events EventLogger, now func() time.Time) *coordinator {
	if events == nil {
		events = nopEventLogger{}
	}
	return &coordinator{
		planner: planner,
		doc:     doc,
		idGen:   NewIDGenerator(),
		history: history,
		archive: archive,
		events:  events,
		now:     now,
	}
}

// RegisterWorker registers a worker with the planner.
func (c *coordinator) RegisterWorker(w Worker) error {
	return c.planner.RegisterWorker(w)
}

// BuildPlan turns task specs into an ExecutionPlan. Each task receives
// the current document context snapshot; specs without an id get one
// assigned. Duplicate ids, self-dependencies, unknown dependency
// references and cycles are all fatal here, before anything runs.
func (c *coordinator) BuildPlan(description string, specs []models.TaskSpec) (*models.ExecutionPlan, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("building plan: no tasks")
	}

	var snapshot map[string]any
	if c.doc != nil {
		snapshot = c.doc.ContextSnapshot()
	}

	tasks := make([]models.Task, 0, len(specs))
	deps := make(map[string][]string)
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		id := spec.ID
		if id == "" {
			id = fmt.Sprintf("task-%d", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("building plan: duplicate task id %s", id)
		}
		seen[id] = true
		tasks = append(tasks, models.Task{
			ID:           id,
			Type:         spec.Type,
			Description:  spec.Description,
			Parameters:   spec.Parameters,
			Context:      snapshot,
			Priority:     spec.Priority,
			Dependencies: spec.Dependencies,
			Critical:     spec.Critical,
			Status:       models.TaskPending,
		})
		if len(spec.Dependencies) > 0 {
			deps[id] = spec.Dependencies
		}
	}

	if err := validatePlanGraph(tasks, deps); err != nil {
		return nil, fmt.Errorf("building plan: %w", err)
	}

	return &models.ExecutionPlan{
		ID:           c.idGen.NewPlanID(),
		Description:  description,
		Tasks:        tasks,
		Dependencies: deps,
		Status:       models.PlanCreated,
		CreatedAt:    c.now(),
	}, nil
}

// validatePlanGraph rejects self-dependencies, references to tasks
// outside the plan, and dependency cycles (found with a Kahn sweep).
func validatePlanGraph(tasks []models.Task, deps map[string][]string) error {
	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = true
	}
	for _, t := range tasks {
		for _, dep := range deps[t.ID] {
			if dep == t.ID {
				return fmt.Errorf("task %s depends on itself", t.ID)
			}
			if !ids[dep] {
				return fmt.Errorf("task %s depends on unknown task %s", t.ID, dep)
			}
		}
	}

	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string)
	for _, t := range tasks {
		indegree[t.ID] = len(deps[t.ID])
		for _, dep := range deps[t.ID] {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}
	var queue []string
	for _, t := range tasks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, child := range dependents[id] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed != len(tasks) {
		return fmt.Errorf("dependency cycle detected")
	}
	return nil
}

// ValidateSpecs builds the plan and checks that every task has a capable
// worker with acceptable parameters, without executing anything. Build
// failures are reported as infeasibility rather than returned as errors.
func (c *coordinator) ValidateSpecs(specs []models.TaskSpec) (*models.ValidationReport, error) {
	plan, err := c.BuildPlan("validation dry run", specs)
	if err != nil {
		return &models.ValidationReport{
			Feasible:  false,
			TaskCount: len(specs),
			Issues:    []string{err.Error()},
		}, nil
	}

	report := &models.ValidationReport{Feasible: true, TaskCount: len(plan.Tasks)}
	for _, task := range plan.Tasks {
		worker, ok := c.planner.CapableWorker(task)
		if !ok {
			report.Feasible = false
			report.Issues = append(report.Issues,
				fmt.Sprintf("task %s: no capable worker for type %s", task.ID, task.Type))
			continue
		}
		if err := worker.ValidateParameters(task.Parameters); err != nil {
			report.Feasible = false
			report.Issues = append(report.Issues, fmt.Sprintf("task %s: %v", task.ID, err))
		}
	}
	return report, nil
}

// ExecuteSpecs builds a plan from the specs and runs it.
func (c *coordinator) ExecuteSpecs(ctx context.Context, description string, specs []models.TaskSpec) (*models.ExecutionSummary, error) {
	plan, err := c.BuildPlan(description, specs)
	if err != nil {
		return nil, err
	}
	return c.ExecutePlan(ctx, plan)
}

// ExecutePlan runs a built plan to a terminal state, records the history
// entry and archives the plan. A scheduling fault still produces a
// history entry but surfaces as an error.
func (c *coordinator) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) (*models.ExecutionSummary, error) {
	results, execErr := c.planner.ExecutePlan(ctx, plan)
	summary := c.compileSummary(plan, results)
	c.recordExecution(plan, results, summary)
	if execErr != nil {
		return nil, fmt.Errorf("executing plan %s: %w", plan.ID, execErr)
	}
	return summary, nil
}

// compileSummary folds per-task results into the plan-level digest.
// Entity ids are deduplicated in plan task order so output stays stable.
func (c *coordinator) compileSummary(plan *models.ExecutionPlan, results map[string]models.TaskResult) *models.ExecutionSummary {
	succeeded := 0
	var unattempted, created, modified []string
	seenCreated := make(map[string]bool)
	seenModified := make(map[string]bool)

	for _, task := range plan.Tasks {
		res, attempted := results[task.ID]
		if !attempted {
			unattempted = append(unattempted, task.ID)
			continue
		}
		if res.Status == models.TaskCompleted {
			succeeded++
		}
		for _, id := range res.CreatedEntityIDs {
			if !seenCreated[id] {
				seenCreated[id] = true
				created = append(created, id)
			}
		}
		for _, id := range res.ModifiedEntityIDs {
			if !seenModified[id] {
				seenModified[id] = true
				modified = append(modified, id)
			}
		}
	}

	status := "failed"
	switch {
	case plan.Status == models.PlanCancelled:
		status = "cancelled"
	case succeeded == len(plan.Tasks):
		status = "completed"
	case succeeded > 0:
		status = "partial_success"
	}

	var duration time.Duration
	if !plan.StartedAt.IsZero() && !plan.CompletedAt.IsZero() {
		duration = plan.CompletedAt.Sub(plan.StartedAt)
	}

	return &models.ExecutionSummary{
		PlanID:            plan.ID,
		Description:       plan.Description,
		Status:            status,
		Results:           results,
		Unattempted:       unattempted,
		CreatedEntityIDs:  created,
		ModifiedEntityIDs: modified,
		Error:             plan.ErrorMessage,
		Duration:          duration,
	}
}

// recordExecution appends the history entry and archives the finished
// plan. Persistence failures are logged, never fatal to the run.
func (c *coordinator) recordExecution(plan *models.ExecutionPlan, results map[string]models.TaskResult, summary *models.ExecutionSummary) {
	if c.history != nil {
		rec := models.ExecutionRecord{
			Timestamp:     c.now(),
			Description:   plan.Description,
			PlanID:        plan.ID,
			Status:        plan.Status,
			TaskCount:     len(plan.Tasks),
			Duration:      summary.Duration,
			CreatedCount:  len(summary.CreatedEntityIDs),
			ModifiedCount: len(summary.ModifiedEntityIDs),
		}
		if err := c.history.AppendRecord(rec); err != nil {
			_ = c.events.LogEvent("history_append_failed", map[string]any{
				"plan_id": plan.ID,
				"error":   err.Error(),
			})
		}
	}
	if c.archive != nil {
		if err := c.archive.ArchivePlan(plan, results); err != nil {
			_ = c.events.LogEvent("plan_archive_failed", map[string]any{
				"plan_id": plan.ID,
				"error":   err.Error(),
			})
		}
	}
}

// PlanStatus returns the current snapshot of one plan.
func (c *coordinator) PlanStatus(planID string) (*models.ExecutionPlan, error) {
	return c.planner.PlanStatus(planID)
}

// CancelPlan cancels an active plan.
func (c *coordinator) CancelPlan(planID string) error {
	return c.planner.CancelPlan(planID)
}

// ActivePlans lists plans currently executing.
func (c *coordinator) ActivePlans() []*models.ExecutionPlan {
	return c.planner.ActivePlans()
}

// CompletedPlans lists retired plans in retirement order.
func (c *coordinator) CompletedPlans() []*models.ExecutionPlan {
	return c.planner.CompletedPlans()
}

// History returns the most recent execution records, newest first.
func (c *coordinator) History(limit int) ([]models.ExecutionRecord, error) {
	if c.history == nil {
		return nil, nil
	}
	records, err := c.history.Records(limit)
	if err != nil {
		return nil, fmt.Errorf("reading execution history: %w", err)
	}
	return records, nil
}

// Shutdown cancels every active plan.
func (c *coordinator) Shutdown() error {
	for _, plan := range c.planner.ActivePlans() {
		if err := c.planner.CancelPlan(plan.ID); err != nil {
			_ = c.events.LogEvent("shutdown_cancel_failed", map[string]any{
				"plan_id": plan.ID,
				"error":   err.Error(),
			})
		}
	}
	_ = c.events.LogEvent("coordinator_shutdown", nil)
	return nil
}
