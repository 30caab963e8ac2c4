package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// Planner owns the plan registries and runs plans through their
// lifecycle: created -> running -> completed, failed or cancelled.
// Workers are matched in registration order, which makes selection
// deterministic across runs.
type Planner interface {
	RegisterWorker(w Worker) error
	CapableWorker(task models.Task) (Worker, bool)
	ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) (map[string]models.TaskResult, error)
	CancelPlan(planID string) error
	PlanStatus(planID string) (*models.ExecutionPlan, error)
	ActivePlans() []*models.ExecutionPlan
	CompletedPlans() []*models.ExecutionPlan
}

// planner implements Planner.
type planner struct {
	cfg      models.PlannerConfig
	executor Executor
	safety   SafetyController
	events   EventLogger

	// now is injectable for tests.
	now func() time.Time

	mu             sync.Mutex
	workers        []Worker
	active         map[string]*models.ExecutionPlan
	completed      map[string]*models.ExecutionPlan
	completedOrder []string
}

// NewPlanner creates a Planner dispatching through the given executor
// and consulting the safety controller's pause gate before every task.
func NewPlanner(cfg models.PlannerConfig, executor Executor, safety SafetyController, events EventLogger) Planner {
	return newPlanner(cfg, executor, safety, events, time.Now)
}

func newPlanner(cfg models.PlannerConfig, executor Executor, safety SafetyController, events EventLogger, now func() time.Time) *planner {
	if events == nil {
		events = nopEventLogger{}
	}
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	return &planner{
		cfg:       cfg,
		executor:  executor,
		safety:    safety,
		events:    events,
		now:       now,
		active:    make(map[string]*models.ExecutionPlan),
		completed: make(map[string]*models.ExecutionPlan),
	}
}

// RegisterWorker adds a worker to the dispatch pool. Workers must carry a
// unique name and declare at least one capability; both are checked here
// rather than at dispatch time.
func (p *planner) RegisterWorker(w Worker) error {
	if w == nil {
		return fmt.Errorf("registering worker: worker is nil")
	}
	if w.Name() == "" {
		return fmt.Errorf("registering worker: name must not be empty")
	}
	if len(w.Capabilities()) == 0 {
		return fmt.Errorf("registering worker %s: no capabilities declared", w.Name())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.workers {
		if existing.Name() == w.Name() {
			return fmt.Errorf("registering worker %s: already registered", w.Name())
		}
	}
	p.workers = append(p.workers, w)
	return nil
}

// CapableWorker returns the first registered worker claiming the task.
func (p *planner) CapableWorker(task models.Task) (Worker, bool) {
	p.mu.Lock()
	workers := make([]Worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	for _, w := range workers {
		if w.CanHandle(task) {
			return w, true
		}
	}
	return nil, false
}

// ExecutePlan runs a created plan to a terminal state and returns the
// per-task results for every attempted task. The loop recomputes the
// ready set each iteration; an empty ready set with unprocessed tasks
// means either no further progress is possible given failures (the plan
// fails) or the dependency graph is broken (a fatal scheduling error).
func (p *planner) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) (map[string]models.TaskResult, error) {
	if plan == nil {
		return nil, fmt.Errorf("executing plan: plan is nil")
	}
	if err := p.transition(plan, models.PlanRunning); err != nil {
		return nil, err
	}

	p.mu.Lock()
	plan.StartedAt = p.now()
	for i := range plan.Tasks {
		if plan.Tasks[i].Status == "" {
			plan.Tasks[i].Status = models.TaskPending
		}
	}
	p.active[plan.ID] = plan
	// The loop schedules off this immutable copy; status updates go to
	// plan.Tasks under the lock, where CancelPlan also writes.
	sched := snapshotPlan(plan)
	p.mu.Unlock()

	_ = p.events.LogEvent("plan_started", map[string]any{
		"plan_id":    plan.ID,
		"task_count": len(plan.Tasks),
	})

	completed := make(map[string]bool)
	failed := make(map[string]bool)
	processed := make(map[string]bool)
	results := make(map[string]models.TaskResult)

	abort := false
	for len(processed) < len(sched.Tasks) && !abort {
		if ctx.Err() != nil {
			_ = p.CancelPlan(plan.ID)
		}
		if p.statusOf(plan) == models.PlanCancelled {
			return results, nil
		}

		var batch []models.Task
		for _, task := range sched.ReadyTasks(completed) {
			if !processed[task.ID] {
				batch = append(batch, task)
			}
		}

		if len(batch) == 0 {
			if len(failed) > 0 {
				// Remaining tasks depend on failures; no further progress.
				break
			}
			err := fmt.Errorf("plan %s: dependency cycle or unresolvable reference", plan.ID)
			p.finalize(plan, failed, sched.Tasks, err.Error())
			return results, err
		}

		record := func(task models.Task, res models.TaskResult) {
			results[task.ID] = res
			processed[task.ID] = true
			if res.Status == models.TaskCompleted {
				completed[task.ID] = true
				p.setTaskStatus(plan, task.ID, models.TaskCompleted)
			} else {
				failed[task.ID] = true
				p.setTaskStatus(plan, task.ID, models.TaskFailed)
				if task.Critical || p.cfg.FailFast {
					abort = true
				}
			}
		}

		if p.cfg.MaxParallel > 1 && len(batch) > 1 {
			// Independent tasks in one batch may run concurrently; results
			// are folded in batch order so aggregation stays deterministic.
			// A critical failure aborts after the batch settles.
			batchResults := make([]models.TaskResult, len(batch))
			workers := pool.New().WithMaxGoroutines(p.cfg.MaxParallel)
			for i, task := range batch {
				workers.Go(func() {
					p.setTaskStatus(plan, task.ID, models.TaskRunning)
					batchResults[i] = p.dispatch(ctx, task)
				})
			}
			workers.Wait()
			for i, task := range batch {
				record(task, batchResults[i])
			}
		} else {
			for _, task := range batch {
				p.setTaskStatus(plan, task.ID, models.TaskRunning)
				record(task, p.dispatch(ctx, task))
				if abort {
					break
				}
			}
		}
	}

	if p.statusOf(plan) == models.PlanCancelled {
		return results, nil
	}
	p.finalize(plan, failed, sched.Tasks, "")
	return results, nil
}

// dispatch runs one task: the pause gate is checked at this boundary,
// then a capable worker is selected and the safety-wrapped execution
// invoked.
func (p *planner) dispatch(ctx context.Context, task models.Task) models.TaskResult {
	if !p.safety.OperationsAllowed() {
		return models.TaskResult{
			TaskID: task.ID,
			Status: models.TaskFailed,
			Error:  "BLOCKED: operations are paused or under manual control",
		}
	}
	worker, ok := p.CapableWorker(task)
	if !ok {
		return models.TaskResult{
			TaskID: task.ID,
			Status: models.TaskFailed,
			Error:  fmt.Sprintf("no capable worker for task type %s", task.Type),
		}
	}
	return p.executor.ExecuteWithSafety(ctx, worker, task)
}

// finalize stamps the terminal status and moves the plan to the
// completed registry. errOverride, when set, replaces the generated
// failed-task listing as the plan's error message.
func (p *planner) finalize(plan *models.ExecutionPlan, failed map[string]bool, tasks []models.Task, errOverride string) {
	next := models.PlanCompleted
	msg := errOverride
	if len(failed) > 0 || errOverride != "" {
		next = models.PlanFailed
		if msg == "" {
			ids := make([]string, 0, len(failed))
			for _, task := range tasks {
				if failed[task.ID] {
					ids = append(ids, task.ID)
				}
			}
			msg = "failed tasks: " + strings.Join(ids, ", ")
		}
	}

	p.mu.Lock()
	if plan.Status.CanTransitionTo(next) {
		plan.Status = next
		plan.ErrorMessage = msg
		plan.CompletedAt = p.now()
		p.retireLocked(plan)
	}
	finalStatus, finalMsg := plan.Status, plan.ErrorMessage
	p.mu.Unlock()

	_ = p.events.LogEvent("plan_finished", map[string]any{
		"plan_id": plan.ID,
		"status":  string(finalStatus),
		"error":   finalMsg,
	})
}

// CancelPlan marks an active plan cancelled and retires it. Running task
// execution is not interrupted; cancellation only prevents future
// dispatch.
func (p *planner) CancelPlan(planID string) error {
	p.mu.Lock()
	plan, ok := p.active[planID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("cancelling plan %s: not active", planID)
	}
	if !plan.Status.CanTransitionTo(models.PlanCancelled) {
		p.mu.Unlock()
		return fmt.Errorf("cancelling plan %s: illegal transition from %s", planID, plan.Status)
	}
	plan.Status = models.PlanCancelled
	plan.CompletedAt = p.now()
	for i := range plan.Tasks {
		if plan.Tasks[i].Status == models.TaskPending {
			plan.Tasks[i].Status = models.TaskCancelled
		}
	}
	p.retireLocked(plan)
	p.mu.Unlock()

	_ = p.events.LogEvent("plan_cancelled", map[string]any{"plan_id": planID})
	return nil
}

// setTaskStatus records one task's lifecycle step on the plan, so status
// queries see per-task progress while the plan runs.
func (p *planner) setTaskStatus(plan *models.ExecutionPlan, taskID string, status models.TaskStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range plan.Tasks {
		if plan.Tasks[i].ID == taskID {
			plan.Tasks[i].Status = status
			return
		}
	}
}

// retireLocked moves a plan from the active to the completed registry.
// Callers must hold p.mu.
func (p *planner) retireLocked(plan *models.ExecutionPlan) {
	delete(p.active, plan.ID)
	if _, seen := p.completed[plan.ID]; !seen {
		p.completedOrder = append(p.completedOrder, plan.ID)
	}
	p.completed[plan.ID] = plan
}

// transition validates and applies a lifecycle step under the lock.
func (p *planner) transition(plan *models.ExecutionPlan, next models.PlanStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !plan.Status.CanTransitionTo(next) {
		return fmt.Errorf("plan %s: illegal status transition %s -> %s", plan.ID, plan.Status, next)
	}
	plan.Status = next
	return nil
}

func (p *planner) statusOf(plan *models.ExecutionPlan) models.PlanStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return plan.Status
}

// snapshotPlan copies a plan, including its task slice, so callers can
// read it while the planner keeps updating task statuses. Callers must
// hold p.mu.
func snapshotPlan(plan *models.ExecutionPlan) *models.ExecutionPlan {
	out := *plan
	out.Tasks = make([]models.Task, len(plan.Tasks))
	copy(out.Tasks, plan.Tasks)
	return &out
}

// PlanStatus returns a snapshot of the plan with the given id, searching
// active plans first, then completed ones.
func (p *planner) PlanStatus(planID string) (*models.ExecutionPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if plan, ok := p.active[planID]; ok {
		return snapshotPlan(plan), nil
	}
	if plan, ok := p.completed[planID]; ok {
		return snapshotPlan(plan), nil
	}
	return nil, fmt.Errorf("plan %s not found", planID)
}

// ActivePlans returns snapshots of all plans currently executing,
// ordered by creation time.
func (p *planner) ActivePlans() []*models.ExecutionPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.ExecutionPlan, 0, len(p.active))
	for _, plan := range p.active {
		out = append(out, snapshotPlan(plan))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CompletedPlans returns snapshots of retired plans in retirement order.
func (p *planner) CompletedPlans() []*models.ExecutionPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.ExecutionPlan, 0, len(p.completedOrder))
	for _, id := range p.completedOrder {
		if plan, ok := p.completed[id]; ok {
			out = append(out, snapshotPlan(plan))
		}
	}
	return out
}
