package models

import "time"

// PlanStatus represents the lifecycle state of an execution plan.
type PlanStatus string

const (
	PlanCreated   PlanStatus = "created"
	PlanRunning   PlanStatus = "running"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanCancelled PlanStatus = "cancelled"
)

// planTransitions defines the allowed forward moves of the plan lifecycle.
// Terminal states have no outgoing edges.
var planTransitions = map[PlanStatus][]PlanStatus{
	PlanCreated: {PlanRunning, PlanCancelled},
	PlanRunning: {PlanCompleted, PlanFailed, PlanCancelled},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle step.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, allowed := range planTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a final state.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanCompleted || s == PlanFailed || s == PlanCancelled
}

// ExecutionPlan is a named collection of tasks plus their dependency edges.
// Only Status, StartedAt, CompletedAt and ErrorMessage change after
// construction; the task list and edges are fixed.
type ExecutionPlan struct {
	ID           string              `yaml:"id" json:"id"`
	Description  string              `yaml:"description" json:"description"`
	Tasks        []Task              `yaml:"tasks" json:"tasks"`
	Dependencies map[string][]string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Status       PlanStatus          `yaml:"status" json:"status"`
	CreatedAt    time.Time           `yaml:"created_at" json:"created_at"`
	StartedAt    time.Time           `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt  time.Time           `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	ErrorMessage string              `yaml:"error_message,omitempty" json:"error_message,omitempty"`
}

// ReadyTasks returns every task whose id is not yet in completed and whose
// full dependency set is contained in completed. This predicate is the
// single source of truth for scheduling order and must be recomputed each
// iteration, because tasks can complete out of submission order.
func (p *ExecutionPlan) ReadyTasks(completed map[string]bool) []Task {
	var ready []Task
	for _, task := range p.Tasks {
		if completed[task.ID] {
			continue
		}
		satisfied := true
		for _, dep := range p.Dependencies[task.ID] {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, task)
		}
	}
	return ready
}

// Task returns the task with the given id, or false when the plan does not
// contain it.
func (p *ExecutionPlan) Task(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
