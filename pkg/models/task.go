package models

// TaskType categorizes a task for worker capability matching.
type TaskType string

const (
	TaskGeometryCreation     TaskType = "geometry_creation"
	TaskGeometryModification TaskType = "geometry_modification"
	TaskSketchCreation       TaskType = "sketch_creation"
	TaskSketchModification   TaskType = "sketch_modification"
	TaskAnalysis             TaskType = "analysis"
	TaskValidation           TaskType = "validation"
	TaskOptimization         TaskType = "optimization"
)

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether s is a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Task is one unit of work inside an execution plan. Tasks are built once
// by the coordinator; only Status changes afterwards, moving from pending
// through running to a terminal state as the planner processes the plan.
type Task struct {
	ID           string         `yaml:"id" json:"id"`
	Type         TaskType       `yaml:"type" json:"type"`
	Description  string         `yaml:"description" json:"description"`
	Parameters   map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Context      map[string]any `yaml:"context,omitempty" json:"context,omitempty"`
	Priority     int            `yaml:"priority,omitempty" json:"priority,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Critical     bool           `yaml:"critical,omitempty" json:"critical,omitempty"`
	Status       TaskStatus     `yaml:"status,omitempty" json:"status,omitempty"`
}

// TaskSpec is the descriptor an upstream producer (request parser, plan
// file, MCP caller) hands to the coordinator. The coordinator assigns an ID
// when Spec.ID is empty and stamps the document context snapshot.
type TaskSpec struct {
	ID           string         `yaml:"id,omitempty" json:"id,omitempty"`
	Type         TaskType       `yaml:"type" json:"type"`
	Description  string         `yaml:"description" json:"description"`
	Parameters   map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Priority     int            `yaml:"priority,omitempty" json:"priority,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Critical     bool           `yaml:"critical,omitempty" json:"critical,omitempty"`
}
