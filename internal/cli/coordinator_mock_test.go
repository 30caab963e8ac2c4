package cli

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/ai-cad-agent/internal/core"
	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// coordinatorMock implements core.Coordinator with overridable behavior
// per method. Unset methods return zero values.
type coordinatorMock struct {
	registerFn    func(w core.Worker) error
	buildFn       func(description string, specs []models.TaskSpec) (*models.ExecutionPlan, error)
	validateFn    func(specs []models.TaskSpec) (*models.ValidationReport, error)
	executeFn     func(ctx context.Context, description string, specs []models.TaskSpec) (*models.ExecutionSummary, error)
	executePlanFn func(ctx context.Context, plan *models.ExecutionPlan) (*models.ExecutionSummary, error)
	planStatusFn  func(planID string) (*models.ExecutionPlan, error)
	cancelFn      func(planID string) error
	activeFn      func() []*models.ExecutionPlan
	completedFn   func() []*models.ExecutionPlan
	historyFn     func(limit int) ([]models.ExecutionRecord, error)
	shutdownFn    func() error
}

func (m *coordinatorMock) RegisterWorker(w core.Worker) error {
	if m.registerFn != nil {
		return m.registerFn(w)
	}
	return nil
}

func (m *coordinatorMock) BuildPlan(description string, specs []models.TaskSpec) (*models.ExecutionPlan, error) {
	if m.buildFn != nil {
		return m.buildFn(description, specs)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *coordinatorMock) ValidateSpecs(specs []models.TaskSpec) (*models.ValidationReport, error) {
	if m.validateFn != nil {
		return m.validateFn(specs)
	}
	return &models.ValidationReport{Feasible: true, TaskCount: len(specs)}, nil
}

func (m *coordinatorMock) ExecuteSpecs(ctx context.Context, description string, specs []models.TaskSpec) (*models.ExecutionSummary, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, description, specs)
	}
	return &models.ExecutionSummary{Status: "completed"}, nil
}

func (m *coordinatorMock) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) (*models.ExecutionSummary, error) {
	if m.executePlanFn != nil {
		return m.executePlanFn(ctx, plan)
	}
	return &models.ExecutionSummary{Status: "completed"}, nil
}

func (m *coordinatorMock) PlanStatus(planID string) (*models.ExecutionPlan, error) {
	if m.planStatusFn != nil {
		return m.planStatusFn(planID)
	}
	return nil, fmt.Errorf("plan %s not found", planID)
}

func (m *coordinatorMock) CancelPlan(planID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(planID)
	}
	return nil
}

func (m *coordinatorMock) ActivePlans() []*models.ExecutionPlan {
	if m.activeFn != nil {
		return m.activeFn()
	}
	return nil
}

func (m *coordinatorMock) CompletedPlans() []*models.ExecutionPlan {
	if m.completedFn != nil {
		return m.completedFn()
	}
	return nil
}

func (m *coordinatorMock) History(limit int) ([]models.ExecutionRecord, error) {
	if m.historyFn != nil {
		return m.historyFn(limit)
	}
	return nil, nil
}

func (m *coordinatorMock) Shutdown() error {
	if m.shutdownFn != nil {
		return m.shutdownFn()
	}
	return nil
}

// safetyMock implements core.SafetyController, recording gate calls and
// serving canned status and snapshot data.
type safetyMock struct {
	status    models.SafetyStatus
	snapshots []models.RollbackSnapshot

	pauseCalls     int
	resumeCalls    int
	manualEnables  int
	manualDisables int
	clearCalls     int

	rollbackFn func(snapshotID string) bool
	releaseFn  func(snapshotID string) bool
}

func (m *safetyMock) ValidateOperation(models.Task, map[string]any) models.SafetyCheckResult {
	return models.SafetyCheckResult{Passed: true, RiskLevel: models.RiskSafe}
}

func (m *safetyMock) RequireUserConfirmation(models.Task, models.SafetyCheckResult) bool {
	return true
}

func (m *safetyMock) SetupRollbackPoint(string) (string, error) { return "", nil }

func (m *safetyMock) ExecuteRollback(snapshotID string) bool {
	if m.rollbackFn != nil {
		return m.rollbackFn(snapshotID)
	}
	return false
}

func (m *safetyMock) RegisterConstraint(core.SafetyConstraint) error { return nil }

func (m *safetyMock) Pause()  { m.pauseCalls++ }
func (m *safetyMock) Resume() { m.resumeCalls++ }

func (m *safetyMock) EnableManualControl()  { m.manualEnables++ }
func (m *safetyMock) DisableManualControl() { m.manualDisables++ }

func (m *safetyMock) OperationsAllowed() bool { return true }

func (m *safetyMock) Status() models.SafetyStatus { return m.status }

func (m *safetyMock) Snapshots() []models.RollbackSnapshot { return m.snapshots }

func (m *safetyMock) ReleaseSnapshot(snapshotID string) bool {
	if m.releaseFn != nil {
		return m.releaseFn(snapshotID)
	}
	return false
}

func (m *safetyMock) ClearSnapshots() { m.clearCalls++ }

// docMock implements DocumentProvider with a canned context snapshot.
type docMock struct {
	snapshot map[string]any
}

func (m *docMock) ContextSnapshot() map[string]any {
	if m.snapshot != nil {
		return m.snapshot
	}
	return map[string]any{"document_attached": true, "entity_ids": []string{}}
}
