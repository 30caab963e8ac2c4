package core

import "github.com/valter-silva-au/ai-cad-agent/pkg/models"

// HistoryStore persists one execution record per finished plan.
// This interface is defined locally in core to avoid importing storage.
type HistoryStore interface {
	AppendRecord(rec models.ExecutionRecord) error
	Records(limit int) ([]models.ExecutionRecord, error)
}

// PlanArchive persists terminal plans together with their per-task
// results. This interface is defined locally in core to avoid importing
// storage.
type PlanArchive interface {
	ArchivePlan(plan *models.ExecutionPlan, results map[string]models.TaskResult) error
	ArchivedPlan(planID string) (*models.ExecutionPlan, map[string]models.TaskResult, error)
	ArchivedPlanIDs() ([]string, error)
}
