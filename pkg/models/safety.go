package models

import "time"

// RiskLevel classifies how dangerous an operation is judged to be.
type RiskLevel string

const (
	RiskSafe        RiskLevel = "safe"
	RiskLow         RiskLevel = "low_risk"
	RiskMedium      RiskLevel = "medium_risk"
	RiskHigh        RiskLevel = "high_risk"
	RiskDestructive RiskLevel = "destructive"
)

// riskRank gives risk levels their total order. Comparisons must go
// through this table, never through string comparison.
var riskRank = map[RiskLevel]int{
	RiskSafe:        0,
	RiskLow:         1,
	RiskMedium:      2,
	RiskHigh:        3,
	RiskDestructive: 4,
}

// AtLeast reports whether r is as severe as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return riskRank[r] >= riskRank[other]
}

// MaxRisk returns the more severe of a and b.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}

// SafetyLevel sets how strict the safety controller is.
type SafetyLevel string

const (
	SafetyLow      SafetyLevel = "low"
	SafetyMedium   SafetyLevel = "medium"
	SafetyHigh     SafetyLevel = "high"
	SafetyCritical SafetyLevel = "critical"
)

var safetyRank = map[SafetyLevel]int{
	SafetyLow:      0,
	SafetyMedium:   1,
	SafetyHigh:     2,
	SafetyCritical: 3,
}

// AtLeast reports whether l is as strict as other.
func (l SafetyLevel) AtLeast(other SafetyLevel) bool {
	return safetyRank[l] >= safetyRank[other]
}

// SafetyCheckResult is the verdict of validating one operation. RiskLevel
// is the maximum tier seen across violated constraints; Errors force
// Passed to false, Warnings do not.
type SafetyCheckResult struct {
	Passed      bool      `yaml:"passed" json:"passed"`
	RiskLevel   RiskLevel `yaml:"risk_level" json:"risk_level"`
	Warnings    []string  `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	Errors      []string  `yaml:"errors,omitempty" json:"errors,omitempty"`
	AutoFixable []string  `yaml:"auto_fixable,omitempty" json:"auto_fixable,omitempty"`
}

// ResourceLimits bounds what one session may do to the document.
type ResourceLimits struct {
	MaxExecutionTime       time.Duration `yaml:"max_execution_time" json:"max_execution_time"`
	MaxMemoryMB            int           `yaml:"max_memory_mb" json:"max_memory_mb"`
	MaxEntities            int           `yaml:"max_entities" json:"max_entities"`
	MaxOperationsPerMinute int           `yaml:"max_operations_per_minute" json:"max_operations_per_minute"`
}

// DefaultResourceLimits returns the baseline limits applied when the
// configuration does not override them.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxExecutionTime:       300 * time.Second,
		MaxMemoryMB:            1024,
		MaxEntities:            100,
		MaxOperationsPerMinute: 60,
	}
}

// EntitySnapshot records the identifying metadata of one document entity
// for deep snapshots.
type EntitySnapshot struct {
	Type      string `yaml:"type" json:"type"`
	Label     string `yaml:"label" json:"label"`
	Placement string `yaml:"placement,omitempty" json:"placement,omitempty"`
}

// RollbackSnapshot captures the document's entity id set before a risky
// operation. Entities carries per-entity metadata only when the snapshot
// was taken at a high or critical safety level.
type RollbackSnapshot struct {
	ID          string                    `yaml:"id" json:"id"`
	OperationID string                    `yaml:"operation_id" json:"operation_id"`
	CreatedAt   time.Time                 `yaml:"created_at" json:"created_at"`
	EntityIDs   []string                  `yaml:"entity_ids" json:"entity_ids"`
	Entities    map[string]EntitySnapshot `yaml:"entities,omitempty" json:"entities,omitempty"`
}

// OperationDetails is the payload handed to a confirmation channel when
// the safety controller escalates an operation to a human.
type OperationDetails struct {
	Title             string    `yaml:"title" json:"title"`
	Description       string    `yaml:"description" json:"description"`
	RiskLevel         RiskLevel `yaml:"risk_level" json:"risk_level"`
	AffectedEntityIDs []string  `yaml:"affected_entity_ids,omitempty" json:"affected_entity_ids,omitempty"`
	PreviewAvailable  bool      `yaml:"preview_available" json:"preview_available"`
	Warnings          []string  `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// SafetyStatus is a point-in-time report of the controller's state.
type SafetyStatus struct {
	Level            SafetyLevel    `yaml:"level" json:"level"`
	Limits           ResourceLimits `yaml:"limits" json:"limits"`
	OperationsCount  int            `yaml:"operations_count" json:"operations_count"`
	Paused           bool           `yaml:"paused" json:"paused"`
	ManualControl    bool           `yaml:"manual_control" json:"manual_control"`
	SnapshotCount    int            `yaml:"snapshot_count" json:"snapshot_count"`
	ConstraintsCount int            `yaml:"constraints_count" json:"constraints_count"`
}
