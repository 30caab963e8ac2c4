package core

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// SafetyConstraint is a named predicate evaluated against a task and a
// document context snapshot before execution. Constraints are stateless;
// Check returns ok=false on violation and a non-nil error only when the
// constraint could not be evaluated at all.
type SafetyConstraint struct {
	Name        string
	Description string
	RiskLevel   models.RiskLevel
	AutoFixHint string
	Check       func(task models.Task, docCtx map[string]any) (ok bool, err error)
}

// destructiveOperations lists the operation keys that remove or overwrite
// existing geometry.
var destructiveOperations = map[string]bool{
	"boolean_difference": true,
	"remove_object":      true,
	"clear_document":     true,
}

// destructiveKeywords is scanned against task descriptions as a second
// line of detection for destructive intent.
var destructiveKeywords = []string{"delete", "remove", "clear", "destroy"}

// DefaultConstraints returns the built-in constraint set registered with
// every new safety controller.
func DefaultConstraints() []SafetyConstraint {
	return []SafetyConstraint{
		{
			Name:        "document_attached",
			Description: "an attached document is required",
			RiskLevel:   models.RiskMedium,
			Check: func(_ models.Task, docCtx map[string]any) (bool, error) {
				return cast.ToBool(docCtx["document_attached"]), nil
			},
		},
		{
			Name:        "target_entities_exist",
			Description: "target entities must exist in the document",
			RiskLevel:   models.RiskHigh,
			Check:       checkTargetEntitiesExist,
		},
		{
			Name:        "destructive_operation",
			Description: "destructive operation detected",
			RiskLevel:   models.RiskDestructive,
			Check: func(task models.Task, _ map[string]any) (bool, error) {
				return !isDestructive(task), nil
			},
		},
		{
			Name:        "valid_dimensions",
			Description: "dimensions must be positive",
			RiskLevel:   models.RiskMedium,
			AutoFixHint: "replace non-positive dimensions with defaults",
			Check:       checkValidDimensions,
		},
	}
}

// checkTargetEntitiesExist verifies that every entity a modification or
// boolean operation targets is present in the document snapshot. Tasks
// without targets and snapshots without entity information pass.
func checkTargetEntitiesExist(task models.Task, docCtx map[string]any) (bool, error) {
	if task.Type != models.TaskGeometryModification {
		return true, nil
	}

	raw, ok := docCtx["entity_ids"]
	if !ok {
		return true, nil
	}
	live, err := cast.ToStringSliceE(raw)
	if err != nil {
		return false, fmt.Errorf("reading entity_ids from context: %w", err)
	}
	liveSet := make(map[string]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}

	for _, id := range targetEntityIDs(task) {
		if !liveSet[id] {
			return false, nil
		}
	}
	return true, nil
}

// targetEntityIDs extracts the entity ids a task operates on from its
// parameters. Supported keys: "target" (single id) and "targets"/"objects"
// (lists).
func targetEntityIDs(task models.Task) []string {
	var ids []string
	if target, err := cast.ToStringE(task.Parameters["target"]); err == nil && target != "" {
		ids = append(ids, target)
	}
	for _, key := range []string{"targets", "objects"} {
		if raw, ok := task.Parameters[key]; ok {
			if list, err := cast.ToStringSliceE(raw); err == nil {
				ids = append(ids, list...)
			}
		}
	}
	return ids
}

// isDestructive reports whether the task's operation key or description
// signals destructive intent.
func isDestructive(task models.Task) bool {
	op := cast.ToString(task.Parameters["operation"])
	if destructiveOperations[op] {
		return true
	}
	desc := strings.ToLower(task.Description)
	for _, keyword := range destructiveKeywords {
		if strings.Contains(desc, keyword) {
			return true
		}
	}
	return false
}

// dimensionKeys maps creation operations to the parameters that must be
// positive numbers when present.
var dimensionKeys = map[string][]string{
	"create_box":      {"length", "width", "height"},
	"create_cylinder": {"radius", "height"},
	"create_sphere":   {"radius"},
	"create_cone":     {"radius1", "height"},
	"create_torus":    {"radius1", "radius2"},
}

// checkValidDimensions rejects non-positive dimensions on primitive
// creation operations. Missing parameters are left to worker validation.
func checkValidDimensions(task models.Task, _ map[string]any) (bool, error) {
	op := cast.ToString(task.Parameters["operation"])
	keys, ok := dimensionKeys[op]
	if !ok {
		return true, nil
	}
	for _, key := range keys {
		raw, present := task.Parameters[key]
		if !present {
			continue
		}
		value, err := cast.ToFloat64E(raw)
		if err != nil {
			return false, fmt.Errorf("parameter %q is not numeric: %w", key, err)
		}
		if value <= 0 {
			return false, nil
		}
	}
	return true, nil
}
