package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// SafetyController decides whether an operation may proceed, at what risk
// tier, whether a human must approve it, and how to undo it afterwards.
// It also owns the process-wide pause/manual-control gate the planner
// consults before dispatching.
type SafetyController interface {
	ValidateOperation(task models.Task, docCtx map[string]any) models.SafetyCheckResult
	RequireUserConfirmation(task models.Task, check models.SafetyCheckResult) bool
	SetupRollbackPoint(operationID string) (string, error)
	ExecuteRollback(snapshotID string) bool
	RegisterConstraint(c SafetyConstraint) error
	Pause()
	Resume()
	EnableManualControl()
	DisableManualControl()
	OperationsAllowed() bool
	Status() models.SafetyStatus
	Snapshots() []models.RollbackSnapshot
	ReleaseSnapshot(snapshotID string) bool
	ClearSnapshots()
}

// safetyController implements SafetyController against a Document and an
// optional ConfirmationChannel.
type safetyController struct {
	cfg     models.SafetyConfig
	doc     Document
	channel ConfirmationChannel
	events  EventLogger
	idGen   IDGenerator
	limiter *operationLimiter

	// now is injectable for tests.
	now func() time.Time

	mu            sync.Mutex
	constraints   []SafetyConstraint
	snapshots     map[string]models.RollbackSnapshot
	snapshotOrder []string
	paused        bool
	manualControl bool
}

// NewSafetyController creates a SafetyController with the built-in
// constraint set registered. channel may be nil, in which case the
// auto-approve/deny policy applies; events may be nil to discard events.
func NewSafetyController(cfg models.SafetyConfig, doc Document, channel ConfirmationChannel, events EventLogger) SafetyController {
	return newSafetyController(cfg, doc, channel, events, time.Now)
}

func newSafetyController(cfg models.SafetyConfig, doc Document, channel ConfirmationChannel, events EventLogger, now func() time.Time) *safetyController {
	if events == nil {
		events = nopEventLogger{}
	}
	return &safetyController{
		cfg:         cfg,
		doc:         doc,
		channel:     channel,
		events:      events,
		idGen:       NewIDGenerator(),
		limiter:     newOperationLimiter(cfg.MaxOperationsPerMinute, now),
		now:         now,
		constraints: DefaultConstraints(),
		snapshots:   make(map[string]models.RollbackSnapshot),
	}
}

// ValidateOperation evaluates every registered constraint against the
// task and context, then enforces the resource limits. Violations at
// high_risk or above become errors and force Passed to false; lower tiers
// become warnings. The result's RiskLevel is the maximum tier seen across
// violated constraints.
func (s *safetyController) ValidateOperation(task models.Task, docCtx map[string]any) models.SafetyCheckResult {
	result := models.SafetyCheckResult{Passed: true, RiskLevel: models.RiskSafe}

	s.mu.Lock()
	constraints := make([]SafetyConstraint, len(s.constraints))
	copy(constraints, s.constraints)
	s.mu.Unlock()

	for _, c := range constraints {
		ok, err := c.Check(task, docCtx)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("could not verify constraint %s: %v", c.Name, err))
			continue
		}
		if ok {
			continue
		}
		violation := fmt.Sprintf("%s: %s", c.Name, c.Description)
		if c.RiskLevel.AtLeast(models.RiskHigh) {
			result.Errors = append(result.Errors, violation)
			result.Passed = false
		} else {
			result.Warnings = append(result.Warnings, violation)
		}
		result.RiskLevel = models.MaxRisk(result.RiskLevel, c.RiskLevel)
		if c.AutoFixHint != "" {
			result.AutoFixable = append(result.AutoFixable,
				fmt.Sprintf("%s: %s", c.Name, c.AutoFixHint))
		}
	}

	if reason, ok := s.checkResourceLimits(); !ok {
		result.Errors = append(result.Errors, reason)
		result.Passed = false
		result.RiskLevel = models.MaxRisk(result.RiskLevel, models.RiskHigh)
	}

	if !result.Passed {
		_ = s.events.LogEvent("safety_violation", map[string]any{
			"task_id":    task.ID,
			"risk_level": string(result.RiskLevel),
			"errors":     strings.Join(result.Errors, "; "),
		})
	}

	return result
}

// checkResourceLimits enforces the sliding per-minute operation ceiling
// and the live-entity ceiling. A passing check consumes one slot of the
// operation window.
func (s *safetyController) checkResourceLimits() (string, bool) {
	if !s.limiter.Allow() {
		return fmt.Sprintf("operation rate limit reached (%d per minute)",
			s.cfg.MaxOperationsPerMinute), false
	}
	if s.doc != nil && s.doc.Attached() && len(s.doc.EntityIDs()) >= s.cfg.MaxEntities {
		return fmt.Sprintf("document entity limit reached (%d)", s.cfg.MaxEntities), false
	}
	return "", true
}

// RequireUserConfirmation applies the escalation policy and returns
// whether the operation may proceed. Without a channel: approve only when
// the risk stays below high_risk and the safety level below critical.
// With a channel: solicit the human whenever the risk is high_risk or
// above, the level is critical, or validation recorded errors; approve
// everything else automatically. A human approval overrides recorded
// validation errors.
func (s *safetyController) RequireUserConfirmation(task models.Task, check models.SafetyCheckResult) bool {
	highRisk := check.RiskLevel.AtLeast(models.RiskHigh)
	critical := s.cfg.Level == models.SafetyCritical

	if s.channel == nil {
		return !highRisk && !critical
	}

	if !highRisk && !critical && len(check.Errors) == 0 {
		return true
	}

	approved, err := s.channel.Confirm(s.operationDetails(task, check))
	if err != nil {
		_ = s.events.LogEvent("confirmation_error", map[string]any{
			"task_id": task.ID,
			"error":   err.Error(),
		})
		return false
	}
	_ = s.events.LogEvent("confirmation_decision", map[string]any{
		"task_id":  task.ID,
		"approved": approved,
	})
	return approved
}

// operationDetails builds the payload shown to a human when soliciting
// confirmation.
func (s *safetyController) operationDetails(task models.Task, check models.SafetyCheckResult) models.OperationDetails {
	notes := make([]string, 0, len(check.Errors)+len(check.Warnings))
	notes = append(notes, check.Errors...)
	notes = append(notes, check.Warnings...)
	return models.OperationDetails{
		Title:             fmt.Sprintf("Confirm %s", task.ID),
		Description:       task.Description,
		RiskLevel:         check.RiskLevel,
		AffectedEntityIDs: targetEntityIDs(task),
		PreviewAvailable:  previewAvailable(task),
		Warnings:          notes,
	}
}

// previewSupported lists the operations a geometric preview can be
// computed for before execution.
var previewSupported = map[string]bool{
	"create_box":           true,
	"create_cylinder":      true,
	"create_sphere":        true,
	"create_cone":          true,
	"create_torus":         true,
	"boolean_union":        true,
	"boolean_difference":   true,
	"boolean_intersection": true,
	"add_fillet":           true,
	"add_chamfer":          true,
}

func previewAvailable(task models.Task) bool {
	return previewSupported[cast.ToString(task.Parameters["operation"])]
}

// SetupRollbackPoint captures the document's live entity id set, tagged
// with the operation it protects. At high or critical safety levels the
// snapshot also records per-entity metadata. When the configured snapshot
// cap is exceeded the oldest snapshot is dropped.
func (s *safetyController) SetupRollbackPoint(operationID string) (string, error) {
	if s.doc == nil || !s.doc.Attached() {
		return "", fmt.Errorf("setting up rollback point for %s: no document attached", operationID)
	}

	ids := s.doc.EntityIDs()
	snap := models.RollbackSnapshot{
		ID:          s.idGen.NewSnapshotID(operationID),
		OperationID: operationID,
		CreatedAt:   s.now(),
		EntityIDs:   ids,
	}
	if s.cfg.Level.AtLeast(models.SafetyHigh) {
		snap.Entities = make(map[string]models.EntitySnapshot, len(ids))
		for _, id := range ids {
			if info, ok := s.doc.Entity(id); ok {
				snap.Entities[id] = info
			}
		}
	}

	s.mu.Lock()
	s.snapshots[snap.ID] = snap
	s.snapshotOrder = append(s.snapshotOrder, snap.ID)
	if s.cfg.MaxSnapshots > 0 && len(s.snapshotOrder) > s.cfg.MaxSnapshots {
		oldest := s.snapshotOrder[0]
		s.snapshotOrder = s.snapshotOrder[1:]
		delete(s.snapshots, oldest)
	}
	s.mu.Unlock()

	_ = s.events.LogEvent("rollback_point_created", map[string]any{
		"snapshot_id":  snap.ID,
		"operation_id": operationID,
		"entity_count": len(ids),
	})
	return snap.ID, nil
}

// ExecuteRollback removes every entity not present in the snapshot, in
// reverse creation order, then recomputes the document. Per-entity
// removal failures are logged and skipped; the rollback still reports
// success. The snapshot stays registered until released or evicted, so
// repeating a rollback finds nothing to remove and succeeds.
func (s *safetyController) ExecuteRollback(snapshotID string) bool {
	s.mu.Lock()
	snap, ok := s.snapshots[snapshotID]
	s.mu.Unlock()
	if !ok {
		_ = s.events.LogEvent("rollback_failed", map[string]any{
			"snapshot_id": snapshotID,
			"error":       "snapshot not found",
		})
		return false
	}
	if s.doc == nil || !s.doc.Attached() {
		_ = s.events.LogEvent("rollback_failed", map[string]any{
			"snapshot_id": snapshotID,
			"error":       "no document attached",
		})
		return false
	}

	keep := make(map[string]bool, len(snap.EntityIDs))
	for _, id := range snap.EntityIDs {
		keep[id] = true
	}

	removed, skipped := 0, 0
	live := s.doc.EntityIDs()
	for i := len(live) - 1; i >= 0; i-- {
		id := live[i]
		if keep[id] {
			continue
		}
		if err := s.doc.RemoveEntity(id); err != nil {
			skipped++
			_ = s.events.LogEvent("rollback_entity_skipped", map[string]any{
				"snapshot_id": snapshotID,
				"entity_id":   id,
				"error":       err.Error(),
			})
			continue
		}
		removed++
	}

	if err := s.doc.Recompute(); err != nil {
		_ = s.events.LogEvent("rollback_recompute_failed", map[string]any{
			"snapshot_id": snapshotID,
			"error":       err.Error(),
		})
	}

	_ = s.events.LogEvent("rollback_executed", map[string]any{
		"snapshot_id": snapshotID,
		"removed":     removed,
		"skipped":     skipped,
	})
	return true
}

// RegisterConstraint adds a constraint to the sweep. Names must be unique
// and the check function non-nil; both are validated at registration.
func (s *safetyController) RegisterConstraint(c SafetyConstraint) error {
	if c.Name == "" {
		return fmt.Errorf("registering constraint: name must not be empty")
	}
	if c.Check == nil {
		return fmt.Errorf("registering constraint %s: check function must not be nil", c.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.constraints {
		if existing.Name == c.Name {
			return fmt.Errorf("registering constraint %s: already registered", c.Name)
		}
	}
	s.constraints = append(s.constraints, c)
	return nil
}

// Pause stops new dispatches until Resume is called.
func (s *safetyController) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	_ = s.events.LogEvent("operations_paused", nil)
}

// Resume lifts a pause.
func (s *safetyController) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	_ = s.events.LogEvent("operations_resumed", nil)
}

// EnableManualControl hands the document over to a human; dispatching
// stays blocked until DisableManualControl.
func (s *safetyController) EnableManualControl() {
	s.mu.Lock()
	s.manualControl = true
	s.mu.Unlock()
	_ = s.events.LogEvent("manual_control_enabled", nil)
}

// DisableManualControl returns control to the engine and lifts any pause.
func (s *safetyController) DisableManualControl() {
	s.mu.Lock()
	s.manualControl = false
	s.paused = false
	s.mu.Unlock()
	_ = s.events.LogEvent("manual_control_disabled", nil)
}

// OperationsAllowed reports whether the planner may dispatch new tasks.
func (s *safetyController) OperationsAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.paused && !s.manualControl
}

// Status reports the controller's current state.
func (s *safetyController) Status() models.SafetyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SafetyStatus{
		Level:            s.cfg.Level,
		Limits:           s.cfg.Limits(),
		OperationsCount:  s.limiter.Count(),
		Paused:           s.paused,
		ManualControl:    s.manualControl,
		SnapshotCount:    len(s.snapshots),
		ConstraintsCount: len(s.constraints),
	}
}

// Snapshots returns the retained snapshots, oldest first.
func (s *safetyController) Snapshots() []models.RollbackSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RollbackSnapshot, 0, len(s.snapshotOrder))
	for _, id := range s.snapshotOrder {
		if snap, ok := s.snapshots[id]; ok {
			out = append(out, snap)
		}
	}
	return out
}

// ReleaseSnapshot drops one snapshot and reports whether it existed.
func (s *safetyController) ReleaseSnapshot(snapshotID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshotID]; !ok {
		return false
	}
	delete(s.snapshots, snapshotID)
	for i, id := range s.snapshotOrder {
		if id == snapshotID {
			s.snapshotOrder = append(s.snapshotOrder[:i], s.snapshotOrder[i+1:]...)
			break
		}
	}
	return true
}

// ClearSnapshots drops every retained snapshot.
func (s *safetyController) ClearSnapshots() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string]models.RollbackSnapshot)
	s.snapshotOrder = nil
}
