package internal

import (
	"context"
	"strings"
	"testing"

	"github.com/valter-silva-au/ai-cad-agent/internal/request"
	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// =============================================================================
// Edge Case 1: Empty and nonsense requests never reach the planner
// =============================================================================

func TestEdgeCase_EmptyRequest_ParserRejects(t *testing.T) {
	app := newTestApp(t)

	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := request.Parse(text, app.Doc.ContextSnapshot()); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}

func TestEdgeCase_NonsenseRequest_NamesTheSegment(t *testing.T) {
	app := newTestApp(t)

	_, err := request.Parse("recalibrate the flux manifold", app.Doc.ContextSnapshot())
	if err == nil {
		t.Fatal("unrecognized request should fail")
	}
	if !strings.Contains(err.Error(), "recalibrate the flux manifold") {
		t.Errorf("error should quote the segment: %v", err)
	}
}

// =============================================================================
// Edge Case 2: Plans whose task types no worker covers
// =============================================================================

func TestEdgeCase_UncoveredTaskType_ValidationCatchesIt(t *testing.T) {
	app := newTestApp(t)
	specs := []models.TaskSpec{
		{
			Type:        models.TaskOptimization,
			Description: "minimize mass",
			Parameters:  map[string]any{"operation": "optimize_topology"},
		},
	}

	report, err := app.Coordinator.ValidateSpecs(specs)
	if err != nil {
		t.Fatalf("ValidateSpecs: %v", err)
	}
	if report.Feasible {
		t.Fatal("no worker covers optimization tasks, report should be infeasible")
	}
	if len(report.Issues) == 0 || !strings.Contains(report.Issues[0], "no capable worker") {
		t.Errorf("issues = %v", report.Issues)
	}
}

func TestEdgeCase_UncoveredTaskType_ExecutionFailsTheTask(t *testing.T) {
	app := newTestApp(t)
	specs := []models.TaskSpec{
		{
			Type:        models.TaskOptimization,
			Description: "minimize mass",
			Parameters:  map[string]any{"operation": "optimize_topology"},
		},
	}

	summary, err := app.Coordinator.ExecuteSpecs(context.Background(), "optimize", specs)
	if err != nil {
		t.Fatalf("ExecuteSpecs: %v", err)
	}
	if summary.Status != "failed" {
		t.Errorf("status = %s, want failed", summary.Status)
	}
	if !strings.Contains(summary.Error, "failed tasks") {
		t.Errorf("summary error = %q", summary.Error)
	}
	for _, res := range summary.Results {
		if !strings.Contains(res.Error, "no capable worker") {
			t.Errorf("task error = %q", res.Error)
		}
	}
}

// =============================================================================
// Edge Case 3: Resource ceilings stop runaway plans
// =============================================================================

func TestEdgeCase_EntityCeiling_BlocksFurtherCreation(t *testing.T) {
	app := newTestAppWithConfig(t, "safety:\n  max_entities: 2\n")
	specs := []models.TaskSpec{
		{Type: models.TaskGeometryCreation, Description: "a",
			Parameters: map[string]any{"operation": "create_box", "length": 1.0, "width": 1.0, "height": 1.0, "name": "A"}},
		{Type: models.TaskGeometryCreation, Description: "b",
			Parameters: map[string]any{"operation": "create_box", "length": 1.0, "width": 1.0, "height": 1.0, "name": "B"}},
		{Type: models.TaskGeometryCreation, Description: "c",
			Parameters: map[string]any{"operation": "create_box", "length": 1.0, "width": 1.0, "height": 1.0, "name": "C"}},
	}

	summary, err := app.Coordinator.ExecuteSpecs(context.Background(), "three boxes", specs)
	if err != nil {
		t.Fatalf("ExecuteSpecs: %v", err)
	}
	if summary.Status != "partial_success" {
		t.Errorf("status = %s, want partial_success", summary.Status)
	}
	if got := len(app.Doc.EntityIDs()); got != 2 {
		t.Errorf("entities = %d, want 2", got)
	}

	blocked := 0
	for _, res := range summary.Results {
		if res.Status == models.TaskFailed {
			blocked++
			if !strings.Contains(res.Error, "entity limit") {
				t.Errorf("blocked task error = %q", res.Error)
			}
		}
	}
	if blocked != 1 {
		t.Errorf("blocked tasks = %d, want 1", blocked)
	}
}

func TestEdgeCase_RateLimit_SecondOperationBlocked(t *testing.T) {
	app := newTestAppWithConfig(t, "safety:\n  max_operations_per_minute: 1\n")
	specs := []models.TaskSpec{
		{Type: models.TaskGeometryCreation, Description: "a",
			Parameters: map[string]any{"operation": "create_box", "length": 1.0, "width": 1.0, "height": 1.0, "name": "A"}},
		{Type: models.TaskGeometryCreation, Description: "b",
			Parameters: map[string]any{"operation": "create_box", "length": 1.0, "width": 1.0, "height": 1.0, "name": "B"}},
	}

	summary, err := app.Coordinator.ExecuteSpecs(context.Background(), "two boxes", specs)
	if err != nil {
		t.Fatalf("ExecuteSpecs: %v", err)
	}
	if summary.Status != "partial_success" {
		t.Errorf("status = %s, want partial_success", summary.Status)
	}
	if got := len(app.Doc.EntityIDs()); got != 1 {
		t.Errorf("entities = %d, want 1", got)
	}

	var blockedErr string
	for _, res := range summary.Results {
		if res.Status == models.TaskFailed {
			blockedErr = res.Error
		}
	}
	if !strings.Contains(blockedErr, "rate limit") {
		t.Errorf("blocked task error = %q", blockedErr)
	}
}

// =============================================================================
// Edge Case 4: Label collisions uniquify the way CAD kernels do
// =============================================================================

func TestEdgeCase_DuplicateLabels_GetNumericSuffix(t *testing.T) {
	app := newTestApp(t)
	specs := []models.TaskSpec{
		{Type: models.TaskGeometryCreation, Description: "first",
			Parameters: map[string]any{"operation": "create_box", "length": 1.0, "width": 1.0, "height": 1.0}},
		{Type: models.TaskGeometryCreation, Description: "second",
			Parameters: map[string]any{"operation": "create_box", "length": 2.0, "width": 2.0, "height": 2.0}},
	}

	summary, err := app.Coordinator.ExecuteSpecs(context.Background(), "two default boxes", specs)
	if err != nil {
		t.Fatalf("ExecuteSpecs: %v", err)
	}
	if summary.Status != "completed" {
		t.Fatalf("status = %s", summary.Status)
	}

	if _, ok := app.Doc.Entity("Box"); !ok {
		t.Error("first box should be Box")
	}
	if _, ok := app.Doc.Entity("Box001"); !ok {
		t.Errorf("second box should be Box001, have %v", app.Doc.EntityIDs())
	}
}

// =============================================================================
// Edge Case 5: Cancelled context stops scheduling cleanly
// =============================================================================

func TestEdgeCase_CancelledContext_NoWorkDone(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	specs := parseRequest(t, app, "create a 20x10x5 box")
	summary, err := app.Coordinator.ExecuteSpecs(ctx, "cancelled before start", specs)
	if err != nil {
		t.Fatalf("cancellation is not a scheduling fault: %v", err)
	}
	if summary.Status != "cancelled" {
		t.Errorf("status = %s, want cancelled", summary.Status)
	}
	if len(app.Doc.EntityIDs()) != 0 {
		t.Errorf("cancelled run should not create entities, has %v", app.Doc.EntityIDs())
	}
}

// =============================================================================
// Edge Case 6: History limits and missing plans
// =============================================================================

func TestEdgeCase_HistoryLimit_ReturnsNewestFirst(t *testing.T) {
	app := newTestApp(t)

	for _, name := range []string{"First", "Second", "Third"} {
		specs := []models.TaskSpec{
			{Type: models.TaskGeometryCreation, Description: name,
				Parameters: map[string]any{"operation": "create_box", "length": 1.0, "width": 1.0, "height": 1.0, "name": name}},
		}
		if _, err := app.Coordinator.ExecuteSpecs(context.Background(), name, specs); err != nil {
			t.Fatalf("ExecuteSpecs %s: %v", name, err)
		}
	}

	records, err := app.Coordinator.History(2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Description != "Third" {
		t.Errorf("newest record = %q, want Third", records[0].Description)
	}
}

func TestEdgeCase_UnknownPlanStatus_ReturnsError(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.Coordinator.PlanStatus("plan-nope"); err == nil {
		t.Error("unknown plan id should error")
	}
	if err := app.Coordinator.CancelPlan("plan-nope"); err == nil {
		t.Error("cancelling an unknown plan should error")
	}
}
