package workers

import (
	"context"
	"strings"
	"testing"

	"github.com/valter-silva-au/ai-cad-agent/internal/document"
	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

func newAnalysisFixture(t *testing.T) (*AnalysisWorker, *document.Document) {
	t.Helper()
	doc := document.New("test")
	w, err := NewAnalysisWorker(doc)
	if err != nil {
		t.Fatalf("NewAnalysisWorker failed: %v", err)
	}
	return w, doc
}

func analysisTask(op string, params map[string]any) models.Task {
	merged := map[string]any{"operation": op}
	for k, v := range params {
		merged[k] = v
	}
	taskType := models.TaskAnalysis
	if op == "validate_geometry" {
		taskType = models.TaskValidation
	}
	return models.Task{ID: "a1", Type: taskType, Parameters: merged}
}

func runAnalysis(t *testing.T, w *AnalysisWorker, task models.Task) models.TaskResult {
	t.Helper()
	result, err := w.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	return result
}

func addSolid(t *testing.T, doc *document.Document, label string, volume float64) string {
	t.Helper()
	id, err := doc.AddEntity("Part::Box", label, map[string]any{
		"volume":       volume,
		"surface_area": 6.0,
		"bounding_box": map[string]float64{"length": 1, "width": 1, "height": 1},
	})
	if err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}
	return id
}

func TestAnalysisWorkerMeasures(t *testing.T) {
	w, doc := newAnalysisFixture(t)
	id := addSolid(t, doc, "Box", 42)

	volume := runAnalysis(t, w, analysisTask("volume_analysis", map[string]any{"target": id}))
	if volume.Status != models.TaskCompleted {
		t.Fatalf("volume_analysis failed: %s", volume.Error)
	}
	if volume.Data["volume"] != 42.0 {
		t.Errorf("volume = %v, want 42", volume.Data["volume"])
	}
	if len(volume.CreatedEntityIDs)+len(volume.ModifiedEntityIDs) != 0 {
		t.Error("analysis must not report entity changes")
	}

	area := runAnalysis(t, w, analysisTask("surface_area_analysis", map[string]any{"target": id}))
	if area.Data["surface_area"] != 6.0 {
		t.Errorf("surface_area = %v, want 6", area.Data["surface_area"])
	}

	bounds := runAnalysis(t, w, analysisTask("bounding_box_analysis", map[string]any{"target": id}))
	if bounds.Status != models.TaskCompleted {
		t.Fatalf("bounding_box_analysis failed: %s", bounds.Error)
	}

	missing := runAnalysis(t, w, analysisTask("volume_analysis", map[string]any{"target": "Ghost"}))
	if missing.Status != models.TaskFailed {
		t.Error("missing entity should fail the analysis")
	}
}

func TestAnalysisWorkerMassProperties(t *testing.T) {
	w, doc := newAnalysisFixture(t)
	id := addSolid(t, doc, "Box", 10)

	result := runAnalysis(t, w, analysisTask("mass_properties", map[string]any{"target": id, "density": 2.5}))
	if result.Status != models.TaskCompleted {
		t.Fatalf("mass_properties failed: %s", result.Error)
	}
	if result.Data["mass"] != 25.0 {
		t.Errorf("mass = %v, want 25", result.Data["mass"])
	}

	bad := runAnalysis(t, w, analysisTask("mass_properties", map[string]any{"target": id, "density": 0.0}))
	if bad.Status != models.TaskFailed {
		t.Error("zero density should fail")
	}
}

func TestAnalysisWorkerValidateGeometry(t *testing.T) {
	w, doc := newAnalysisFixture(t)
	good := addSolid(t, doc, "Good", 5)
	broken := addSolid(t, doc, "Broken", 0)

	whole := runAnalysis(t, w, analysisTask("validate_geometry", nil))
	if whole.Status != models.TaskCompleted {
		t.Fatalf("validate_geometry failed: %s", whole.Error)
	}
	if whole.Data["valid"] != false {
		t.Error("document with a zero-volume solid should not validate")
	}
	issues, _ := whole.Data["issues"].([]string)
	if len(issues) != 1 || !strings.Contains(issues[0], broken) {
		t.Errorf("issues = %v, want one naming %s", issues, broken)
	}

	single := runAnalysis(t, w, analysisTask("validate_geometry", map[string]any{"target": good}))
	if single.Data["valid"] != true {
		t.Errorf("entity %s should validate, data: %v", good, single.Data)
	}
}

func TestAnalysisWorkerCountEntities(t *testing.T) {
	w, doc := newAnalysisFixture(t)
	addSolid(t, doc, "A", 1)
	addSolid(t, doc, "B", 2)
	if _, err := doc.AddEntity("Sketcher::SketchObject", "Sketch", nil); err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}

	result := runAnalysis(t, w, analysisTask("count_entities", nil))
	if result.Data["count"] != 3 {
		t.Errorf("count = %v, want 3", result.Data["count"])
	}
	byType, _ := result.Data["by_type"].(map[string]int)
	if byType["Part::Box"] != 2 || byType["Sketcher::SketchObject"] != 1 {
		t.Errorf("by_type = %v", byType)
	}
}

func TestAnalysisWorkerCapabilities(t *testing.T) {
	w, _ := newAnalysisFixture(t)
	validation := analysisTask("validate_geometry", nil)
	if !w.CanHandle(validation) {
		t.Error("worker should handle validation tasks")
	}
	geometry := models.Task{Type: models.TaskGeometryCreation, Parameters: map[string]any{"operation": "count_entities"}}
	if w.CanHandle(geometry) {
		t.Error("worker should not handle geometry tasks")
	}
}
