package workers

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// AnalysisWorker answers measurement and validation questions about the
// document. It never mutates entities, so its results carry no created
// or modified ids.
type AnalysisWorker struct {
	doc Document
	reg *registry
}

func NewAnalysisWorker(doc Document) (*AnalysisWorker, error) {
	w := &AnalysisWorker{doc: doc, reg: newRegistry("analysis")}
	ops := map[string]operation{
		"volume_analysis": {
			run:      measureHandler("volume"),
			required: []string{"target"},
		},
		"surface_area_analysis": {
			run:      measureHandler("surface_area"),
			required: []string{"target"},
		},
		"bounding_box_analysis": {
			run:      boundingBoxAnalysis,
			required: []string{"target"},
		},
		"mass_properties": {
			run:      massProperties,
			required: []string{"target"},
		},
		"validate_geometry": {
			run: validateGeometry,
		},
		"count_entities": {
			run: countEntities,
		},
	}
	for name, op := range ops {
		if err := w.reg.register(name, op); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *AnalysisWorker) Name() string { return "analysis" }

func (w *AnalysisWorker) Capabilities() []models.TaskType {
	return []models.TaskType{models.TaskAnalysis, models.TaskValidation}
}

func (w *AnalysisWorker) CanHandle(task models.Task) bool {
	return hasCapability(w.Capabilities(), task.Type) && w.reg.supports(task.Parameters)
}

func (w *AnalysisWorker) ValidateParameters(params map[string]any) error {
	return w.reg.validateParams(params)
}

func (w *AnalysisWorker) Execute(ctx context.Context, task models.Task) (models.TaskResult, error) {
	return w.reg.execute(ctx, w.doc, task)
}

// measureHandler reads one stored scalar measure from the target entity.
func measureHandler(measure string) handlerFunc {
	return func(_ context.Context, doc Document, params map[string]any) (opResult, error) {
		target := stringParamDefault(params, "target", "")
		props, ok := doc.EntityProperties(target)
		if !ok {
			return opResult{}, fmt.Errorf("entity %s not found", target)
		}
		raw, present := props[measure]
		if !present {
			return opResult{}, fmt.Errorf("entity %s has no %s data", target, measure)
		}
		value, err := floatParam(map[string]any{measure: raw}, measure)
		if err != nil {
			return opResult{}, err
		}
		return opResult{
			data: map[string]any{"entity_id": target, measure: value},
		}, nil
	}
}

func boundingBoxAnalysis(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	props, ok := doc.EntityProperties(target)
	if !ok {
		return opResult{}, fmt.Errorf("entity %s not found", target)
	}
	bounds, isBounds := props["bounding_box"].(map[string]float64)
	if !isBounds {
		return opResult{}, fmt.Errorf("entity %s has no bounding box data", target)
	}
	diagonal := 0.0
	for _, side := range bounds {
		diagonal += side * side
	}
	return opResult{
		data: map[string]any{
			"entity_id":    target,
			"bounding_box": bounds,
			"diagonal_sq":  diagonal,
		},
	}, nil
}

func massProperties(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	density, err := floatParamDefault(params, "density", 1.0)
	if err != nil {
		return opResult{}, err
	}
	if density <= 0 {
		return opResult{}, fmt.Errorf("density must be positive, got %g", density)
	}
	props, ok := doc.EntityProperties(target)
	if !ok {
		return opResult{}, fmt.Errorf("entity %s not found", target)
	}
	raw, present := props["volume"]
	if !present {
		return opResult{}, fmt.Errorf("entity %s has no volume data", target)
	}
	volume, err := floatParam(map[string]any{"volume": raw}, "volume")
	if err != nil {
		return opResult{}, err
	}
	return opResult{
		data: map[string]any{
			"entity_id": target,
			"volume":    volume,
			"density":   density,
			"mass":      volume * density,
		},
	}, nil
}

// validateGeometry inspects one entity, or the whole document when no
// target is given, and reports issues instead of failing on them.
func validateGeometry(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	ids := doc.EntityIDs()
	if target != "" {
		if _, ok := doc.EntityType(target); !ok {
			return opResult{}, fmt.Errorf("entity %s not found", target)
		}
		ids = []string{target}
	}
	var issues []string
	for _, id := range ids {
		props, ok := doc.EntityProperties(id)
		if !ok {
			continue
		}
		entityType, _ := doc.EntityType(id)
		if entityType == "Sketcher::SketchObject" {
			continue
		}
		raw, present := props["volume"]
		if !present {
			issues = append(issues, fmt.Sprintf("%s: no volume data", id))
			continue
		}
		volume, err := floatParam(map[string]any{"volume": raw}, "volume")
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: volume is not numeric", id))
			continue
		}
		if volume <= 0 {
			issues = append(issues, fmt.Sprintf("%s: non-positive volume %g", id, volume))
		}
	}
	return opResult{
		data: map[string]any{
			"checked": len(ids),
			"valid":   len(issues) == 0,
			"issues":  issues,
		},
	}, nil
}

func countEntities(_ context.Context, doc Document, _ map[string]any) (opResult, error) {
	ids := doc.EntityIDs()
	byType := make(map[string]int)
	for _, id := range ids {
		if entityType, ok := doc.EntityType(id); ok {
			byType[entityType]++
		}
	}
	return opResult{
		data: map[string]any{
			"count":   len(ids),
			"by_type": byType,
		},
	}, nil
}
