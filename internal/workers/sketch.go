package workers

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// SketchWorker manages 2D sketches: creating them on a plane and adding
// geometry elements and constraints. Sketch state lives in the entity
// properties as element and constraint counters plus a log of what was
// added, enough for downstream analysis without a real solver.
type SketchWorker struct {
	doc Document
	reg *registry
}

func NewSketchWorker(doc Document) (*SketchWorker, error) {
	w := &SketchWorker{doc: doc, reg: newRegistry("sketch")}
	ops := map[string]operation{
		"create_sketch": {
			run: createSketch,
		},
		"add_line": {
			run:      addLine,
			required: []string{"sketch", "x1", "y1", "x2", "y2"},
		},
		"add_rectangle": {
			run:      addRectangle,
			required: []string{"sketch", "width", "height"},
		},
		"add_circle": {
			run:      addCircle,
			required: []string{"sketch", "radius"},
		},
		"add_constraint_horizontal": {
			run:      constraintHandler("horizontal", false),
			required: []string{"sketch", "element"},
		},
		"add_constraint_vertical": {
			run:      constraintHandler("vertical", false),
			required: []string{"sketch", "element"},
		},
		"add_constraint_distance": {
			run:      constraintHandler("distance", true),
			required: []string{"sketch", "element", "value"},
		},
		"add_constraint_radius": {
			run:      constraintHandler("radius", true),
			required: []string{"sketch", "element", "value"},
		},
	}
	for name, op := range ops {
		if err := w.reg.register(name, op); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *SketchWorker) Name() string { return "sketch" }

func (w *SketchWorker) Capabilities() []models.TaskType {
	return []models.TaskType{models.TaskSketchCreation, models.TaskSketchModification}
}

func (w *SketchWorker) CanHandle(task models.Task) bool {
	return hasCapability(w.Capabilities(), task.Type) && w.reg.supports(task.Parameters)
}

func (w *SketchWorker) ValidateParameters(params map[string]any) error {
	return w.reg.validateParams(params)
}

func (w *SketchWorker) Execute(ctx context.Context, task models.Task) (models.TaskResult, error) {
	return w.reg.execute(ctx, w.doc, task)
}

var sketchPlanes = map[string]bool{"XY": true, "XZ": true, "YZ": true}

func createSketch(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	plane := stringParamDefault(params, "plane", "XY")
	if !sketchPlanes[plane] {
		return opResult{}, fmt.Errorf("unknown sketch plane %q", plane)
	}
	props := map[string]any{
		"plane":            plane,
		"element_count":    0,
		"constraint_count": 0,
	}
	id, err := doc.AddEntity("Sketcher::SketchObject", stringParamDefault(params, "name", "Sketch"), props)
	if err != nil {
		return opResult{}, err
	}
	return opResult{
		data:    map[string]any{"entity_id": id, "plane": plane},
		created: []string{id},
	}, nil
}

// addElements bumps the element counter on a sketch and records what
// was added.
func addElements(doc Document, sketchID, element string, count int, extra map[string]any) (opResult, error) {
	props, ok := doc.EntityProperties(sketchID)
	if !ok {
		return opResult{}, fmt.Errorf("sketch %s not found", sketchID)
	}
	if t, _ := doc.EntityType(sketchID); t != "Sketcher::SketchObject" {
		return opResult{}, fmt.Errorf("entity %s is not a sketch", sketchID)
	}
	total := cast.ToInt(props["element_count"]) + count
	update := map[string]any{"element_count": total, "last_element": element}
	for key, value := range extra {
		update[key] = value
	}
	if err := doc.UpdateEntity(sketchID, update); err != nil {
		return opResult{}, err
	}
	data := map[string]any{"entity_id": sketchID, "element": element, "element_count": total}
	for key, value := range extra {
		data[key] = value
	}
	return opResult{data: data, modified: []string{sketchID}}, nil
}

func addLine(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	coords := make([]float64, 0, 4)
	for _, key := range []string{"x1", "y1", "x2", "y2"} {
		value, err := floatParam(params, key)
		if err != nil {
			return opResult{}, err
		}
		coords = append(coords, value)
	}
	extra := map[string]any{
		"start": formatPoint(coords[0], coords[1]),
		"end":   formatPoint(coords[2], coords[3]),
	}
	return addElements(doc, stringParamDefault(params, "sketch", ""), "line", 1, extra)
}

func addRectangle(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	width, err := floatParam(params, "width")
	if err != nil {
		return opResult{}, err
	}
	height, err := floatParam(params, "height")
	if err != nil {
		return opResult{}, err
	}
	if width <= 0 || height <= 0 {
		return opResult{}, fmt.Errorf("rectangle sides must be positive, got %g x %g", width, height)
	}
	extra := map[string]any{"width": width, "height": height}
	// A rectangle is four connected line segments.
	return addElements(doc, stringParamDefault(params, "sketch", ""), "rectangle", 4, extra)
}

func addCircle(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	radius, err := floatParam(params, "radius")
	if err != nil {
		return opResult{}, err
	}
	if radius <= 0 {
		return opResult{}, fmt.Errorf("circle radius must be positive, got %g", radius)
	}
	x, err := floatParamDefault(params, "x", 0)
	if err != nil {
		return opResult{}, err
	}
	y, err := floatParamDefault(params, "y", 0)
	if err != nil {
		return opResult{}, err
	}
	extra := map[string]any{"radius": radius, "center": formatPoint(x, y)}
	return addElements(doc, stringParamDefault(params, "sketch", ""), "circle", 1, extra)
}

// constraintHandler builds the handler for one constraint kind. Datum
// constraints carry a value, geometric ones do not.
func constraintHandler(kind string, datum bool) handlerFunc {
	return func(_ context.Context, doc Document, params map[string]any) (opResult, error) {
		sketchID := stringParamDefault(params, "sketch", "")
		props, ok := doc.EntityProperties(sketchID)
		if !ok {
			return opResult{}, fmt.Errorf("sketch %s not found", sketchID)
		}
		element, err := cast.ToIntE(params["element"])
		if err != nil {
			return opResult{}, fmt.Errorf("parameter \"element\" is not an index: %w", err)
		}
		if element < 0 || element >= cast.ToInt(props["element_count"]) {
			return opResult{}, fmt.Errorf("element index %d out of range", element)
		}
		total := cast.ToInt(props["constraint_count"]) + 1
		update := map[string]any{"constraint_count": total, "last_constraint": kind}
		data := map[string]any{
			"entity_id":        sketchID,
			"constraint":       kind,
			"element":          element,
			"constraint_count": total,
		}
		if datum {
			value, valErr := floatParam(params, "value")
			if valErr != nil {
				return opResult{}, valErr
			}
			update["last_constraint_value"] = value
			data["value"] = value
		}
		if err := doc.UpdateEntity(sketchID, update); err != nil {
			return opResult{}, err
		}
		return opResult{data: data, modified: []string{sketchID}}, nil
	}
}

func formatPoint(x, y float64) string {
	return fmt.Sprintf("(%g, %g)", x, y)
}
