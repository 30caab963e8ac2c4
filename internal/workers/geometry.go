package workers

import (
	"context"
	"fmt"
	"math"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// GeometryWorker builds and modifies solid geometry: primitives, boolean
// combinations, and shape modifiers such as fillets and transforms.
type GeometryWorker struct {
	doc Document
	reg *registry
}

func NewGeometryWorker(doc Document) (*GeometryWorker, error) {
	w := &GeometryWorker{doc: doc, reg: newRegistry("geometry")}
	ops := map[string]operation{
		"create_box": {
			run:       createBox,
			required:  []string{"length", "width", "height"},
			exclusive: [][]string{{"position", "placement"}},
		},
		"create_cylinder": {
			run:       createCylinder,
			required:  []string{"radius", "height"},
			exclusive: [][]string{{"position", "placement"}},
		},
		"create_sphere": {
			run:       createSphere,
			required:  []string{"radius"},
			exclusive: [][]string{{"position", "placement"}},
		},
		"create_cone": {
			run:       createCone,
			required:  []string{"radius1", "height"},
			exclusive: [][]string{{"position", "placement"}},
		},
		"create_torus": {
			run:       createTorus,
			required:  []string{"radius1", "radius2"},
			exclusive: [][]string{{"position", "placement"}},
		},
		"boolean_union": {
			run:      booleanUnion,
			required: []string{"objects"},
			validate: validateBooleanObjects,
		},
		"boolean_difference": {
			run:      booleanDifference,
			required: []string{"objects"},
			validate: validateBooleanObjects,
		},
		"boolean_intersection": {
			run:      booleanIntersection,
			required: []string{"objects"},
			validate: validateBooleanObjects,
		},
		"add_fillet": {
			run:      addFillet,
			required: []string{"target", "radius"},
		},
		"add_chamfer": {
			run:      addChamfer,
			required: []string{"target", "distance"},
		},
		"mirror_object": {
			run:      mirrorObject,
			required: []string{"target"},
		},
		"scale_object": {
			run:      scaleObject,
			required: []string{"target", "factor"},
		},
		"translate_object": {
			run:      translateObject,
			required: []string{"target"},
		},
	}
	for name, op := range ops {
		if err := w.reg.register(name, op); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *GeometryWorker) Name() string { return "geometry" }

func (w *GeometryWorker) Capabilities() []models.TaskType {
	return []models.TaskType{models.TaskGeometryCreation, models.TaskGeometryModification}
}

func (w *GeometryWorker) CanHandle(task models.Task) bool {
	return hasCapability(w.Capabilities(), task.Type) && w.reg.supports(task.Parameters)
}

func (w *GeometryWorker) ValidateParameters(params map[string]any) error {
	return w.reg.validateParams(params)
}

func (w *GeometryWorker) Execute(ctx context.Context, task models.Task) (models.TaskResult, error) {
	return w.reg.execute(ctx, w.doc, task)
}

func validateBooleanObjects(params map[string]any) error {
	objects, err := stringSliceParam(params, "objects")
	if err != nil {
		return err
	}
	if len(objects) < 2 {
		return fmt.Errorf("need at least two objects, got %d", len(objects))
	}
	return nil
}

// placementParam folds the optional position coordinates or the literal
// placement string into the stored placement form.
func placementParam(params map[string]any) (string, error) {
	if raw, present := params["position"]; present {
		coords, err := floatSlice(raw)
		if err != nil {
			return "", fmt.Errorf("parameter \"position\": %w", err)
		}
		if len(coords) != 3 {
			return "", fmt.Errorf("parameter \"position\" needs three coordinates, got %d", len(coords))
		}
		return formatPlacement(coords[0], coords[1], coords[2]), nil
	}
	return stringParamDefault(params, "placement", ""), nil
}

func floatSlice(raw any) ([]float64, error) {
	values, ok := raw.([]any)
	if !ok {
		if typed, isTyped := raw.([]float64); isTyped {
			return typed, nil
		}
		return nil, fmt.Errorf("not a coordinate list")
	}
	coords := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := floatParam(map[string]any{"coordinate": v}, "coordinate")
		if err != nil {
			return nil, err
		}
		coords = append(coords, f)
	}
	return coords, nil
}

func formatPlacement(x, y, z float64) string {
	return fmt.Sprintf("(%g, %g, %g)", x, y, z)
}

// createPrimitive stores a solid with its measured properties and
// reports the standard creation payload.
func createPrimitive(doc Document, entityType, label, placement string, dims map[string]float64, volume, area float64, bounds map[string]float64) (opResult, error) {
	props := map[string]any{
		"volume":       volume,
		"surface_area": area,
		"bounding_box": bounds,
	}
	for key, value := range dims {
		props[key] = value
	}
	if placement != "" {
		props["placement"] = placement
	}
	id, err := doc.AddEntity(entityType, label, props)
	if err != nil {
		return opResult{}, err
	}
	return opResult{
		data: map[string]any{
			"entity_id":    id,
			"volume":       volume,
			"surface_area": area,
			"bounding_box": bounds,
		},
		created: []string{id},
	}, nil
}

func createBox(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	length, err := floatParam(params, "length")
	if err != nil {
		return opResult{}, err
	}
	width, err := floatParam(params, "width")
	if err != nil {
		return opResult{}, err
	}
	height, err := floatParam(params, "height")
	if err != nil {
		return opResult{}, err
	}
	placement, err := placementParam(params)
	if err != nil {
		return opResult{}, err
	}
	volume := length * width * height
	area := 2 * (length*width + length*height + width*height)
	bounds := map[string]float64{"length": length, "width": width, "height": height}
	dims := map[string]float64{"length": length, "width": width, "height": height}
	return createPrimitive(doc, "Part::Box", stringParamDefault(params, "name", "Box"), placement, dims, volume, area, bounds)
}

func createCylinder(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	radius, err := floatParam(params, "radius")
	if err != nil {
		return opResult{}, err
	}
	height, err := floatParam(params, "height")
	if err != nil {
		return opResult{}, err
	}
	angle, err := floatParamDefault(params, "angle", 360)
	if err != nil {
		return opResult{}, err
	}
	placement, err := placementParam(params)
	if err != nil {
		return opResult{}, err
	}
	fraction := angle / 360
	volume := math.Pi * radius * radius * height * fraction
	area := (2*math.Pi*radius*height + 2*math.Pi*radius*radius) * fraction
	bounds := map[string]float64{"length": 2 * radius, "width": 2 * radius, "height": height}
	dims := map[string]float64{"radius": radius, "height": height, "angle": angle}
	return createPrimitive(doc, "Part::Cylinder", stringParamDefault(params, "name", "Cylinder"), placement, dims, volume, area, bounds)
}

func createSphere(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	radius, err := floatParam(params, "radius")
	if err != nil {
		return opResult{}, err
	}
	placement, err := placementParam(params)
	if err != nil {
		return opResult{}, err
	}
	volume := 4.0 / 3.0 * math.Pi * math.Pow(radius, 3)
	area := 4 * math.Pi * radius * radius
	bounds := map[string]float64{"length": 2 * radius, "width": 2 * radius, "height": 2 * radius}
	dims := map[string]float64{"radius": radius}
	return createPrimitive(doc, "Part::Sphere", stringParamDefault(params, "name", "Sphere"), placement, dims, volume, area, bounds)
}

func createCone(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	radius1, err := floatParam(params, "radius1")
	if err != nil {
		return opResult{}, err
	}
	radius2, err := floatParamDefault(params, "radius2", 0)
	if err != nil {
		return opResult{}, err
	}
	height, err := floatParam(params, "height")
	if err != nil {
		return opResult{}, err
	}
	placement, err := placementParam(params)
	if err != nil {
		return opResult{}, err
	}
	volume := math.Pi * height / 3 * (radius1*radius1 + radius1*radius2 + radius2*radius2)
	slant := math.Sqrt(height*height + (radius1-radius2)*(radius1-radius2))
	area := math.Pi*(radius1+radius2)*slant + math.Pi*radius1*radius1 + math.Pi*radius2*radius2
	widest := math.Max(radius1, radius2)
	bounds := map[string]float64{"length": 2 * widest, "width": 2 * widest, "height": height}
	dims := map[string]float64{"radius1": radius1, "radius2": radius2, "height": height}
	return createPrimitive(doc, "Part::Cone", stringParamDefault(params, "name", "Cone"), placement, dims, volume, area, bounds)
}

func createTorus(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	radius1, err := floatParam(params, "radius1")
	if err != nil {
		return opResult{}, err
	}
	radius2, err := floatParam(params, "radius2")
	if err != nil {
		return opResult{}, err
	}
	placement, err := placementParam(params)
	if err != nil {
		return opResult{}, err
	}
	volume := 2 * math.Pi * math.Pi * radius1 * radius2 * radius2
	area := 4 * math.Pi * math.Pi * radius1 * radius2
	span := 2 * (radius1 + radius2)
	bounds := map[string]float64{"length": span, "width": span, "height": 2 * radius2}
	dims := map[string]float64{"radius1": radius1, "radius2": radius2}
	return createPrimitive(doc, "Part::Torus", stringParamDefault(params, "name", "Torus"), placement, dims, volume, area, bounds)
}

// booleanOp records a combination entity referencing its sources. The
// sources stay in the document as children of the result.
func booleanOp(doc Document, params map[string]any, entityType, defaultLabel, kind string) (opResult, error) {
	objects, err := stringSliceParam(params, "objects")
	if err != nil {
		return opResult{}, err
	}
	for _, id := range objects {
		if _, ok := doc.EntityType(id); !ok {
			return opResult{}, fmt.Errorf("entity %s not found", id)
		}
	}
	props := map[string]any{"operation": kind, "sources": objects}
	id, err := doc.AddEntity(entityType, stringParamDefault(params, "name", defaultLabel), props)
	if err != nil {
		return opResult{}, err
	}
	return opResult{
		data: map[string]any{
			"entity_id":    id,
			"operation":    kind,
			"source_count": len(objects),
		},
		created:  []string{id},
		modified: objects,
	}, nil
}

func booleanUnion(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	return booleanOp(doc, params, "Part::MultiFuse", "Union", "union")
}

func booleanDifference(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	return booleanOp(doc, params, "Part::Cut", "Cut", "difference")
}

func booleanIntersection(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	return booleanOp(doc, params, "Part::MultiCommon", "Common", "intersection")
}

func addFillet(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	radius, err := floatParam(params, "radius")
	if err != nil {
		return opResult{}, err
	}
	if radius <= 0 {
		return opResult{}, fmt.Errorf("fillet radius must be positive, got %g", radius)
	}
	if err := doc.UpdateEntity(target, map[string]any{"fillet_radius": radius}); err != nil {
		return opResult{}, err
	}
	return opResult{
		data:     map[string]any{"entity_id": target, "fillet_radius": radius},
		modified: []string{target},
	}, nil
}

func addChamfer(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	distance, err := floatParam(params, "distance")
	if err != nil {
		return opResult{}, err
	}
	if distance <= 0 {
		return opResult{}, fmt.Errorf("chamfer distance must be positive, got %g", distance)
	}
	if err := doc.UpdateEntity(target, map[string]any{"chamfer_distance": distance}); err != nil {
		return opResult{}, err
	}
	return opResult{
		data:     map[string]any{"entity_id": target, "chamfer_distance": distance},
		modified: []string{target},
	}, nil
}

func mirrorObject(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	plane := stringParamDefault(params, "plane", "XY")
	entityType, ok := doc.EntityType(target)
	if !ok {
		return opResult{}, fmt.Errorf("entity %s not found", target)
	}
	props, _ := doc.EntityProperties(target)
	copied := make(map[string]any, len(props)+2)
	for key, value := range props {
		copied[key] = value
	}
	copied["mirror_plane"] = plane
	copied["mirror_of"] = target
	label := stringParamDefault(params, "name", target+"_Mirrored")
	id, err := doc.AddEntity(entityType, label, copied)
	if err != nil {
		return opResult{}, err
	}
	return opResult{
		data:    map[string]any{"entity_id": id, "mirror_plane": plane},
		created: []string{id},
	}, nil
}

// scaleObject applies a uniform factor to the stored dimensions, so the
// derived measures stay consistent with the shape.
func scaleObject(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	factor, err := floatParam(params, "factor")
	if err != nil {
		return opResult{}, err
	}
	if factor <= 0 {
		return opResult{}, fmt.Errorf("scale factor must be positive, got %g", factor)
	}
	props, ok := doc.EntityProperties(target)
	if !ok {
		return opResult{}, fmt.Errorf("entity %s not found", target)
	}
	update := map[string]any{"scale_factor": factor}
	for _, key := range []string{"length", "width", "height", "radius", "radius1", "radius2"} {
		if value, present := props[key]; present {
			if f, convErr := floatParam(map[string]any{key: value}, key); convErr == nil {
				update[key] = f * factor
			}
		}
	}
	if value, present := props["volume"]; present {
		if f, convErr := floatParam(map[string]any{"volume": value}, "volume"); convErr == nil {
			update["volume"] = f * math.Pow(factor, 3)
		}
	}
	if value, present := props["surface_area"]; present {
		if f, convErr := floatParam(map[string]any{"surface_area": value}, "surface_area"); convErr == nil {
			update["surface_area"] = f * factor * factor
		}
	}
	if raw, present := props["bounding_box"]; present {
		if bounds, isBounds := raw.(map[string]float64); isBounds {
			scaled := make(map[string]float64, len(bounds))
			for key, value := range bounds {
				scaled[key] = value * factor
			}
			update["bounding_box"] = scaled
		}
	}
	if err := doc.UpdateEntity(target, update); err != nil {
		return opResult{}, err
	}
	return opResult{
		data:     map[string]any{"entity_id": target, "scale_factor": factor},
		modified: []string{target},
	}, nil
}

func translateObject(_ context.Context, doc Document, params map[string]any) (opResult, error) {
	target := stringParamDefault(params, "target", "")
	x, err := floatParamDefault(params, "x", 0)
	if err != nil {
		return opResult{}, err
	}
	y, err := floatParamDefault(params, "y", 0)
	if err != nil {
		return opResult{}, err
	}
	z, err := floatParamDefault(params, "z", 0)
	if err != nil {
		return opResult{}, err
	}
	placement := formatPlacement(x, y, z)
	if err := doc.UpdateEntity(target, map[string]any{"placement": placement}); err != nil {
		return opResult{}, err
	}
	return opResult{
		data:     map[string]any{"entity_id": target, "placement": placement},
		modified: []string{target},
	}, nil
}
