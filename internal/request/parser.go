// Package request turns free-form modelling requests into task specs
// the planner can schedule. Parsing is deliberate pattern matching, not
// NLP: a small set of shape and analysis patterns with dimension
// extraction, and sequencing words to split multi-step requests.
package request

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// ErrUnrecognized reports a request segment no pattern matched.
var ErrUnrecognized = errors.New("request not recognized")

// Complexity buckets a parsed request by how many steps it needs.
type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

// ParsedRequest is the parser output: ordered task specs whose
// dependencies reference earlier spec ids, plus an effort estimate.
type ParsedRequest struct {
	Specs      []models.TaskSpec
	Complexity Complexity
}

// sequenceWords splits a request into ordered segments.
var sequenceWords = regexp.MustCompile(`(?:,\s*|\s+)(?:and\s+)?then\s+|,?\s*after\s+that,?\s+|\s*;\s*`)

// tripleDims matches explicit length x width x height forms like
// "20x30x40" or "20mm by 30mm by 40mm".
var tripleDims = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:mm)?\s*(?:x|by)\s*(\d+(?:\.\d+)?)\s*(?:mm)?\s*(?:x|by)\s*(\d+(?:\.\d+)?)\s*(?:mm)?`)

// singleDim matches a lone millimetre measure like "10mm" or "7.5 mm".
var singleDim = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mm`)

// radiusDim and heightDim pick up keyword-tagged measures.
var (
	radiusDim = regexp.MustCompile(`radius\s*(?:of\s*)?(\d+(?:\.\d+)?)`)
	heightDim = regexp.MustCompile(`height\s*(?:of\s*)?(\d+(?:\.\d+)?)`)
	tubeDim   = regexp.MustCompile(`(?:minor|tube)\s+radius\s*(?:of\s*)?(\d+(?:\.\d+)?)`)
	widthDim  = regexp.MustCompile(`width\s*(?:of\s*)?(\d+(?:\.\d+)?)`)
	lengthDim = regexp.MustCompile(`length\s*(?:of\s*)?(\d+(?:\.\d+)?)`)
)

// pairDims matches a two-value form like "20x10" for sketch shapes.
var pairDims = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:mm)?\s*(?:x|by)\s*(\d+(?:\.\d+)?)`)

// cutWord matches "cut" as a whole word so words like "execute" do not
// read as boolean requests.
var cutWord = regexp.MustCompile(`\bcut\b`)

// namePatterns extract an object name the user asked for.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`name\s+it\s+(\w+)`),
	regexp.MustCompile(`call\s+it\s+(\w+)`),
	regexp.MustCompile(`named\s+(\w+)`),
}

// Parse analyzes a request against the document context and produces
// the specs to run. The context carries the live entity ids so target
// references can fall back to what is already in the document.
func Parse(text string, docCtx map[string]any) (*ParsedRequest, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty request: %w", ErrUnrecognized)
	}

	st := &parseState{docEntities: contextEntities(docCtx)}
	for _, segment := range splitSegments(trimmed) {
		if err := st.parseSegment(segment); err != nil {
			return nil, err
		}
	}
	st.markCritical()

	return &ParsedRequest{
		Specs:      st.specs,
		Complexity: complexityFor(len(st.specs)),
	}, nil
}

func splitSegments(text string) []string {
	parts := sequenceWords.Split(strings.ToLower(text), -1)
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func complexityFor(steps int) Complexity {
	switch {
	case steps <= 1:
		return Simple
	case steps <= 3:
		return Moderate
	default:
		return Complex
	}
}

func contextEntities(docCtx map[string]any) []string {
	if docCtx == nil {
		return nil
	}
	return cast.ToStringSlice(docCtx["entity_ids"])
}

// parseState accumulates specs across segments so later steps can
// depend on earlier ones.
type parseState struct {
	specs       []models.TaskSpec
	docEntities []string

	// lastCreated predicts the label of the most recent creation step,
	// which the document turns into the entity id.
	lastCreated     string
	lastCreatedTask string
}

func (st *parseState) nextID() string {
	return fmt.Sprintf("task-%d", len(st.specs)+1)
}

func (st *parseState) add(spec models.TaskSpec) string {
	spec.ID = st.nextID()
	if spec.Priority == 0 {
		spec.Priority = 1
	}
	st.specs = append(st.specs, spec)
	return spec.ID
}

func (st *parseState) addCreation(spec models.TaskSpec, label string) {
	id := st.add(spec)
	st.lastCreated = label
	st.lastCreatedTask = id
}

// target resolves what a modification or analysis step should act on:
// the object created earlier in this request, else the newest document
// entity, else a placeholder that fails loudly at execution.
func (st *parseState) target() (string, []string) {
	if st.lastCreated != "" {
		return st.lastCreated, []string{st.lastCreatedTask}
	}
	if len(st.docEntities) > 0 {
		return st.docEntities[len(st.docEntities)-1], nil
	}
	return "Object", nil
}

func (st *parseState) markCritical() {
	depended := make(map[string]bool)
	for _, spec := range st.specs {
		for _, dep := range spec.Dependencies {
			depended[dep] = true
		}
	}
	for i := range st.specs {
		if depended[st.specs[i].ID] {
			st.specs[i].Critical = true
		}
	}
}

// creationIntent gates the primitive patterns so a shape mentioned in
// an analysis request ("measure the volume of the box") does not read
// as a creation step.
func creationIntent(segment string) bool {
	return containsAny(segment, "create", "make", "build", "add", "new", "generate")
}

func (st *parseState) parseSegment(segment string) error {
	create := creationIntent(segment)
	switch {
	case create && containsAny(segment, "box", "cube"):
		st.parseBox(segment)
	case create && strings.Contains(segment, "cylinder"):
		st.parseCylinder(segment)
	case create && containsAny(segment, "sphere", "ball"):
		st.parseSphere(segment)
	case create && strings.Contains(segment, "cone"):
		st.parseCone(segment)
	case create && containsAny(segment, "torus", "ring"):
		st.parseTorus(segment)
	case strings.Contains(segment, "fillet"):
		st.parseDressUp(segment, "add_fillet", "radius", 2.0, "fillet")
	case strings.Contains(segment, "chamfer"):
		st.parseDressUp(segment, "add_chamfer", "distance", 1.0, "chamfer")
	case containsAny(segment, "union", "fuse", "combine", "merge"):
		st.parseBoolean(segment, "boolean_union", "Union")
	case containsAny(segment, "difference", "subtract") || cutWord.MatchString(segment):
		st.parseBoolean(segment, "boolean_difference", "Cut")
	case strings.Contains(segment, "intersect"):
		st.parseBoolean(segment, "boolean_intersection", "Common")
	case strings.Contains(segment, "sketch"):
		st.parseSketch(segment)
	case containsAny(segment, "volume", "surface area", "mass", "weigh", "bounding", "measure"):
		st.parseAnalysis(segment)
	case containsAny(segment, "validate", "verify", "check"):
		st.add(models.TaskSpec{
			Type:        models.TaskValidation,
			Description: "Validate document geometry",
			Parameters:  map[string]any{"operation": "validate_geometry"},
		})
	case containsAny(segment, "count", "how many"):
		st.add(models.TaskSpec{
			Type:        models.TaskAnalysis,
			Description: "Count document entities",
			Parameters:  map[string]any{"operation": "count_entities"},
		})
	default:
		return fmt.Errorf("segment %q: %w", segment, ErrUnrecognized)
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (st *parseState) parseBox(segment string) {
	length, width, height := 10.0, 10.0, 10.0
	if m := tripleDims.FindStringSubmatch(segment); m != nil {
		length, width, height = parseFloat(m[1]), parseFloat(m[2]), parseFloat(m[3])
	} else if m := singleDim.FindStringSubmatch(segment); m != nil {
		side := parseFloat(m[1])
		length, width, height = side, side, side
	} else {
		if m := lengthDim.FindStringSubmatch(segment); m != nil {
			length = parseFloat(m[1])
		}
		if m := widthDim.FindStringSubmatch(segment); m != nil {
			width = parseFloat(m[1])
		}
		if m := heightDim.FindStringSubmatch(segment); m != nil {
			height = parseFloat(m[1])
		}
	}
	name := extractName(segment, "Box")
	st.addCreation(models.TaskSpec{
		Type:        models.TaskGeometryCreation,
		Description: fmt.Sprintf("Create box %gx%gx%g mm", length, width, height),
		Parameters: map[string]any{
			"operation": "create_box",
			"length":    length,
			"width":     width,
			"height":    height,
			"name":      name,
		},
	}, name)
}

func (st *parseState) parseCylinder(segment string) {
	radius, height := 5.0, 10.0
	if m := radiusDim.FindStringSubmatch(segment); m != nil {
		radius = parseFloat(m[1])
	}
	if m := heightDim.FindStringSubmatch(segment); m != nil {
		height = parseFloat(m[1])
	}
	name := extractName(segment, "Cylinder")
	st.addCreation(models.TaskSpec{
		Type:        models.TaskGeometryCreation,
		Description: fmt.Sprintf("Create cylinder radius %g height %g", radius, height),
		Parameters: map[string]any{
			"operation": "create_cylinder",
			"radius":    radius,
			"height":    height,
			"name":      name,
		},
	}, name)
}

func (st *parseState) parseSphere(segment string) {
	radius := 5.0
	if m := radiusDim.FindStringSubmatch(segment); m != nil {
		radius = parseFloat(m[1])
	} else if m := singleDim.FindStringSubmatch(segment); m != nil {
		radius = parseFloat(m[1])
	}
	name := extractName(segment, "Sphere")
	st.addCreation(models.TaskSpec{
		Type:        models.TaskGeometryCreation,
		Description: fmt.Sprintf("Create sphere radius %g", radius),
		Parameters: map[string]any{
			"operation": "create_sphere",
			"radius":    radius,
			"name":      name,
		},
	}, name)
}

func (st *parseState) parseCone(segment string) {
	radius, height := 5.0, 10.0
	if m := radiusDim.FindStringSubmatch(segment); m != nil {
		radius = parseFloat(m[1])
	}
	if m := heightDim.FindStringSubmatch(segment); m != nil {
		height = parseFloat(m[1])
	}
	name := extractName(segment, "Cone")
	st.addCreation(models.TaskSpec{
		Type:        models.TaskGeometryCreation,
		Description: fmt.Sprintf("Create cone radius %g height %g", radius, height),
		Parameters: map[string]any{
			"operation": "create_cone",
			"radius1":   radius,
			"height":    height,
			"name":      name,
		},
	}, name)
}

func (st *parseState) parseTorus(segment string) {
	major, minor := 10.0, 2.0
	if m := tubeDim.FindStringSubmatch(segment); m != nil {
		minor = parseFloat(m[1])
	}
	if m := radiusDim.FindStringSubmatch(segment); m != nil {
		major = parseFloat(m[1])
	}
	name := extractName(segment, "Torus")
	st.addCreation(models.TaskSpec{
		Type:        models.TaskGeometryCreation,
		Description: fmt.Sprintf("Create torus radius %g tube %g", major, minor),
		Parameters: map[string]any{
			"operation": "create_torus",
			"radius1":   major,
			"radius2":   minor,
			"name":      name,
		},
	}, name)
}

func (st *parseState) parseDressUp(segment, operation, sizeKey string, fallback float64, kind string) {
	size := fallback
	if m := singleDim.FindStringSubmatch(segment); m != nil {
		size = parseFloat(m[1])
	} else if m := radiusDim.FindStringSubmatch(segment); m != nil {
		size = parseFloat(m[1])
	}
	target, deps := st.target()
	st.add(models.TaskSpec{
		Type:         models.TaskGeometryModification,
		Description:  fmt.Sprintf("Add %gmm %s to %s", size, kind, target),
		Priority:     2,
		Dependencies: deps,
		Parameters: map[string]any{
			"operation": operation,
			"target":    target,
			sizeKey:     size,
		},
	})
}

// parseBoolean targets the objects created earlier in this request when
// there are enough of them, falling back to the live document entities.
func (st *parseState) parseBoolean(segment, operation, label string) {
	var objects []string
	var deps []string
	for _, spec := range st.specs {
		if spec.Type != models.TaskGeometryCreation {
			continue
		}
		if name := cast.ToString(spec.Parameters["name"]); name != "" {
			objects = append(objects, name)
			deps = append(deps, spec.ID)
		}
	}
	if len(objects) < 2 {
		objects = st.docEntities
		deps = nil
	}
	if len(objects) < 2 {
		objects = []string{"Object1", "Object2"}
	}
	st.add(models.TaskSpec{
		Type:         models.TaskGeometryModification,
		Description:  fmt.Sprintf("Combine %s", strings.Join(objects, ", ")),
		Priority:     2,
		Dependencies: deps,
		Parameters: map[string]any{
			"operation": operation,
			"objects":   objects,
			"name":      label,
		},
	})
}

func (st *parseState) parseSketch(segment string) {
	name := extractName(segment, "Sketch")
	sketchTask := st.nextID()
	st.addCreation(models.TaskSpec{
		Type:        models.TaskSketchCreation,
		Description: "Create new sketch",
		Parameters: map[string]any{
			"operation": "create_sketch",
			"plane":     "XY",
			"name":      name,
		},
	}, name)

	switch {
	case strings.Contains(segment, "rectangle"):
		width, height := 10.0, 10.0
		if m := pairDims.FindStringSubmatch(segment); m != nil {
			width, height = parseFloat(m[1]), parseFloat(m[2])
		}
		st.add(models.TaskSpec{
			Type:         models.TaskSketchModification,
			Description:  fmt.Sprintf("Add %gx%g rectangle to %s", width, height, name),
			Priority:     2,
			Dependencies: []string{sketchTask},
			Parameters: map[string]any{
				"operation": "add_rectangle",
				"sketch":    name,
				"width":     width,
				"height":    height,
			},
		})
	case strings.Contains(segment, "circle"):
		radius := 5.0
		if m := radiusDim.FindStringSubmatch(segment); m != nil {
			radius = parseFloat(m[1])
		}
		st.add(models.TaskSpec{
			Type:         models.TaskSketchModification,
			Description:  fmt.Sprintf("Add radius %g circle to %s", radius, name),
			Priority:     2,
			Dependencies: []string{sketchTask},
			Parameters: map[string]any{
				"operation": "add_circle",
				"sketch":    name,
				"radius":    radius,
			},
		})
	}
}

func (st *parseState) parseAnalysis(segment string) {
	target, deps := st.target()
	var operation, description string
	switch {
	case containsAny(segment, "surface area", "area"):
		operation = "surface_area_analysis"
		description = fmt.Sprintf("Measure surface area of %s", target)
	case containsAny(segment, "mass", "weigh"):
		operation = "mass_properties"
		description = fmt.Sprintf("Compute mass properties of %s", target)
	case strings.Contains(segment, "volume"):
		operation = "volume_analysis"
		description = fmt.Sprintf("Measure volume of %s", target)
	default:
		operation = "bounding_box_analysis"
		description = fmt.Sprintf("Measure bounding box of %s", target)
	}
	st.add(models.TaskSpec{
		Type:         models.TaskAnalysis,
		Description:  description,
		Priority:     2,
		Dependencies: deps,
		Parameters: map[string]any{
			"operation": operation,
			"target":    target,
		},
	})
}

func extractName(segment, fallback string) string {
	for _, pattern := range namePatterns {
		if m := pattern.FindStringSubmatch(segment); m != nil {
			return titleCase(m[1])
		}
	}
	return fallback
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
