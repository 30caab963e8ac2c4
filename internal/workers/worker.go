// Package workers contains the operation handlers that mutate or inspect
// the document on behalf of the engine. Each worker declares its
// capability types and keeps a per-operation registry; registration
// validates handlers up front so dispatch is a plain map lookup with a
// clear unknown-operation error.
package workers

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// Document is the surface workers need from the document package.
// Defining it here keeps workers testable against fakes.
type Document interface {
	Attached() bool
	AddEntity(entityType, label string, properties map[string]any) (string, error)
	UpdateEntity(id string, properties map[string]any) error
	RemoveEntity(id string) error
	EntityIDs() []string
	EntityProperties(id string) (map[string]any, bool)
	EntityType(id string) (string, bool)
}

// opResult is what a handler reports back: domain data plus the entity
// ids it created or touched.
type opResult struct {
	data     map[string]any
	created  []string
	modified []string
}

// handlerFunc performs one operation against the document.
type handlerFunc func(ctx context.Context, doc Document, params map[string]any) (opResult, error)

// operation couples a handler with its structural parameter rules.
type operation struct {
	run       handlerFunc
	required  []string
	exclusive [][]string
	validate  func(params map[string]any) error
}

// registry maps operation names to validated handlers.
type registry struct {
	owner string
	ops   map[string]operation
}

func newRegistry(owner string) *registry {
	return &registry{owner: owner, ops: make(map[string]operation)}
}

// register adds one operation. Nil handlers and duplicate names are
// programming errors caught here, at construction time.
func (r *registry) register(name string, op operation) error {
	if name == "" {
		return fmt.Errorf("%s worker: registering operation with empty name", r.owner)
	}
	if op.run == nil {
		return fmt.Errorf("%s worker: operation %s has no handler", r.owner, name)
	}
	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("%s worker: operation %s already registered", r.owner, name)
	}
	r.ops[name] = op
	return nil
}

// supports reports whether the registry knows the operation named in the
// parameters.
func (r *registry) supports(params map[string]any) bool {
	_, ok := r.ops[cast.ToString(params["operation"])]
	return ok
}

// validateParams applies the structural rules of the named operation:
// the operation key itself, required parameters, and mutually exclusive
// groups. It never consults live state.
func (r *registry) validateParams(params map[string]any) error {
	name := cast.ToString(params["operation"])
	if name == "" {
		return fmt.Errorf("missing operation parameter")
	}
	op, ok := r.ops[name]
	if !ok {
		return fmt.Errorf("unknown operation %q", name)
	}
	for _, key := range op.required {
		if _, present := params[key]; !present {
			return fmt.Errorf("operation %s: missing required parameter %q", name, key)
		}
	}
	for _, group := range op.exclusive {
		set := make([]string, 0, len(group))
		for _, key := range group {
			if _, present := params[key]; present {
				set = append(set, key)
			}
		}
		if len(set) > 1 {
			return fmt.Errorf("operation %s: parameters %v are mutually exclusive", name, set)
		}
	}
	if op.validate != nil {
		if err := op.validate(params); err != nil {
			return fmt.Errorf("operation %s: %w", name, err)
		}
	}
	return nil
}

// execute dispatches to the named handler and folds the outcome into a
// TaskResult. Handler errors are expected failure modes and become
// Failed results, never Go errors.
func (r *registry) execute(ctx context.Context, doc Document, task models.Task) (models.TaskResult, error) {
	name := cast.ToString(task.Parameters["operation"])
	op, ok := r.ops[name]
	if !ok {
		return models.TaskResult{
			Status: models.TaskFailed,
			Error:  fmt.Sprintf("unknown operation %q", name),
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return models.TaskResult{
			Status: models.TaskFailed,
			Error:  fmt.Sprintf("operation %s aborted: %v", name, err),
		}, nil
	}
	res, err := op.run(ctx, doc, task.Parameters)
	if err != nil {
		return models.TaskResult{
			Status: models.TaskFailed,
			Error:  fmt.Sprintf("operation %s failed: %v", name, err),
		}, nil
	}
	return models.TaskResult{
		Status:            models.TaskCompleted,
		Data:              res.data,
		CreatedEntityIDs:  res.created,
		ModifiedEntityIDs: res.modified,
	}, nil
}

// floatParam reads one numeric parameter.
func floatParam(params map[string]any, key string) (float64, error) {
	value, err := cast.ToFloat64E(params[key])
	if err != nil {
		return 0, fmt.Errorf("parameter %q is not numeric: %w", key, err)
	}
	return value, nil
}

// floatParamDefault reads an optional numeric parameter.
func floatParamDefault(params map[string]any, key string, fallback float64) (float64, error) {
	if _, present := params[key]; !present {
		return fallback, nil
	}
	return floatParam(params, key)
}

// stringParamDefault reads an optional string parameter.
func stringParamDefault(params map[string]any, key, fallback string) string {
	if value := cast.ToString(params[key]); value != "" {
		return value
	}
	return fallback
}

// stringSliceParam reads a list-of-ids parameter.
func stringSliceParam(params map[string]any, key string) ([]string, error) {
	values, err := cast.ToStringSliceE(params[key])
	if err != nil {
		return nil, fmt.Errorf("parameter %q is not a list of ids: %w", key, err)
	}
	return values, nil
}

// hasCapability reports whether a task type appears in a capability set.
func hasCapability(capabilities []models.TaskType, t models.TaskType) bool {
	for _, c := range capabilities {
		if c == t {
			return true
		}
	}
	return false
}
