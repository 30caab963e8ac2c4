// Package document provides the in-memory model the engine executes
// against. It stands in for an external CAD process: entities are kept in
// creation order, mutations are serialized through a mutex, and a
// recompute counter tracks re-evaluations.
package document

import (
	"fmt"
	"strings"
	"sync"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// Entity is one live object in the document.
type Entity struct {
	ID         string
	Type       string
	Label      string
	Placement  string
	Properties map[string]any
}

// Document is a mutex-guarded entity registry. All methods are safe for
// concurrent use; the engine's parallel dispatch mode relies on that.
type Document struct {
	mu         sync.Mutex
	name       string
	attached   bool
	entities   map[string]*Entity
	order      []string
	recomputes int
}

// New creates an attached, empty document.
func New(name string) *Document {
	return &Document{
		name:     name,
		attached: true,
		entities: make(map[string]*Entity),
	}
}

// Attached reports whether the document is open as a live target.
func (d *Document) Attached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached
}

// Close detaches the document; subsequent mutations fail.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = false
}

// Name returns the document's display name.
func (d *Document) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// AddEntity creates an entity of the given type and returns its id. The
// id derives from the label; collisions get a numeric suffix the way CAD
// kernels uniquify object names (Box, Box001, ...).
func (d *Document) AddEntity(entityType, label string, properties map[string]any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return "", fmt.Errorf("adding entity: document is closed")
	}

	id := d.uniqueIDLocked(label)
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	placement, _ := props["placement"].(string)

	d.entities[id] = &Entity{
		ID:         id,
		Type:       entityType,
		Label:      label,
		Placement:  placement,
		Properties: props,
	}
	d.order = append(d.order, id)
	return id, nil
}

// uniqueIDLocked derives a free id from a label. Callers must hold d.mu.
func (d *Document) uniqueIDLocked(label string) string {
	base := strings.ReplaceAll(label, " ", "")
	if base == "" {
		base = "Entity"
	}
	if _, taken := d.entities[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%03d", base, i)
		if _, taken := d.entities[candidate]; !taken {
			return candidate
		}
	}
}

// UpdateEntity merges properties into an existing entity.
func (d *Document) UpdateEntity(id string, properties map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return fmt.Errorf("updating entity %s: document is closed", id)
	}
	entity, ok := d.entities[id]
	if !ok {
		return fmt.Errorf("updating entity %s: not found", id)
	}
	if entity.Properties == nil {
		entity.Properties = make(map[string]any)
	}
	for k, v := range properties {
		entity.Properties[k] = v
	}
	if placement, ok := properties["placement"].(string); ok {
		entity.Placement = placement
	}
	return nil
}

// RemoveEntity deletes one entity by id.
func (d *Document) RemoveEntity(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return fmt.Errorf("removing entity %s: document is closed", id)
	}
	if _, ok := d.entities[id]; !ok {
		return fmt.Errorf("removing entity %s: not found", id)
	}
	delete(d.entities, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

// EntityIDs returns all live entity ids in creation order.
func (d *Document) EntityIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Entity returns the metadata snapshot of one entity.
func (d *Document) Entity(id string) (models.EntitySnapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entity, ok := d.entities[id]
	if !ok {
		return models.EntitySnapshot{}, false
	}
	return models.EntitySnapshot{
		Type:      entity.Type,
		Label:     entity.Label,
		Placement: entity.Placement,
	}, true
}

// EntityProperties returns a copy of an entity's property map.
func (d *Document) EntityProperties(id string) (map[string]any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entity, ok := d.entities[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(entity.Properties))
	for k, v := range entity.Properties {
		out[k] = v
	}
	return out, true
}

// EntityType returns the type string of one entity.
func (d *Document) EntityType(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entity, ok := d.entities[id]
	if !ok {
		return "", false
	}
	return entity.Type, true
}

// Recompute re-evaluates the document. The in-memory model only counts
// invocations; a real kernel would re-run its dependency solver here.
func (d *Document) Recompute() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return fmt.Errorf("recomputing: document is closed")
	}
	d.recomputes++
	return nil
}

// Recomputes returns how many times the document was recomputed.
func (d *Document) Recomputes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recomputes
}

// ContextSnapshot captures the read-only state handed to tasks at
// plan-build time and to safety constraints at validation time.
func (d *Document) ContextSnapshot() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, len(d.order))
	copy(ids, d.order)
	return map[string]any{
		"document_attached": d.attached,
		"document_name":     d.name,
		"entity_count":      len(d.order),
		"entity_ids":        ids,
	}
}
