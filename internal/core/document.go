package core

import "github.com/valter-silva-au/ai-cad-agent/pkg/models"

// Document is the query surface of the external model the engine depends
// on. Defining it here avoids importing the document package; the engine
// never creates entities itself, so the mutation side lives with the
// workers.
type Document interface {
	// Attached reports whether a live document is available as a target.
	Attached() bool
	// Name returns the document's display name.
	Name() string
	// EntityIDs returns the ids of all live entities in creation order.
	EntityIDs() []string
	// Entity returns the metadata of one entity, or false if it does not
	// exist.
	Entity(id string) (models.EntitySnapshot, bool)
	// RemoveEntity deletes one entity by id.
	RemoveEntity(id string) error
	// Recompute re-evaluates the document after mutations.
	Recompute() error
	// ContextSnapshot captures the read-only state handed to tasks at
	// plan-build time.
	ContextSnapshot() map[string]any
}

// ConfirmationChannel asks a human to approve or deny a risky operation.
// A nil channel means no human is reachable and the safety controller
// falls back to its auto-approve/deny policy.
type ConfirmationChannel interface {
	Confirm(details models.OperationDetails) (bool, error)
}
