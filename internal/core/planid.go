package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IDGenerator defines the interface for producing unique plan and
// snapshot identifiers.
type IDGenerator interface {
	NewPlanID() string
	NewSnapshotID(operationID string) string
}

// uuidIDGenerator implements IDGenerator with short random suffixes so
// ids stay readable in logs and CLI output.
type uuidIDGenerator struct{}

// NewIDGenerator creates the default IDGenerator.
func NewIDGenerator() IDGenerator {
	return uuidIDGenerator{}
}

// NewPlanID returns a plan id of the form plan-3f2a91c4.
func (uuidIDGenerator) NewPlanID() string {
	return "plan-" + shortUUID()
}

// NewSnapshotID returns a snapshot id tagged with the operation it
// protects, e.g. snapshot-task-2-9b41d07e.
func (uuidIDGenerator) NewSnapshotID(operationID string) string {
	return fmt.Sprintf("snapshot-%s-%s", operationID, shortUUID())
}

func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
