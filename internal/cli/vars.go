package cli

import (
	"github.com/valter-silva-au/ai-cad-agent/internal/core"
	"github.com/valter-silva-au/ai-cad-agent/internal/observability"
)

// DocumentProvider supplies the current document context for request
// parsing and dashboard display.
type DocumentProvider interface {
	ContextSnapshot() map[string]any
}

// Engine service instances, set during app initialization in app.go.
var (
	Coordinator core.Coordinator
	Safety      core.SafetyController
	Doc         DocumentProvider
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
