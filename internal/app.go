// Package internal provides the App struct that wires all components of
// the AI CAD Agent engine together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/ai-cad-agent/internal/cli"
	"github.com/valter-silva-au/ai-cad-agent/internal/core"
	"github.com/valter-silva-au/ai-cad-agent/internal/document"
	"github.com/valter-silva-au/ai-cad-agent/internal/observability"
	"github.com/valter-silva-au/ai-cad-agent/internal/storage"
	"github.com/valter-silva-au/ai-cad-agent/internal/workers"
	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// App holds all service dependencies of the engine.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.EngineConfig

	// Document under control
	Doc *document.Document

	// Core services
	Safety      core.SafetyController
	Executor    core.Executor
	Planner     core.Planner
	Coordinator core.Coordinator

	// Storage
	Store *storage.ExecutionStore

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of the engine. basePath is the
// directory holding config.yaml and the data files (typically ~/.aca or
// the current directory).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Document ---
	app.Doc = document.New(cfg.DocumentName)

	// --- Observability ---
	var engineLog core.EventLogger
	app.EventLog, err = observability.NewJSONLEventLog(resolveDataPath(basePath, cfg.EventsPath))
	if err != nil {
		// Non-fatal: run without observability if the log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		engineLog = observability.NewEngineLogger(app.EventLog)

		thresholds := observability.DefaultAlertThresholds()
		if cfg.Alerts.ViolationsPerHour > 0 {
			thresholds.ViolationsPerHour = cfg.Alerts.ViolationsPerHour
		}
		if cfg.Alerts.FailureRatePercent > 0 {
			thresholds.FailureRatePercent = cfg.Alerts.FailureRatePercent
		}
		if cfg.Alerts.StalledPlanMinutes > 0 {
			thresholds.StalledPlanMinutes = cfg.Alerts.StalledPlanMinutes
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Alerts.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	}

	// --- Safety controller ---
	app.Safety = core.NewSafetyController(cfg.Safety, app.Doc, cli.NewTerminalConfirmation(), engineLog)

	// --- Execution pipeline ---
	app.Executor = core.NewExecutor(app.Safety, app.Doc, engineLog, cfg.Planner.WorkerTimeout, cfg.Safety.RollbackOnFailure)
	app.Planner = core.NewPlanner(cfg.Planner, app.Executor, app.Safety, engineLog)

	// --- Storage ---
	app.Store, err = storage.NewExecutionStore(resolveDataPath(basePath, cfg.HistoryPath))
	if err != nil {
		return nil, fmt.Errorf("opening execution store: %w", err)
	}

	app.Coordinator = core.NewCoordinator(app.Planner, app.Doc, app.Store, app.Store, engineLog)

	// --- Workers ---
	if err := registerWorkers(app.Coordinator, app.Doc); err != nil {
		return nil, err
	}

	// --- Wire CLI package-level variables ---
	cli.Coordinator = app.Coordinator
	cli.Safety = app.Safety
	cli.Doc = app.Doc

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// registerWorkers builds the stock worker set and registers each with the
// coordinator.
func registerWorkers(coordinator core.Coordinator, doc workers.Document) error {
	geometry, err := workers.NewGeometryWorker(doc)
	if err != nil {
		return fmt.Errorf("creating geometry worker: %w", err)
	}
	sketch, err := workers.NewSketchWorker(doc)
	if err != nil {
		return fmt.Errorf("creating sketch worker: %w", err)
	}
	analysis, err := workers.NewAnalysisWorker(doc)
	if err != nil {
		return fmt.Errorf("creating analysis worker: %w", err)
	}

	for _, w := range []core.Worker{geometry, sketch, analysis} {
		if err := coordinator.RegisterWorker(w); err != nil {
			return fmt.Errorf("registering worker: %w", err)
		}
	}
	return nil
}

// resolveDataPath anchors a relative data file path at the base path.
func resolveDataPath(basePath, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(basePath, path)
}

// Close shuts the coordinator down and releases the store and event log.
// It is safe to call on a partially constructed App.
func (a *App) Close() error {
	var firstErr error
	if a.Coordinator != nil {
		if err := a.Coordinator.Shutdown(); err != nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the data directory: ACA_HOME if set,
// otherwise the nearest ancestor directory containing config.yaml,
// otherwise the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("ACA_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
