// Package core contains the engine behind the CAD agent: plan scheduling,
// worker dispatch, the safety controller with its constraints, rate limits
// and rollback snapshots, and the coordinator facade tying them together.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// ConfigurationManager defines the interface for loading and validating
// the engine configuration from a config.yaml file.
type ConfigurationManager interface {
	LoadConfig() (*models.EngineConfig, error)
	ValidateConfig(cfg *models.EngineConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the directory searched first for config.yaml.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// config.yaml relative to basePath, falling back to defaults when the
// file is absent.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultEngineConfig returns an EngineConfig populated with the baseline
// settings: medium safety, the stock resource ceilings, rollback on
// failure, sequential dispatch, no worker deadline.
func DefaultEngineConfig() *models.EngineConfig {
	limits := models.DefaultResourceLimits()
	return &models.EngineConfig{
		Safety: models.SafetyConfig{
			Level:                  models.SafetyMedium,
			MaxOperationsPerMinute: limits.MaxOperationsPerMinute,
			MaxEntities:            limits.MaxEntities,
			MaxExecutionSeconds:    int(limits.MaxExecutionTime / time.Second),
			MaxMemoryMB:            limits.MaxMemoryMB,
			RollbackOnFailure:      true,
			MaxSnapshots:           0,
		},
		Planner: models.PlannerConfig{
			FailFast:      false,
			MaxParallel:   1,
			WorkerTimeout: 0,
		},
		HistoryPath:  "history.db",
		EventsPath:   "events.jsonl",
		DocumentName: "Untitled",
	}
}

// LoadConfig reads config.yaml from the base path using Viper. If the file
// does not exist, the defaults are returned.
func (cm *viperConfigManager) LoadConfig() (*models.EngineConfig, error) {
	cfg := DefaultEngineConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("safety.level", string(cfg.Safety.Level))
	v.SetDefault("safety.max_operations_per_minute", cfg.Safety.MaxOperationsPerMinute)
	v.SetDefault("safety.max_entities", cfg.Safety.MaxEntities)
	v.SetDefault("safety.max_execution_seconds", cfg.Safety.MaxExecutionSeconds)
	v.SetDefault("safety.max_memory_mb", cfg.Safety.MaxMemoryMB)
	v.SetDefault("safety.rollback_on_failure", cfg.Safety.RollbackOnFailure)
	v.SetDefault("safety.max_snapshots", cfg.Safety.MaxSnapshots)
	v.SetDefault("planner.fail_fast", cfg.Planner.FailFast)
	v.SetDefault("planner.max_parallel", cfg.Planner.MaxParallel)
	v.SetDefault("planner.worker_timeout", cfg.Planner.WorkerTimeout.String())
	v.SetDefault("history.path", cfg.HistoryPath)
	v.SetDefault("events.path", cfg.EventsPath)
	v.SetDefault("document.name", cfg.DocumentName)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found: run with defaults.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config.yaml: %w", err)
	}

	cfg.Safety.Level = models.SafetyLevel(v.GetString("safety.level"))
	cfg.Safety.MaxOperationsPerMinute = v.GetInt("safety.max_operations_per_minute")
	cfg.Safety.MaxEntities = v.GetInt("safety.max_entities")
	cfg.Safety.MaxExecutionSeconds = v.GetInt("safety.max_execution_seconds")
	cfg.Safety.MaxMemoryMB = v.GetInt("safety.max_memory_mb")
	cfg.Safety.RollbackOnFailure = v.GetBool("safety.rollback_on_failure")
	cfg.Safety.MaxSnapshots = v.GetInt("safety.max_snapshots")
	cfg.Planner.FailFast = v.GetBool("planner.fail_fast")
	cfg.Planner.WorkerTimeout = v.GetDuration("planner.worker_timeout")
	cfg.Alerts.ViolationsPerHour = v.GetInt("alerts.violations_per_hour")
	cfg.Alerts.FailureRatePercent = v.GetInt("alerts.failure_rate_percent")
	cfg.Alerts.StalledPlanMinutes = v.GetInt("alerts.stalled_plan_minutes")
	cfg.Alerts.WebhookURL = v.GetString("alerts.webhook_url")
	cfg.HistoryPath = v.GetString("history.path")
	cfg.EventsPath = v.GetString("events.path")
	cfg.DocumentName = v.GetString("document.name")

	// Use IsSet to distinguish "not set" (default 1) from "explicitly set to 0".
	if v.IsSet("planner.max_parallel") {
		cfg.Planner.MaxParallel = v.GetInt("planner.max_parallel")
	}

	return cfg, nil
}

// validSafetyLevels is the set of allowed SafetyLevel values.
var validSafetyLevels = map[models.SafetyLevel]bool{
	models.SafetyLow:      true,
	models.SafetyMedium:   true,
	models.SafetyHigh:     true,
	models.SafetyCritical: true,
}

// ValidateConfig checks the provided configuration for invalid values and
// returns a clear error message identifying the problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.EngineConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validSafetyLevels[cfg.Safety.Level] {
		errs = append(errs, fmt.Sprintf(
			"safety.level %q is invalid, must be one of: low, medium, high, critical",
			cfg.Safety.Level,
		))
	}

	if cfg.Safety.MaxOperationsPerMinute <= 0 {
		errs = append(errs, fmt.Sprintf(
			"safety.max_operations_per_minute must be positive, got %d",
			cfg.Safety.MaxOperationsPerMinute,
		))
	}

	if cfg.Safety.MaxEntities <= 0 {
		errs = append(errs, fmt.Sprintf(
			"safety.max_entities must be positive, got %d", cfg.Safety.MaxEntities,
		))
	}

	if cfg.Safety.MaxSnapshots < 0 {
		errs = append(errs, fmt.Sprintf(
			"safety.max_snapshots must be non-negative, got %d", cfg.Safety.MaxSnapshots,
		))
	}

	if cfg.Planner.MaxParallel < 1 {
		errs = append(errs, fmt.Sprintf(
			"planner.max_parallel must be at least 1, got %d", cfg.Planner.MaxParallel,
		))
	}

	if cfg.Planner.WorkerTimeout < 0 {
		errs = append(errs, fmt.Sprintf(
			"planner.worker_timeout must be non-negative, got %s", cfg.Planner.WorkerTimeout,
		))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
