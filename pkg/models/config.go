package models

import "time"

// SafetyConfig holds the safety controller settings read from the config
// file via Viper.
type SafetyConfig struct {
	Level                  SafetyLevel `yaml:"level" mapstructure:"level"`
	MaxOperationsPerMinute int         `yaml:"max_operations_per_minute" mapstructure:"max_operations_per_minute"`
	MaxEntities            int         `yaml:"max_entities" mapstructure:"max_entities"`
	MaxExecutionSeconds    int         `yaml:"max_execution_seconds" mapstructure:"max_execution_seconds"`
	MaxMemoryMB            int         `yaml:"max_memory_mb" mapstructure:"max_memory_mb"`
	RollbackOnFailure      bool        `yaml:"rollback_on_failure" mapstructure:"rollback_on_failure"`
	MaxSnapshots           int         `yaml:"max_snapshots" mapstructure:"max_snapshots"`
}

// Limits converts the configured ceilings into ResourceLimits.
func (c SafetyConfig) Limits() ResourceLimits {
	return ResourceLimits{
		MaxExecutionTime:       time.Duration(c.MaxExecutionSeconds) * time.Second,
		MaxMemoryMB:            c.MaxMemoryMB,
		MaxEntities:            c.MaxEntities,
		MaxOperationsPerMinute: c.MaxOperationsPerMinute,
	}
}

// PlannerConfig holds the scheduling policy settings. FailFast aborts a
// plan on the first failure; MaxParallel above 1 allows independent ready
// tasks to run concurrently; WorkerTimeout of zero disables the deadline.
type PlannerConfig struct {
	FailFast      bool          `yaml:"fail_fast" mapstructure:"fail_fast"`
	MaxParallel   int           `yaml:"max_parallel" mapstructure:"max_parallel"`
	WorkerTimeout time.Duration `yaml:"worker_timeout" mapstructure:"worker_timeout"`
}

// AlertsConfig tunes the alert engine and webhook delivery. Zero-valued
// thresholds keep the engine defaults; an empty webhook URL disables
// delivery.
type AlertsConfig struct {
	ViolationsPerHour  int    `yaml:"violations_per_hour" mapstructure:"violations_per_hour"`
	FailureRatePercent int    `yaml:"failure_rate_percent" mapstructure:"failure_rate_percent"`
	StalledPlanMinutes int    `yaml:"stalled_plan_minutes" mapstructure:"stalled_plan_minutes"`
	WebhookURL         string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// EngineConfig combines every tunable of the engine. Zero-valued fields
// are filled with defaults by the configuration manager.
type EngineConfig struct {
	Safety       SafetyConfig  `yaml:"safety" mapstructure:"safety"`
	Planner      PlannerConfig `yaml:"planner" mapstructure:"planner"`
	Alerts       AlertsConfig  `yaml:"alerts" mapstructure:"alerts"`
	HistoryPath  string        `yaml:"history_path" mapstructure:"history_path"`
	EventsPath   string        `yaml:"events_path" mapstructure:"events_path"`
	DocumentName string        `yaml:"document_name" mapstructure:"document_name"`
}
