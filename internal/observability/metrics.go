package observability

import (
	"fmt"
	"time"
)

// Metrics holds aggregates derived from the event log.
type Metrics struct {
	PlansStarted     int            `json:"plans_started"`
	PlansByOutcome   map[string]int `json:"plans_by_outcome"`
	TasksExecuted    int            `json:"tasks_executed"`
	TasksFailed      int            `json:"tasks_failed"`
	TasksByType      map[string]int `json:"tasks_by_type"`
	SafetyViolations int            `json:"safety_violations"`
	Rollbacks        int            `json:"rollbacks"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator over the given log.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		PlansByOutcome: make(map[string]int),
		TasksByType:    make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "plan_started":
			m.PlansStarted++
		case "plan_finished":
			if status, ok := event.Data["status"].(string); ok {
				m.PlansByOutcome[status]++
			}
		case "plan_cancelled":
			m.PlansByOutcome["cancelled"]++
		case "task_executed":
			m.TasksExecuted++
			if status, ok := event.Data["status"].(string); ok && status == "failed" {
				m.TasksFailed++
			}
			if taskType, ok := event.Data["task_type"].(string); ok {
				m.TasksByType[taskType]++
			}
		case "safety_violation":
			m.SafetyViolations++
		case "rollback_executed":
			m.Rollbacks++
		}
	}

	return m, nil
}
