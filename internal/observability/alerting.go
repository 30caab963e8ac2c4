package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	ViolationsPerHour  int `yaml:"violations_per_hour" json:"violations_per_hour"`
	FailureRatePercent int `yaml:"failure_rate_percent" json:"failure_rate_percent"`
	StalledPlanMinutes int `yaml:"stalled_plan_minutes" json:"stalled_plan_minutes"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		ViolationsPerHour:  5,
		FailureRatePercent: 50,
		StalledPlanMinutes: 30,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking
// thresholds. The clock is injectable for tests.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine over the given EventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate reads events and checks all alert conditions, returning any
// triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	var alerts []Alert

	violationAlerts, err := ae.checkViolationSpike(now)
	if err != nil {
		return nil, fmt.Errorf("checking safety violations: %w", err)
	}
	alerts = append(alerts, violationAlerts...)

	failureAlerts, err := ae.checkFailureRate(now)
	if err != nil {
		return nil, fmt.Errorf("checking task failure rate: %w", err)
	}
	alerts = append(alerts, failureAlerts...)

	rollbackAlerts, err := ae.checkRollbackFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking rollback failures: %w", err)
	}
	alerts = append(alerts, rollbackAlerts...)

	stalledAlerts, err := ae.checkStalledPlans(now)
	if err != nil {
		return nil, fmt.Errorf("checking stalled plans: %w", err)
	}
	alerts = append(alerts, stalledAlerts...)

	return alerts, nil
}

// checkViolationSpike fires when safety violations in the last hour
// exceed the threshold.
func (ae *alertEngine) checkViolationSpike(now time.Time) ([]Alert, error) {
	since := now.Add(-time.Hour)
	events, err := ae.eventLog.Read(EventFilter{Type: "safety_violation", Since: &since})
	if err != nil {
		return nil, err
	}

	if len(events) <= ae.thresholds.ViolationsPerHour {
		return nil, nil
	}
	return []Alert{{
		ID:          "safety-violations",
		Condition:   "safety_violations_spike",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d safety violations in the last hour, more than %d allowed", len(events), ae.thresholds.ViolationsPerHour),
		TriggeredAt: now,
	}}, nil
}

// checkFailureRate fires when the share of failed task executions in
// the last hour crosses the threshold.
func (ae *alertEngine) checkFailureRate(now time.Time) ([]Alert, error) {
	since := now.Add(-time.Hour)
	events, err := ae.eventLog.Read(EventFilter{Type: "task_executed", Since: &since})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	failed := 0
	for _, event := range events {
		if status, ok := event.Data["status"].(string); ok && status == "failed" {
			failed++
		}
	}

	rate := failed * 100 / len(events)
	if rate < ae.thresholds.FailureRatePercent {
		return nil, nil
	}
	return []Alert{{
		ID:          "task-failure-rate",
		Condition:   "task_failure_rate_high",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d%% of task executions failed in the last hour (%d of %d)", rate, failed, len(events)),
		TriggeredAt: now,
	}}, nil
}

// checkRollbackFailures fires on any rollback failure in the last hour,
// since those leave the document in an unknown state.
func (ae *alertEngine) checkRollbackFailures(now time.Time) ([]Alert, error) {
	since := now.Add(-time.Hour)
	var alerts []Alert
	for _, eventType := range []string{"rollback_failed", "rollback_recompute_failed"} {
		events, err := ae.eventLog.Read(EventFilter{Type: eventType, Since: &since})
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			snapshotID, _ := event.Data["snapshot_id"].(string)
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("rollback-%s", snapshotID),
				Condition:   eventType,
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("rollback problem for snapshot %s; the document may need manual review", snapshotID),
				TriggeredAt: now,
			})
		}
	}
	return alerts, nil
}

// checkStalledPlans fires for plans that started longer ago than the
// threshold and never reached a terminal event.
func (ae *alertEngine) checkStalledPlans(now time.Time) ([]Alert, error) {
	started, err := ae.eventLog.Read(EventFilter{Type: "plan_started"})
	if err != nil {
		return nil, err
	}
	if len(started) == 0 {
		return nil, nil
	}

	finished := make(map[string]bool)
	for _, eventType := range []string{"plan_finished", "plan_cancelled"} {
		events, err := ae.eventLog.Read(EventFilter{Type: eventType})
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			if planID, ok := event.Data["plan_id"].(string); ok {
				finished[planID] = true
			}
		}
	}

	threshold := time.Duration(ae.thresholds.StalledPlanMinutes) * time.Minute
	var alerts []Alert
	for _, event := range started {
		planID, _ := event.Data["plan_id"].(string)
		if planID == "" || finished[planID] {
			continue
		}
		if now.Sub(event.Time) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("stalled-%s", planID),
				Condition:   "plan_stalled",
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("plan %s started more than %d minutes ago and has not finished", planID, ae.thresholds.StalledPlanMinutes),
				TriggeredAt: now,
			})
		}
	}

	return alerts, nil
}
