package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestAlertEngine_ViolationSpikeAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	// Six violations in the last hour exceed the default threshold of 5.
	now := time.Now().UTC()
	for i := 0; i < 6; i++ {
		event := Event{
			Time:    now.Add(-time.Duration(i) * time.Minute),
			Level:   "WARN",
			Type:    "safety_violation",
			Message: "safety violation",
			Data:    map[string]any{"task_id": fmt.Sprintf("task-%d", i)},
		}
		if err := log.Write(event); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	found := false
	for _, a := range alerts {
		if a.Condition == "safety_violations_spike" {
			found = true
			if a.Severity != SeverityHigh {
				t.Errorf("expected high severity, got %s", a.Severity)
			}
		}
	}

	if !found {
		t.Error("expected violation spike alert but none found")
	}
}

func TestAlertEngine_NoViolationAlertAtThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	// Exactly five violations sit at the threshold and do not fire.
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		event := Event{
			Time:    now.Add(-time.Duration(i) * time.Minute),
			Level:   "WARN",
			Type:    "safety_violation",
			Message: "safety violation",
			Data:    map[string]any{"task_id": fmt.Sprintf("task-%d", i)},
		}
		if err := log.Write(event); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	for _, a := range alerts {
		if a.Condition == "safety_violations_spike" {
			t.Error("did not expect violation spike alert at threshold")
		}
	}
}

func TestAlertEngine_FailureRateAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	// Two of three recent executions failed: 66% is over the 50% default.
	now := time.Now().UTC()
	statuses := []string{"failed", "failed", "completed"}
	for i, status := range statuses {
		event := Event{
			Time:    now.Add(-time.Duration(i) * time.Minute),
			Level:   "INFO",
			Type:    "task_executed",
			Message: "task executed",
			Data:    map[string]any{"task_id": fmt.Sprintf("task-%d", i), "status": status},
		}
		if err := log.Write(event); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	found := false
	for _, a := range alerts {
		if a.Condition == "task_failure_rate_high" {
			found = true
			if a.Severity != SeverityMedium {
				t.Errorf("expected medium severity, got %s", a.Severity)
			}
		}
	}

	if !found {
		t.Error("expected failure rate alert but none found")
	}
}

func TestAlertEngine_FailureRateBelowThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	// One failure out of four executions stays under the 50% default.
	now := time.Now().UTC()
	statuses := []string{"failed", "completed", "completed", "completed"}
	for i, status := range statuses {
		event := Event{
			Time:    now.Add(-time.Duration(i) * time.Minute),
			Level:   "INFO",
			Type:    "task_executed",
			Message: "task executed",
			Data:    map[string]any{"task_id": fmt.Sprintf("task-%d", i), "status": status},
		}
		if err := log.Write(event); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	for _, a := range alerts {
		if a.Condition == "task_failure_rate_high" {
			t.Error("did not expect failure rate alert below threshold")
		}
	}
}

func TestAlertEngine_RollbackFailureAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	event := Event{
		Time:    time.Now().UTC().Add(-10 * time.Minute),
		Level:   "ERROR",
		Type:    "rollback_failed",
		Message: "rollback failed",
		Data:    map[string]any{"snapshot_id": "snap-1"},
	}
	if err := log.Write(event); err != nil {
		t.Fatalf("writing event: %v", err)
	}

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	found := false
	for _, a := range alerts {
		if a.Condition == "rollback_failed" && a.ID == "rollback-snap-1" {
			found = true
			if a.Severity != SeverityHigh {
				t.Errorf("expected high severity, got %s", a.Severity)
			}
		}
	}

	if !found {
		t.Error("expected rollback failure alert but none found")
	}
}

func TestAlertEngine_StalledPlanAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	// A plan started 45 minutes ago with no terminal event, over the
	// 30-minute default.
	event := Event{
		Time:    time.Now().UTC().Add(-45 * time.Minute),
		Level:   "INFO",
		Type:    "plan_started",
		Message: "plan started",
		Data:    map[string]any{"plan_id": "plan-1"},
	}
	if err := log.Write(event); err != nil {
		t.Fatalf("writing event: %v", err)
	}

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	found := false
	for _, a := range alerts {
		if a.Condition == "plan_stalled" && a.ID == "stalled-plan-1" {
			found = true
			if a.Severity != SeverityMedium {
				t.Errorf("expected medium severity, got %s", a.Severity)
			}
		}
	}

	if !found {
		t.Error("expected stalled plan alert but none found")
	}
}

func TestAlertEngine_FinishedPlanDoesNotAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	// The plan started 45 minutes ago but finished, so it is not stalled.
	events := []Event{
		{
			Time:    time.Now().UTC().Add(-45 * time.Minute),
			Level:   "INFO",
			Type:    "plan_started",
			Message: "plan started",
			Data:    map[string]any{"plan_id": "plan-1"},
		},
		{
			Time:    time.Now().UTC().Add(-40 * time.Minute),
			Level:   "INFO",
			Type:    "plan_finished",
			Message: "plan finished",
			Data:    map[string]any{"plan_id": "plan-1", "status": "completed"},
		},
	}

	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	for _, a := range alerts {
		if a.Condition == "plan_stalled" {
			t.Error("plan finished, should not trigger stalled alert")
		}
	}
}

func TestAlertEngine_NoAlertsOnCleanState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	engine := NewAlertEngine(log, DefaultAlertThresholds())
	alerts, err := engine.Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	if len(alerts) != 0 {
		t.Errorf("expected 0 alerts on clean state, got %d", len(alerts))
	}
}
