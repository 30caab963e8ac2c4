package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Property 13: Metrics Tasks Executed Matches Events
// =============================================================================

// Feature: observability, Property 13: Metrics Tasks Executed Matches Events
// *For any* N random task_executed events written to an event log, the
// MetricsCalculator SHALL report TasksExecuted == N and TasksFailed equal to
// the number of events with a failed status.
//
// **Validates: MetricsCalculator accuracy for task execution counting**
func TestProperty13_MetricsTasksExecutedMatchesEvents(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "events.jsonl")
		el, err := NewJSONLEventLog(logPath)
		if err != nil {
			t.Fatalf("creating event log: %v", err)
		}
		defer el.Close()

		numEvents := rapid.IntRange(1, 20).Draw(rt, "numEvents")
		baseTime := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
		taskTypes := []string{"geometry_creation", "geometry_modification", "sketch_creation", "analysis"}

		wantFailed := 0
		for i := 0; i < numEvents; i++ {
			taskID := fmt.Sprintf("task-%d", i+1)
			taskType := rapid.SampledFrom(taskTypes).Draw(rt, fmt.Sprintf("taskType_%d", i))
			status := rapid.SampledFrom([]string{"completed", "failed"}).Draw(rt, fmt.Sprintf("status_%d", i))
			if status == "failed" {
				wantFailed++
			}
			hoursOffset := rapid.IntRange(0, 168).Draw(rt, fmt.Sprintf("hoursOffset_%d", i))

			event := Event{
				Time:    baseTime.Add(time.Duration(hoursOffset) * time.Hour),
				Level:   "INFO",
				Type:    "task_executed",
				Message: "task executed",
				Data:    map[string]any{"task_id": taskID, "task_type": taskType, "status": status},
			}
			if err := el.Write(event); err != nil {
				t.Fatalf("writing event: %v", err)
			}
		}

		calc := NewMetricsCalculator(el)
		since := baseTime.Add(-time.Hour)
		metrics, err := calc.Calculate(since)
		if err != nil {
			t.Fatalf("calculating metrics: %v", err)
		}

		if metrics.TasksExecuted != numEvents {
			rt.Errorf("TasksExecuted = %d, want %d", metrics.TasksExecuted, numEvents)
		}
		if metrics.TasksFailed != wantFailed {
			rt.Errorf("TasksFailed = %d, want %d", metrics.TasksFailed, wantFailed)
		}
	})
}

// =============================================================================
// Property 14: Metrics Event Count Is Total
// =============================================================================

// Feature: observability, Property 14: Metrics Event Count Is Total
// *For any* mix of random event types written to an event log, the
// MetricsCalculator SHALL report EventCount equal to the total number of
// events.
//
// **Validates: MetricsCalculator total event counting accuracy**
func TestProperty14_MetricsEventCountIsTotal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "events.jsonl")
		el, err := NewJSONLEventLog(logPath)
		if err != nil {
			t.Fatalf("creating event log: %v", err)
		}
		defer el.Close()

		numEvents := rapid.IntRange(1, 20).Draw(rt, "numEvents")
		baseTime := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
		eventTypes := []string{
			"plan_started",
			"plan_finished",
			"task_executed",
			"safety_violation",
			"rollback_executed",
		}

		for i := 0; i < numEvents; i++ {
			eventType := rapid.SampledFrom(eventTypes).Draw(rt, fmt.Sprintf("eventType_%d", i))
			hoursOffset := rapid.IntRange(0, 168).Draw(rt, fmt.Sprintf("hoursOffset_%d", i))

			data := map[string]any{"plan_id": fmt.Sprintf("plan-%05d", i)}
			switch eventType {
			case "plan_finished":
				statuses := []string{"completed", "failed", "cancelled"}
				data["status"] = rapid.SampledFrom(statuses).Draw(rt, fmt.Sprintf("outcome_%d", i))
			case "task_executed":
				data["task_type"] = rapid.SampledFrom([]string{"analysis", "validation"}).Draw(rt, fmt.Sprintf("taskType_%d", i))
				data["status"] = "completed"
			}

			event := Event{
				Time:    baseTime.Add(time.Duration(hoursOffset) * time.Hour),
				Level:   "INFO",
				Type:    eventType,
				Message: eventType,
				Data:    data,
			}
			if err := el.Write(event); err != nil {
				t.Fatalf("writing event: %v", err)
			}
		}

		calc := NewMetricsCalculator(el)
		since := baseTime.Add(-time.Hour)
		metrics, err := calc.Calculate(since)
		if err != nil {
			t.Fatalf("calculating metrics: %v", err)
		}

		if metrics.EventCount != numEvents {
			rt.Errorf("EventCount = %d, want %d", metrics.EventCount, numEvents)
		}
	})
}
