// Package mcp provides an MCP (Model Context Protocol) server that exposes
// aca functionality as MCP tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/valter-silva-au/ai-cad-agent/internal/core"
	"github.com/valter-silva-au/ai-cad-agent/internal/observability"
	"github.com/valter-silva-au/ai-cad-agent/internal/request"
	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ContextProvider supplies the current document context handed to the
// request parser and safety constraints.
type ContextProvider interface {
	ContextSnapshot() map[string]any
}

// Server wraps aca services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	coordinator core.Coordinator
	safety      core.SafetyController
	document    ContextProvider
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server with the given aca service dependencies.
// metricsCalc and alertEngine may be nil if observability is disabled.
func NewServer(coordinator core.Coordinator, safety core.SafetyController, document ContextProvider, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		coordinator: coordinator,
		safety:      safety,
		document:    document,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "aca", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// docContext returns the current document context, or an empty map when no
// provider is wired.
func (s *Server) docContext() map[string]any {
	if s.document == nil {
		return map[string]any{}
	}
	return s.document.ContextSnapshot()
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type executeRequestInput struct {
	Request string `json:"request" jsonschema:"required,natural-language modeling request (e.g. 'create a 20x10x5 box then fillet the edges')"`
}

type taskResultOutput struct {
	TaskID            string         `json:"task_id"`
	Status            string         `json:"status"`
	Error             string         `json:"error,omitempty"`
	Data              map[string]any `json:"data,omitempty"`
	CreatedEntityIDs  []string       `json:"created_entity_ids,omitempty"`
	ModifiedEntityIDs []string       `json:"modified_entity_ids,omitempty"`
	DurationMs        int64          `json:"duration_ms"`
}

type summaryOutput struct {
	PlanID            string             `json:"plan_id"`
	Description       string             `json:"description"`
	Status            string             `json:"status"`
	Results           []taskResultOutput `json:"results,omitempty"`
	Unattempted       []string           `json:"unattempted,omitempty"`
	CreatedEntityIDs  []string           `json:"created_entity_ids,omitempty"`
	ModifiedEntityIDs []string           `json:"modified_entity_ids,omitempty"`
	Error             string             `json:"error,omitempty"`
	DurationMs        int64              `json:"duration_ms"`
}

type validateRequestInput struct {
	Request string `json:"request" jsonschema:"required,natural-language modeling request to check without executing"`
}

type plannedTaskOutput struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
	Critical     bool     `json:"critical,omitempty"`
}

type validateRequestOutput struct {
	Feasible   bool                `json:"feasible"`
	Complexity string              `json:"complexity"`
	TaskCount  int                 `json:"task_count"`
	Issues     []string            `json:"issues,omitempty"`
	Tasks      []plannedTaskOutput `json:"tasks"`
}

type planStatusInput struct {
	PlanID string `json:"plan_id" jsonschema:"required,the plan identifier returned by execute_request"`
}

type planTaskOutput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type planStatusOutput struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	TaskCount   int              `json:"task_count"`
	Tasks       []planTaskOutput `json:"tasks"`
	CreatedAt   string           `json:"created_at"`
	StartedAt   string           `json:"started_at,omitempty"`
	CompletedAt string           `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
}

type listPlansInput struct {
	IncludeCompleted bool `json:"include_completed,omitempty" jsonschema:"also list plans that already reached a terminal state"`
}

type planSummaryOutput struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	TaskCount   int    `json:"task_count"`
	CreatedAt   string `json:"created_at"`
}

type listPlansOutput struct {
	Plans []planSummaryOutput `json:"plans"`
	Count int                 `json:"count"`
}

type cancelPlanInput struct {
	PlanID string `json:"plan_id" jsonschema:"required,the plan identifier to cancel"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type executionHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of history records to return (newest first). Defaults to 20."`
}

type historyRecordOutput struct {
	Timestamp     string `json:"timestamp"`
	Description   string `json:"description"`
	PlanID        string `json:"plan_id"`
	Status        string `json:"status"`
	TaskCount     int    `json:"task_count"`
	DurationMs    int64  `json:"duration_ms"`
	CreatedCount  int    `json:"created_count"`
	ModifiedCount int    `json:"modified_count"`
}

type executionHistoryOutput struct {
	Records []historyRecordOutput `json:"records"`
	Count   int                   `json:"count"`
}

type safetyStatusInput struct{}

type safetyStatusOutput struct {
	Level                  string `json:"level"`
	Paused                 bool   `json:"paused"`
	ManualControl          bool   `json:"manual_control"`
	OperationsCount        int    `json:"operations_count"`
	SnapshotCount          int    `json:"snapshot_count"`
	ConstraintsCount       int    `json:"constraints_count"`
	MaxOperationsPerMinute int    `json:"max_operations_per_minute"`
	MaxEntities            int    `json:"max_entities"`
}

type pauseOperationsInput struct{}

type resumeOperationsInput struct{}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	PlansStarted     int            `json:"plans_started"`
	PlansByOutcome   map[string]int `json:"plans_by_outcome"`
	TasksExecuted    int            `json:"tasks_executed"`
	TasksFailed      int            `json:"tasks_failed"`
	TasksByType      map[string]int `json:"tasks_by_type"`
	SafetyViolations int            `json:"safety_violations"`
	Rollbacks        int            `json:"rollbacks"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "execute_request",
		Description: "Parse a natural-language modeling request, build an execution plan, and run it through the safety gate. Returns the execution summary with per-task results.",
	}, s.handleExecuteRequest)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "validate_request",
		Description: "Parse a modeling request and check feasibility without executing anything. Returns the planned tasks and any issues found.",
	}, s.handleValidateRequest)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "plan_status",
		Description: "Get the current status of a plan by ID, including per-task statuses.",
	}, s.handlePlanStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_plans",
		Description: "List active plans, optionally including completed ones.",
	}, s.handleListPlans)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "cancel_plan",
		Description: "Request cancellation of a running plan. Tasks already dispatched finish; nothing new starts.",
	}, s.handleCancelPlan)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "execution_history",
		Description: "Return recent execution records, newest first.",
	}, s.handleExecutionHistory)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "safety_status",
		Description: "Report the safety controller state: level, pause and manual-control flags, operation counts, snapshots, constraints, and limits.",
	}, s.handleSafetyStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "pause_operations",
		Description: "Pause all operations. Running tasks finish; new dispatches are blocked until resumed.",
	}, s.handlePauseOperations)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resume_operations",
		Description: "Resume operations after a pause.",
	}, s.handleResumeOperations)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated metrics from the event log, including plan outcomes, task counts, safety violations, and rollbacks.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (violation spikes, failure rate, rollback failures, stalled plans).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleExecuteRequest(ctx context.Context, _ *gomcp.CallToolRequest, input executeRequestInput) (*gomcp.CallToolResult, summaryOutput, error) {
	if input.Request == "" {
		return errorResult("request is required"), summaryOutput{}, nil
	}

	parsed, err := request.Parse(input.Request, s.docContext())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing request: %s", err)), summaryOutput{}, nil
	}

	summary, err := s.coordinator.ExecuteSpecs(ctx, input.Request, parsed.Specs)
	if err != nil {
		return errorResult(fmt.Sprintf("executing request: %s", err)), summaryOutput{}, nil
	}

	return nil, summaryToOutput(summary), nil
}

func (s *Server) handleValidateRequest(_ context.Context, _ *gomcp.CallToolRequest, input validateRequestInput) (*gomcp.CallToolResult, validateRequestOutput, error) {
	if input.Request == "" {
		return errorResult("request is required"), validateRequestOutput{}, nil
	}

	parsed, err := request.Parse(input.Request, s.docContext())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing request: %s", err)), validateRequestOutput{}, nil
	}

	report, err := s.coordinator.ValidateSpecs(parsed.Specs)
	if err != nil {
		return errorResult(fmt.Sprintf("validating request: %s", err)), validateRequestOutput{}, nil
	}

	out := validateRequestOutput{
		Feasible:   report.Feasible,
		Complexity: string(parsed.Complexity),
		TaskCount:  report.TaskCount,
		Issues:     report.Issues,
		Tasks:      make([]plannedTaskOutput, len(parsed.Specs)),
	}
	for i, spec := range parsed.Specs {
		out.Tasks[i] = plannedTaskOutput{
			ID:           spec.ID,
			Type:         string(spec.Type),
			Description:  spec.Description,
			Dependencies: spec.Dependencies,
			Critical:     spec.Critical,
		}
	}

	return nil, out, nil
}

func (s *Server) handlePlanStatus(_ context.Context, _ *gomcp.CallToolRequest, input planStatusInput) (*gomcp.CallToolResult, planStatusOutput, error) {
	if input.PlanID == "" {
		return errorResult("plan_id is required"), planStatusOutput{}, nil
	}

	plan, err := s.coordinator.PlanStatus(input.PlanID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting plan %s: %s", input.PlanID, err)), planStatusOutput{}, nil
	}

	return nil, planToStatusOutput(plan), nil
}

func (s *Server) handleListPlans(_ context.Context, _ *gomcp.CallToolRequest, input listPlansInput) (*gomcp.CallToolResult, listPlansOutput, error) {
	plans := s.coordinator.ActivePlans()
	if input.IncludeCompleted {
		plans = append(plans, s.coordinator.CompletedPlans()...)
	}

	out := listPlansOutput{
		Plans: make([]planSummaryOutput, len(plans)),
		Count: len(plans),
	}
	for i, p := range plans {
		out.Plans[i] = planSummaryOutput{
			ID:          p.ID,
			Description: p.Description,
			Status:      string(p.Status),
			TaskCount:   len(p.Tasks),
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

func (s *Server) handleCancelPlan(_ context.Context, _ *gomcp.CallToolRequest, input cancelPlanInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.PlanID == "" {
		return errorResult("plan_id is required"), messageOutput{}, nil
	}

	if err := s.coordinator.CancelPlan(input.PlanID); err != nil {
		return errorResult(fmt.Sprintf("cancelling plan %s: %s", input.PlanID, err)), messageOutput{}, nil
	}

	return nil, messageOutput{Message: fmt.Sprintf("cancellation requested for plan %s", input.PlanID)}, nil
}

func (s *Server) handleExecutionHistory(_ context.Context, _ *gomcp.CallToolRequest, input executionHistoryInput) (*gomcp.CallToolResult, executionHistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	records, err := s.coordinator.History(limit)
	if err != nil {
		return errorResult(fmt.Sprintf("reading history: %s", err)), executionHistoryOutput{}, nil
	}

	out := executionHistoryOutput{
		Records: make([]historyRecordOutput, len(records)),
		Count:   len(records),
	}
	for i, r := range records {
		out.Records[i] = historyRecordOutput{
			Timestamp:     r.Timestamp.Format(time.RFC3339),
			Description:   r.Description,
			PlanID:        r.PlanID,
			Status:        string(r.Status),
			TaskCount:     r.TaskCount,
			DurationMs:    r.Duration.Milliseconds(),
			CreatedCount:  r.CreatedCount,
			ModifiedCount: r.ModifiedCount,
		}
	}

	return nil, out, nil
}

func (s *Server) handleSafetyStatus(_ context.Context, _ *gomcp.CallToolRequest, _ safetyStatusInput) (*gomcp.CallToolResult, safetyStatusOutput, error) {
	status := s.safety.Status()

	out := safetyStatusOutput{
		Level:                  string(status.Level),
		Paused:                 status.Paused,
		ManualControl:          status.ManualControl,
		OperationsCount:        status.OperationsCount,
		SnapshotCount:          status.SnapshotCount,
		ConstraintsCount:       status.ConstraintsCount,
		MaxOperationsPerMinute: status.Limits.MaxOperationsPerMinute,
		MaxEntities:            status.Limits.MaxEntities,
	}

	return nil, out, nil
}

func (s *Server) handlePauseOperations(_ context.Context, _ *gomcp.CallToolRequest, _ pauseOperationsInput) (*gomcp.CallToolResult, messageOutput, error) {
	s.safety.Pause()
	return nil, messageOutput{Message: "operations paused"}, nil
}

func (s *Server) handleResumeOperations(_ context.Context, _ *gomcp.CallToolRequest, _ resumeOperationsInput) (*gomcp.CallToolResult, messageOutput, error) {
	s.safety.Resume()
	return nil, messageOutput{Message: "operations resumed"}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		PlansStarted:     metrics.PlansStarted,
		PlansByOutcome:   metrics.PlansByOutcome,
		TasksExecuted:    metrics.TasksExecuted,
		TasksFailed:      metrics.TasksFailed,
		TasksByType:      metrics.TasksByType,
		SafetyViolations: metrics.SafetyViolations,
		Rollbacks:        metrics.Rollbacks,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func summaryToOutput(summary *models.ExecutionSummary) summaryOutput {
	out := summaryOutput{
		PlanID:            summary.PlanID,
		Description:       summary.Description,
		Status:            summary.Status,
		Unattempted:       summary.Unattempted,
		CreatedEntityIDs:  summary.CreatedEntityIDs,
		ModifiedEntityIDs: summary.ModifiedEntityIDs,
		Error:             summary.Error,
		DurationMs:        summary.Duration.Milliseconds(),
	}
	for _, r := range summary.Results {
		out.Results = append(out.Results, taskResultOutput{
			TaskID:            r.TaskID,
			Status:            string(r.Status),
			Error:             r.Error,
			Data:              r.Data,
			CreatedEntityIDs:  r.CreatedEntityIDs,
			ModifiedEntityIDs: r.ModifiedEntityIDs,
			DurationMs:        r.Duration.Milliseconds(),
		})
	}
	return out
}

func planToStatusOutput(plan *models.ExecutionPlan) planStatusOutput {
	out := planStatusOutput{
		ID:          plan.ID,
		Description: plan.Description,
		Status:      string(plan.Status),
		TaskCount:   len(plan.Tasks),
		Tasks:       make([]planTaskOutput, len(plan.Tasks)),
		CreatedAt:   plan.CreatedAt.Format(time.RFC3339),
		Error:       plan.ErrorMessage,
	}
	for i, t := range plan.Tasks {
		out.Tasks[i] = planTaskOutput{
			ID:          t.ID,
			Type:        string(t.Type),
			Description: t.Description,
			Status:      string(t.Status),
		}
	}
	if !plan.StartedAt.IsZero() {
		out.StartedAt = plan.StartedAt.Format(time.RFC3339)
	}
	if !plan.CompletedAt.IsZero() {
		out.CompletedAt = plan.CompletedAt.Format(time.RFC3339)
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		PlansByOutcome: make(map[string]int),
		TasksByType:    make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
