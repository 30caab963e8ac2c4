// Package observability provides event logging and metrics for the CAD
// agent. Engine events are persisted as structured JSON Lines (JSONL)
// and metrics are derived on-demand from the event log.
package observability
