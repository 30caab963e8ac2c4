package core

// EventLogger is the subset of the observability event log the engine
// needs for plan, task and safety events. Defining it here avoids
// importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// nopEventLogger discards events. Used when no event log is wired.
type nopEventLogger struct{}

func (nopEventLogger) LogEvent(string, map[string]any) error { return nil }
