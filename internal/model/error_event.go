package model

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Severity is the ErrorEvent severity scale used by C7's queries and C8's
// escalation thresholds.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorEvent is a structured record of a component failure, queryable by
// recency, severity, component, job, and resolution state (C7).
type ErrorEvent struct {
	ID         int64      `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	Severity   Severity   `json:"severity"`
	Component  string     `json:"component"`
	ErrorType  string     `json:"error_type"`
	Message    string     `json:"message"`
	Details    string     `json:"details"`
	JobID      *string    `json:"job_id,omitempty"`
	JobName    *string    `json:"job_name,omitempty"`
	StackTrace string     `json:"stack_trace,omitempty"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// FromError is the canonical construction path for an ErrorEvent: it
// captures the error's message, a type symbol, and a best-effort stack
// trace. Go has no exception objects to unwrap, so the "type" is derived
// from %T of the wrapped error rather than a class hierarchy.
func FromError(err error, severity Severity, component, message string, jobID, jobName *string) ErrorEvent {
	return ErrorEvent{
		Timestamp:  time.Now(),
		Severity:   severity,
		Component:  component,
		ErrorType:  fmt.Sprintf("%T", err),
		Message:    message,
		Details:    err.Error(),
		JobID:      jobID,
		JobName:    jobName,
		StackTrace: string(debug.Stack()),
		Resolved:   false,
	}
}

// Stats summarizes the Error Event Log for health checks and dashboards.
type Stats struct {
	Total      int            `json:"total"`
	Unresolved int            `json:"unresolved"`
	Resolved   int            `json:"resolved"`
	BySeverity map[string]int `json:"by_severity"`
	Recent24h  int            `json:"recent_24h"`
}
