package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionStatus represents the state of a run.
// Executions are created running and transition exactly once to a
// terminal status.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// LogLevel represents the severity of an execution log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// LogEntry is one line in an execution's append-only log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// ToSSE formats the entry for Server-Sent Events delivery.
// Format: id: <seq>\nevent: log\ndata: <json>\n\n
func (l *LogEntry) ToSSE(seq string) []byte {
	data, _ := json.Marshal(l)
	return []byte(fmt.Sprintf("id: %s\nevent: log\ndata: %s\n\n", seq, data))
}

// ResultEntry is one durable artifact produced by a step. Not every step
// produces one.
type ResultEntry struct {
	NodeID    string      `json:"nodeId"`
	NodeType  string      `json:"nodeType"`
	NodeLabel string      `json:"nodeLabel"`
	Result    interface{} `json:"result"`
	Timestamp time.Time   `json:"timestamp"`
}

// Execution is one timestamped run record of an agent.
//
// Invariant: EndTime is set if and only if Status is terminal, and the
// transition into a terminal status happens exactly once.
type Execution struct {
	ID       string          `json:"id"`
	AgentID  string          `json:"agentId"`
	UserID   string          `json:"userId"`
	Status   ExecutionStatus `json:"status"`
	Start    time.Time       `json:"startTime"`
	End      *time.Time      `json:"endTime,omitempty"`
	Duration int64           `json:"duration,omitempty"` // milliseconds
	Logs     []LogEntry      `json:"logs"`
	Results  []ResultEntry   `json:"results"`
	Error    string          `json:"error,omitempty"`
}
