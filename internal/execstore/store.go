// Package execstore provides execution record persistence and log streaming.
package execstore

import (
	"context"
	"errors"

	"github.com/flexinfer/agentflow/pkg/types"
)

// Common errors returned by Store implementations.
var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrAlreadyFinalized  = errors.New("execution already finalized")
)

// Store defines the interface for execution record persistence.
// Implementations must be safe for concurrent use, and AppendLog /
// AppendResult must be atomic appends per execution id: concurrent calls
// for the same execution may interleave but never lose entries.
type Store interface {
	// Create initializes a new execution record with status running and
	// start time now, returning its id.
	Create(ctx context.Context, agentID, userID string) (string, error)

	// Get returns the full execution record.
	Get(ctx context.Context, execID string) (*types.Execution, error)

	// ListByAgent returns up to limit executions for the agent and owner,
	// newest first. limit <= 0 means no limit.
	ListByAgent(ctx context.Context, agentID, userID string, limit int) ([]*types.Execution, error)

	// AppendLog appends one log entry to the execution's log. Entries are
	// never reordered; once LogMaxLen entries are recorded the oldest are
	// evicted so one runaway run cannot grow without bound. Within the
	// retained window the log is strictly append-only.
	AppendLog(ctx context.Context, execID string, level types.LogLevel, message string) error

	// AppendResult appends one result entry to the execution's results.
	AppendResult(ctx context.Context, execID string, entry types.ResultEntry) error

	// Finalize sets the terminal status, end time, and duration. It
	// succeeds exactly once per execution; a second call returns
	// ErrAlreadyFinalized. errMsg is stored only for failed runs.
	Finalize(ctx context.Context, execID string, status types.ExecutionStatus, errMsg string) error

	// Subscribe returns a channel receiving log entries appended after the
	// call. The cleanup function must be called to release resources.
	Subscribe(ctx context.Context, execID string) (<-chan *types.LogEntry, func(), error)

	// AdapterInfo returns diagnostic information about the backend.
	AdapterInfo(ctx context.Context) (map[string]interface{}, error)

	// Close releases backend resources.
	Close() error
}

// Config holds configuration for Store implementations.
type Config struct {
	// Maximum number of log entries to keep per execution (ring buffer).
	LogMaxLen int64

	// TTL for execution records in seconds (0 = no expiry).
	TTLSeconds int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogMaxLen:  5000,
		TTLSeconds: 30 * 24 * 60 * 60, // 30 days
	}
}
