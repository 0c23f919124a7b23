package execstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flexinfer/agentflow/pkg/types"
)

// memoryExecution holds all state for a single execution in memory.
type memoryExecution struct {
	mu          sync.Mutex
	id          string
	agentID     string
	userID      string
	status      types.ExecutionStatus
	start       time.Time
	end         *time.Time
	duration    int64
	errMsg      string
	logs        []types.LogEntry
	results     []types.ResultEntry
	maxLogs     int64
	subscribers map[chan *types.LogEntry]struct{}
}

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	execs  map[string]*memoryExecution
	config *Config
}

// NewMemoryStore creates a new in-memory Store.
func NewMemoryStore(cfg *Config) *MemoryStore {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &MemoryStore{
		execs:  make(map[string]*memoryExecution),
		config: cfg,
	}
}

func (s *MemoryStore) Create(ctx context.Context, agentID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execID := uuid.New().String()
	s.execs[execID] = &memoryExecution{
		id:          execID,
		agentID:     agentID,
		userID:      userID,
		status:      types.ExecutionStatusRunning,
		start:       time.Now().UTC(),
		maxLogs:     s.config.LogMaxLen,
		subscribers: make(map[chan *types.LogEntry]struct{}),
	}

	return execID, nil
}

func (s *MemoryStore) get(execID string) (*memoryExecution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[execID]
	return exec, ok
}

func (s *MemoryStore) Get(ctx context.Context, execID string) (*types.Execution, error) {
	exec, ok := s.get(execID)
	if !ok {
		return nil, ErrExecutionNotFound
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	return exec.snapshotLocked(), nil
}

// snapshotLocked copies the execution into the public type. Caller holds
// exec.mu.
func (e *memoryExecution) snapshotLocked() *types.Execution {
	out := &types.Execution{
		ID:       e.id,
		AgentID:  e.agentID,
		UserID:   e.userID,
		Status:   e.status,
		Start:    e.start,
		Duration: e.duration,
		Logs:     make([]types.LogEntry, len(e.logs)),
		Results:  make([]types.ResultEntry, len(e.results)),
		Error:    e.errMsg,
	}
	copy(out.Logs, e.logs)
	copy(out.Results, e.results)
	if e.end != nil {
		end := *e.end
		out.End = &end
	}
	return out
}

func (s *MemoryStore) ListByAgent(ctx context.Context, agentID, userID string, limit int) ([]*types.Execution, error) {
	s.mu.RLock()
	var matched []*memoryExecution
	for _, exec := range s.execs {
		if exec.agentID == agentID && exec.userID == userID {
			matched = append(matched, exec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].start.After(matched[j].start)
	})
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*types.Execution, 0, len(matched))
	for _, exec := range matched {
		exec.mu.Lock()
		out = append(out, exec.snapshotLocked())
		exec.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) AppendLog(ctx context.Context, execID string, level types.LogLevel, message string) error {
	exec, ok := s.get(execID)
	if !ok {
		return ErrExecutionNotFound
	}

	entry := types.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
	}

	exec.mu.Lock()
	if int64(len(exec.logs)) >= exec.maxLogs {
		exec.logs = exec.logs[1:]
	}
	exec.logs = append(exec.logs, entry)

	// Notify under the lock: Finalize closes subscriber channels while
	// holding it, so a send can never hit a closed channel. Sends are
	// non-blocking against buffered channels and cannot stall appends.
	for ch := range exec.subscribers {
		select {
		case ch <- &entry:
		default:
			// Subscriber too slow, skip.
		}
	}
	exec.mu.Unlock()

	return nil
}

func (s *MemoryStore) AppendResult(ctx context.Context, execID string, entry types.ResultEntry) error {
	exec, ok := s.get(execID)
	if !ok {
		return ErrExecutionNotFound
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	exec.mu.Lock()
	exec.results = append(exec.results, entry)
	exec.mu.Unlock()

	return nil
}

func (s *MemoryStore) Finalize(ctx context.Context, execID string, status types.ExecutionStatus, errMsg string) error {
	exec, ok := s.get(execID)
	if !ok {
		return ErrExecutionNotFound
	}

	exec.mu.Lock()
	if exec.status.Terminal() {
		exec.mu.Unlock()
		return ErrAlreadyFinalized
	}

	now := time.Now().UTC()
	exec.status = status
	exec.end = &now
	exec.duration = now.Sub(exec.start).Milliseconds()
	if status == types.ExecutionStatusFailed {
		exec.errMsg = errMsg
	}

	// Terminal state: close subscriber channels so SSE streams end.
	for ch := range exec.subscribers {
		close(ch)
	}
	exec.subscribers = make(map[chan *types.LogEntry]struct{})
	exec.mu.Unlock()

	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, execID string) (<-chan *types.LogEntry, func(), error) {
	exec, ok := s.get(execID)
	if !ok {
		return nil, nil, ErrExecutionNotFound
	}

	ch := make(chan *types.LogEntry, 100)

	exec.mu.Lock()
	if exec.status.Terminal() {
		// Nothing more will be appended; hand back a closed channel.
		close(ch)
		exec.mu.Unlock()
		return ch, func() {}, nil
	}
	exec.subscribers[ch] = struct{}{}
	exec.mu.Unlock()

	cleanup := func() {
		exec.mu.Lock()
		delete(exec.subscribers, ch)
		exec.mu.Unlock()
	}

	return ch, cleanup, nil
}

func (s *MemoryStore) AdapterInfo(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	count := len(s.execs)
	s.mu.RUnlock()

	return map[string]interface{}{
		"adapter":         "memory",
		"execution_count": count,
		"max_logs":        s.config.LogMaxLen,
	}, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, exec := range s.execs {
		exec.mu.Lock()
		for ch := range exec.subscribers {
			close(ch)
		}
		exec.subscribers = nil
		exec.mu.Unlock()
	}

	return nil
}

// Verify interface compliance
var _ Store = (*MemoryStore)(nil)
