package execstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flexinfer/agentflow/pkg/types"
)

// RedisStore implements Store backed by Redis.
// Log appends use Redis Streams (XADD is an atomic append), result appends
// use RPUSH, and the write-once finalize guard is a SETNX marker, so the
// per-execution atomicity guarantees hold across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	maxLog int64
	mu     sync.Mutex
	closed bool

	// Subscriber management
	subsMu sync.RWMutex
	subs   map[string]map[chan *types.LogEntry]struct{} // execID -> set of channels
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (redis://host:port/db)
	URL string

	// Password for Redis authentication
	Password string

	// DB is the database number
	DB int

	// Prefix for all keys (default: "executions")
	Prefix string

	// TTL for execution data (default: 30 days)
	TTL time.Duration

	// LogMaxLen caps the log stream length per execution
	LogMaxLen int64

	// Connection pool settings
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		URL:          "redis://localhost:6379/0",
		Prefix:       "executions",
		TTL:          30 * 24 * time.Hour,
		LogMaxLen:    5000,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewRedisStore creates a new Redis-backed Store.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	opts := &redis.Options{
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Password:     cfg.Password,
		DB:           cfg.DB,
	}

	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.Addr = parsed.Addr
		if parsed.Password != "" && cfg.Password == "" {
			opts.Password = parsed.Password
		}
		if parsed.DB != 0 && cfg.DB == 0 {
			opts.DB = parsed.DB
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "executions"
	}
	maxLog := cfg.LogMaxLen
	if maxLog <= 0 {
		maxLog = 5000
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
		maxLog: maxLog,
		subs:   make(map[string]map[chan *types.LogEntry]struct{}),
	}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used in tests.
func NewRedisStoreFromClient(client *redis.Client, prefix string, maxLog int64) *RedisStore {
	if prefix == "" {
		prefix = "executions"
	}
	if maxLog <= 0 {
		maxLog = 5000
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		maxLog: maxLog,
		subs:   make(map[string]map[chan *types.LogEntry]struct{}),
	}
}

// Key helpers
func (s *RedisStore) keyMeta(id string) string    { return fmt.Sprintf("%s:%s:meta", s.prefix, id) }
func (s *RedisStore) keyLogs(id string) string    { return fmt.Sprintf("%s:%s:logs", s.prefix, id) }
func (s *RedisStore) keyResults(id string) string { return fmt.Sprintf("%s:%s:results", s.prefix, id) }
func (s *RedisStore) keyDone(id string) string    { return fmt.Sprintf("%s:%s:finalized", s.prefix, id) }
func (s *RedisStore) keyIndex(agentID, userID string) string {
	return fmt.Sprintf("%s:index:%s:%s", s.prefix, agentID, userID)
}

// setTTL refreshes TTL on all keys for an execution.
func (s *RedisStore) setTTL(ctx context.Context, id string) error {
	if s.ttl <= 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, s.keyMeta(id), s.ttl)
	pipe.Expire(ctx, s.keyLogs(id), s.ttl)
	pipe.Expire(ctx, s.keyResults(id), s.ttl)
	pipe.Expire(ctx, s.keyDone(id), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Create(ctx context.Context, agentID, userID string) (string, error) {
	execID := uuid.New().String()
	now := time.Now().UTC()

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.keyMeta(execID), map[string]interface{}{
		"id":        execID,
		"agentId":   agentID,
		"userId":    userID,
		"status":    string(types.ExecutionStatusRunning),
		"startedAt": now.Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, s.keyIndex(agentID, userID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: execID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("create execution: %w", err)
	}

	if err := s.setTTL(ctx, execID); err != nil {
		slog.Warn("failed to set TTL for execution", slog.String("exec_id", execID), slog.Any("error", err))
	}

	return execID, nil
}

func (s *RedisStore) Get(ctx context.Context, execID string) (*types.Execution, error) {
	pipe := s.client.Pipeline()
	metaCmd := pipe.HGetAll(ctx, s.keyMeta(execID))
	logsCmd := pipe.XRange(ctx, s.keyLogs(execID), "-", "+")
	resultsCmd := pipe.LRange(ctx, s.keyResults(execID), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get execution: %w", err)
	}

	meta, err := metaCmd.Result()
	if err != nil || len(meta) == 0 {
		return nil, ErrExecutionNotFound
	}

	exec := &types.Execution{
		ID:      execID,
		AgentID: meta["agentId"],
		UserID:  meta["userId"],
		Status:  types.ExecutionStatus(meta["status"]),
		Error:   meta["error"],
		Logs:    []types.LogEntry{},
		Results: []types.ResultEntry{},
	}

	if meta["startedAt"] != "" {
		if t, err := time.Parse(time.RFC3339Nano, meta["startedAt"]); err == nil {
			exec.Start = t
		}
	}
	if meta["finishedAt"] != "" {
		if t, err := time.Parse(time.RFC3339Nano, meta["finishedAt"]); err == nil {
			exec.End = &t
		}
	}
	if meta["duration"] != "" {
		if d, err := strconv.ParseInt(meta["duration"], 10, 64); err == nil {
			exec.Duration = d
		}
	}

	for _, entry := range logsCmd.Val() {
		if log, ok := parseLogEntry(entry.Values); ok {
			exec.Logs = append(exec.Logs, log)
		}
	}

	for _, raw := range resultsCmd.Val() {
		var r types.ResultEntry
		if json.Unmarshal([]byte(raw), &r) == nil {
			exec.Results = append(exec.Results, r)
		}
	}

	return exec, nil
}

func (s *RedisStore) ListByAgent(ctx context.Context, agentID, userID string, limit int) ([]*types.Execution, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	// Index is scored by start time; reverse range = newest first.
	ids, err := s.client.ZRevRange(ctx, s.keyIndex(agentID, userID), 0, stop).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	execs := make([]*types.Execution, 0, len(ids))
	for _, id := range ids {
		exec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrExecutionNotFound) {
				continue // expired record still in index
			}
			return nil, err
		}
		execs = append(execs, exec)
	}

	return execs, nil
}

func (s *RedisStore) AppendLog(ctx context.Context, execID string, level types.LogLevel, message string) error {
	exists, err := s.client.Exists(ctx, s.keyMeta(execID)).Result()
	if err != nil {
		return fmt.Errorf("check execution exists: %w", err)
	}
	if exists == 0 {
		return ErrExecutionNotFound
	}

	now := time.Now().UTC()
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.keyLogs(execID),
		MaxLen: s.maxLog,
		Approx: true,
		Values: map[string]interface{}{
			"ts":      now.Format(time.RFC3339Nano),
			"level":   string(level),
			"message": message,
		},
	}).Err(); err != nil {
		return fmt.Errorf("xadd log: %w", err)
	}

	s.setTTL(ctx, execID)

	s.notifySubscribers(execID, &types.LogEntry{
		Timestamp: now,
		Level:     level,
		Message:   message,
	})

	return nil
}

func (s *RedisStore) AppendResult(ctx context.Context, execID string, entry types.ResultEntry) error {
	exists, err := s.client.Exists(ctx, s.keyMeta(execID)).Result()
	if err != nil {
		return fmt.Errorf("check execution exists: %w", err)
	}
	if exists == 0 {
		return ErrExecutionNotFound
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if err := s.client.RPush(ctx, s.keyResults(execID), raw).Err(); err != nil {
		return fmt.Errorf("rpush result: %w", err)
	}

	s.setTTL(ctx, execID)
	return nil
}

func (s *RedisStore) Finalize(ctx context.Context, execID string, status types.ExecutionStatus, errMsg string) error {
	meta, err := s.client.HGetAll(ctx, s.keyMeta(execID)).Result()
	if err != nil {
		return fmt.Errorf("get execution meta: %w", err)
	}
	if len(meta) == 0 {
		return ErrExecutionNotFound
	}

	// SETNX marker makes the terminal transition write-once even across
	// processes.
	ok, err := s.client.SetNX(ctx, s.keyDone(execID), "1", s.ttl).Result()
	if err != nil {
		return fmt.Errorf("finalize guard: %w", err)
	}
	if !ok {
		return ErrAlreadyFinalized
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"status":     string(status),
		"finishedAt": now.Format(time.RFC3339Nano),
	}
	if start, err := time.Parse(time.RFC3339Nano, meta["startedAt"]); err == nil {
		fields["duration"] = strconv.FormatInt(now.Sub(start).Milliseconds(), 10)
	}
	if status == types.ExecutionStatusFailed && errMsg != "" {
		fields["error"] = errMsg
	}

	if err := s.client.HSet(ctx, s.keyMeta(execID), fields).Err(); err != nil {
		return fmt.Errorf("finalize execution: %w", err)
	}

	s.setTTL(ctx, execID)
	s.closeSubscribers(execID)
	return nil
}

// closeSubscribers ends all local subscriptions for a finalized execution
// so streaming consumers observe the terminal transition.
func (s *RedisStore) closeSubscribers(execID string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for ch := range s.subs[execID] {
		close(ch)
	}
	delete(s.subs, execID)
}

func (s *RedisStore) Subscribe(ctx context.Context, execID string) (<-chan *types.LogEntry, func(), error) {
	exists, err := s.client.Exists(ctx, s.keyMeta(execID)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("check execution exists: %w", err)
	}
	if exists == 0 {
		return nil, nil, ErrExecutionNotFound
	}

	ch := make(chan *types.LogEntry, 100)

	s.subsMu.Lock()
	if s.subs[execID] == nil {
		s.subs[execID] = make(map[chan *types.LogEntry]struct{})
	}
	s.subs[execID][ch] = struct{}{}
	s.subsMu.Unlock()

	cleanup := func() {
		s.subsMu.Lock()
		delete(s.subs[execID], ch)
		if len(s.subs[execID]) == 0 {
			delete(s.subs, execID)
		}
		s.subsMu.Unlock()
	}

	return ch, cleanup, nil
}

// notifySubscribers sends a log entry to all local subscribers.
func (s *RedisStore) notifySubscribers(execID string, entry *types.LogEntry) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for ch := range s.subs[execID] {
		select {
		case ch <- entry:
		default:
			// Channel full, skip
		}
	}
}

func (s *RedisStore) AdapterInfo(ctx context.Context) (map[string]interface{}, error) {
	pingStart := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return map[string]interface{}{
			"adapter": "redis",
			"healthy": false,
			"error":   err.Error(),
		}, nil
	}
	pingLatency := time.Since(pingStart)

	poolStats := s.client.PoolStats()

	return map[string]interface{}{
		"adapter": "redis",
		"healthy": true,
		"details": map[string]interface{}{
			"prefix":       s.prefix,
			"ttl_hours":    s.ttl.Hours(),
			"ping_latency": pingLatency.String(),
			"pool": map[string]interface{}{
				"hits":       poolStats.Hits,
				"misses":     poolStats.Misses,
				"timeouts":   poolStats.Timeouts,
				"total_conn": poolStats.TotalConns,
				"idle_conn":  poolStats.IdleConns,
			},
		},
	}, nil
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.client.Close()
}

func parseLogEntry(values map[string]interface{}) (types.LogEntry, bool) {
	msg, ok := values["message"].(string)
	if !ok {
		return types.LogEntry{}, false
	}
	level, _ := values["level"].(string)
	ts, _ := values["ts"].(string)
	timestamp, _ := time.Parse(time.RFC3339Nano, ts)

	return types.LogEntry{
		Timestamp: timestamp,
		Level:     types.LogLevel(level),
		Message:   msg,
	}, true
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
