package agentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flexinfer/agentflow/pkg/types"
)

// RedisStore implements Store backed by Redis. Each agent is a JSON blob
// under its own key, with a per-user sorted set (scored by UpdatedAt) as
// the listing index.
type RedisStore struct {
	client *redis.Client
	prefix string
	mu     sync.Mutex
	closed bool
}

// RedisConfig holds Redis connection configuration for the agent store.
type RedisConfig struct {
	URL      string
	Password string
	DB       int

	// Prefix for all keys (default: "agents")
	Prefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisStore creates a new Redis-backed agent store.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = &RedisConfig{URL: "redis://localhost:6379/0"}
	}

	opts := &redis.Options{
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
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
		prefix = "agents"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used in tests.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "agents"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) keyAgent(id string) string { return fmt.Sprintf("%s:%s", s.prefix, id) }
func (s *RedisStore) keyIndex(userID string) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, userID)
}

func (s *RedisStore) Create(ctx context.Context, agent *types.Agent) (*types.Agent, error) {
	now := time.Now().UTC()
	stored := *agent
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = types.AgentStatusDraft
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := s.save(ctx, &stored); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	out := stored
	return &out, nil
}

func (s *RedisStore) save(ctx context.Context, agent *types.Agent) error {
	raw, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("marshal agent: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.keyAgent(agent.ID), raw, 0)
	pipe.ZAdd(ctx, s.keyIndex(agent.UserID), redis.Z{
		Score:  float64(agent.UpdatedAt.UnixMilli()),
		Member: agent.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, id, userID string) (*types.Agent, error) {
	raw, err := s.client.Get(ctx, s.keyAgent(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}

	var agent types.Agent
	if err := json.Unmarshal([]byte(raw), &agent); err != nil {
		return nil, fmt.Errorf("unmarshal agent: %w", err)
	}
	if agent.UserID != userID {
		return nil, ErrAgentNotFound
	}

	return &agent, nil
}

func (s *RedisStore) Update(ctx context.Context, id, userID string, update *types.Agent) (*types.Agent, error) {
	agent, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	agent.Name = update.Name
	agent.Description = update.Description
	agent.Nodes = update.Nodes
	agent.Edges = update.Edges
	if update.Status != "" {
		agent.Status = update.Status
	}
	if update.Triggers != nil {
		agent.Triggers = update.Triggers
	}
	if update.Actions != nil {
		agent.Actions = update.Actions
	}
	if update.Schedule != "" {
		agent.Schedule = update.Schedule
	}
	agent.UpdatedAt = time.Now().UTC()

	if err := s.save(ctx, agent); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}

	return agent, nil
}

func (s *RedisStore) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.keyAgent(id))
	pipe.ZRem(ctx, s.keyIndex(userID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}

	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]*types.Agent, error) {
	// Index is scored by UpdatedAt; reverse range = most recent first.
	ids, err := s.client.ZRevRange(ctx, s.keyIndex(userID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	agents := make([]*types.Agent, 0, len(ids))
	for _, id := range ids {
		agent, err := s.Get(ctx, id, userID)
		if err != nil {
			if errors.Is(err, ErrAgentNotFound) {
				continue
			}
			return nil, err
		}
		agents = append(agents, agent)
	}

	return agents, nil
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

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
