package agentstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flexinfer/agentflow/pkg/types"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for testing and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*types.Agent
}

// NewMemoryStore creates a new in-memory agent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents: make(map[string]*types.Agent),
	}
}

func (s *MemoryStore) Create(ctx context.Context, agent *types.Agent) (*types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.agents[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id, userID string) (*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok || agent.UserID != userID {
		return nil, ErrAgentNotFound
	}

	// Return a copy to prevent external mutation
	out := *agent
	return &out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id, userID string, update *types.Agent) (*types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok || agent.UserID != userID {
		return nil, ErrAgentNotFound
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

	out := *agent
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok || agent.UserID != userID {
		return ErrAgentNotFound
	}

	delete(s.agents, agent.ID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, userID string) ([]*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]*types.Agent, 0)
	for _, agent := range s.agents {
		if agent.UserID != userID {
			continue
		}
		out := *agent
		agents = append(agents, &out)
	}

	sort.Slice(agents, func(i, j int) bool {
		return agents[i].UpdatedAt.After(agents[j].UpdatedAt)
	})

	return agents, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Verify interface compliance
var _ Store = (*MemoryStore)(nil)
