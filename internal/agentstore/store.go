// Package agentstore provides agent definition persistence.
package agentstore

import (
	"context"
	"errors"

	"github.com/flexinfer/agentflow/pkg/types"
)

// Common errors returned by Store implementations.
var (
	ErrAgentNotFound = errors.New("agent not found")
)

// Store defines the interface for agent definition CRUD.
// Every call is scoped to an owning user id; an agent belonging to a
// different owner behaves as if it did not exist.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create persists a new agent and returns it with identity and
	// timestamps assigned.
	Create(ctx context.Context, agent *types.Agent) (*types.Agent, error)

	// Get retrieves an agent by id. Returns ErrAgentNotFound if absent or
	// owned by a different user.
	Get(ctx context.Context, id, userID string) (*types.Agent, error)

	// Update replaces the mutable fields of an existing agent and bumps
	// UpdatedAt. Returns ErrAgentNotFound if absent.
	Update(ctx context.Context, id, userID string, update *types.Agent) (*types.Agent, error)

	// Delete removes an agent. Returns ErrAgentNotFound if absent.
	Delete(ctx context.Context, id, userID string) error

	// List returns all agents for the user, most recently updated first.
	List(ctx context.Context, userID string) ([]*types.Agent, error)

	// Close releases backend resources.
	Close() error
}
