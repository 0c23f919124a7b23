// Package types provides shared types for the agentflow service.
package types

import (
	"time"
)

// AgentStatus represents the lifecycle state of an agent definition.
type AgentStatus string

const (
	AgentStatusDraft  AgentStatus = "draft"
	AgentStatusActive AgentStatus = "active"
	AgentStatusPaused AgentStatus = "paused"
)

// NodeCategory is the coarse kind of a graph node.
type NodeCategory string

const (
	NodeCategoryTrigger   NodeCategory = "trigger"
	NodeCategoryAction    NodeCategory = "action"
	NodeCategoryCondition NodeCategory = "condition"
	NodeCategoryData      NodeCategory = "data"
)

// Refined node types used on the canvas and by the graph planner.
const (
	NodeTypeScheduleTrigger = "scheduleTrigger"
	NodeTypeWebhookTrigger  = "webhookTrigger"
	NodeTypeSendEmail       = "sendEmail"
	NodeTypeAIProcess       = "aiProcess"
	NodeTypeAPICall         = "apiCall"
	NodeTypeDataFetch       = "dataFetch"
	NodeTypeIfElse          = "ifElse"
)

// Position is the 2-D canvas position of a node. Display only.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the display label, coarse category, and free-form config
// of a node.
type NodeData struct {
	Label  string                 `json:"label"`
	Type   NodeCategory           `json:"type"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// Node is a vertex in an agent's workflow graph.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Agent is a stored automation definition: either an explicit node/edge
// graph or a free-text description the orchestrator hands to the AI
// planner. Which path runs is decided by the description length, see
// orchestrator.ModeFor.
type Agent struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Nodes       []Node      `json:"nodes"`
	Edges       []Edge      `json:"edges"`
	Status      AgentStatus `json:"status"`

	// Display metadata produced by the graph synthesizer.
	Triggers []string `json:"triggers,omitempty"`
	Actions  []string `json:"actions,omitempty"`
	Schedule string   `json:"schedule,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
