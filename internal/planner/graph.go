package planner

import (
	"fmt"

	"github.com/flexinfer/agentflow/pkg/types"
)

// nodeStepType maps a graph node to the step type the interpreter
// dispatches on. Unmapped node types become automation steps, which the
// interpreter skips safely.
func nodeStepType(node types.Node) string {
	switch node.Type {
	case types.NodeTypeSendEmail:
		return types.StepTypeEmail
	case types.NodeTypeAIProcess:
		return types.StepTypeAnalysis
	case types.NodeTypeAPICall:
		return types.StepTypeAPICall
	case types.NodeTypeDataFetch:
		return types.StepTypeDataFetch
	case types.NodeTypeIfElse:
		return types.StepTypeCondition
	}

	switch node.Data.Type {
	case types.NodeCategoryData:
		return types.StepTypeDataFetch
	case types.NodeCategoryCondition:
		return types.StepTypeCondition
	default:
		return types.StepTypeAutomation
	}
}

// FromGraph walks the agent's node/edge graph from its trigger nodes and
// emits one step per action, condition, and data node in edge order.
// Cycles and edges referencing unknown node ids fail plan generation:
// nothing in the stored model forbids them, so the walk has to.
func FromGraph(nodes []types.Node, edges []types.Edge) ([]types.Step, error) {
	byID := make(map[string]*types.Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	// Outgoing edges per node, in declaration order.
	outgoing := make(map[string][]string)
	incoming := make(map[string]int)
	for _, edge := range edges {
		if _, ok := byID[edge.Source]; !ok {
			return nil, fmt.Errorf("edge %s references unknown source node %q", edge.ID, edge.Source)
		}
		if _, ok := byID[edge.Target]; !ok {
			return nil, fmt.Errorf("edge %s references unknown target node %q", edge.ID, edge.Target)
		}
		outgoing[edge.Source] = append(outgoing[edge.Source], edge.Target)
		incoming[edge.Target]++
	}

	// Roots: trigger nodes first, then any other node nothing points at.
	var roots []string
	isRoot := make(map[string]bool)
	for _, node := range nodes {
		if node.Data.Type == types.NodeCategoryTrigger {
			roots = append(roots, node.ID)
			isRoot[node.ID] = true
		}
	}
	for _, node := range nodes {
		if incoming[node.ID] == 0 && !isRoot[node.ID] {
			roots = append(roots, node.ID)
			isRoot[node.ID] = true
		}
	}
	if len(roots) == 0 && len(nodes) > 0 {
		return nil, fmt.Errorf("workflow graph has no entry point: every node has a predecessor")
	}

	const (
		colorVisiting = 1
		colorDone     = 2
	)
	color := make(map[string]int, len(nodes))
	var steps []types.Step

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case colorVisiting:
			return fmt.Errorf("workflow graph contains a cycle through node %q", id)
		case colorDone:
			return nil
		}
		color[id] = colorVisiting

		node := byID[id]
		if node.Data.Type != types.NodeCategoryTrigger {
			details := ""
			if node.Data.Config != nil {
				if d, ok := node.Data.Config["condition"].(string); ok {
					details = d
				} else if d, ok := node.Data.Config["prompt"].(string); ok {
					details = d
				}
			}
			steps = append(steps, types.Step{
				Action:    node.Data.Label,
				Type:      nodeStepType(*node),
				Details:   details,
				Status:    "planned",
				NodeID:    node.ID,
				NodeLabel: node.Data.Label,
			})
		}

		for _, next := range outgoing[id] {
			if err := visit(next); err != nil {
				return err
			}
		}

		color[id] = colorDone
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	// Anything unreached at this point can only be entered through a
	// cycle that no root leads into.
	for _, node := range nodes {
		if color[node.ID] != colorDone {
			return nil, fmt.Errorf("workflow graph contains a cycle through node %q", node.ID)
		}
	}

	return steps, nil
}
