package planner

import (
	"strings"
	"testing"

	"github.com/flexinfer/agentflow/pkg/types"
)

func triggerNode(id string) types.Node {
	return types.Node{
		ID:   id,
		Type: types.NodeTypeScheduleTrigger,
		Data: types.NodeData{Label: "Schedule Trigger", Type: types.NodeCategoryTrigger},
	}
}

func actionNode(id, nodeType, label string) types.Node {
	return types.Node{
		ID:   id,
		Type: nodeType,
		Data: types.NodeData{Label: label, Type: types.NodeCategoryAction},
	}
}

func TestFromGraph(t *testing.T) {
	t.Run("emits steps in edge order, triggers excluded", func(t *testing.T) {
		nodes := []types.Node{
			triggerNode("t1"),
			actionNode("a1", types.NodeTypeDataFetch, "Fetch Sheet"),
			actionNode("a2", types.NodeTypeSendEmail, "Send Email"),
		}
		edges := []types.Edge{
			{ID: "e1", Source: "t1", Target: "a1"},
			{ID: "e2", Source: "a1", Target: "a2"},
		}

		steps, err := FromGraph(nodes, edges)
		if err != nil {
			t.Fatalf("FromGraph failed: %v", err)
		}
		if len(steps) != 2 {
			t.Fatalf("expected 2 steps, got %d", len(steps))
		}
		if steps[0].NodeID != "a1" || steps[1].NodeID != "a2" {
			t.Errorf("steps out of order: %q, %q", steps[0].NodeID, steps[1].NodeID)
		}
		if steps[0].Type != types.StepTypeDataFetch {
			t.Errorf("expected data_fetch, got %q", steps[0].Type)
		}
		if steps[1].Type != types.StepTypeEmail {
			t.Errorf("expected email, got %q", steps[1].Type)
		}
		for _, s := range steps {
			if s.Status != "planned" {
				t.Errorf("step %s status = %q, want planned", s.NodeID, s.Status)
			}
		}
	})

	t.Run("node type mapping", func(t *testing.T) {
		cases := []struct {
			nodeType string
			category types.NodeCategory
			want     string
		}{
			{types.NodeTypeSendEmail, types.NodeCategoryAction, types.StepTypeEmail},
			{types.NodeTypeAIProcess, types.NodeCategoryAction, types.StepTypeAnalysis},
			{types.NodeTypeAPICall, types.NodeCategoryAction, types.StepTypeAPICall},
			{types.NodeTypeDataFetch, types.NodeCategoryAction, types.StepTypeDataFetch},
			{types.NodeTypeIfElse, types.NodeCategoryCondition, types.StepTypeCondition},
			{"customThing", types.NodeCategoryData, types.StepTypeDataFetch},
			{"customThing", types.NodeCategoryCondition, types.StepTypeCondition},
			{"customThing", types.NodeCategoryAction, types.StepTypeAutomation},
		}
		for _, tc := range cases {
			node := types.Node{ID: "n1", Type: tc.nodeType, Data: types.NodeData{Label: "x", Type: tc.category}}
			steps, err := FromGraph([]types.Node{node}, nil)
			if err != nil {
				t.Fatalf("FromGraph(%s/%s) failed: %v", tc.nodeType, tc.category, err)
			}
			if len(steps) != 1 || steps[0].Type != tc.want {
				t.Errorf("node %s/%s mapped to %q, want %q", tc.nodeType, tc.category, steps[0].Type, tc.want)
			}
		}
	})

	t.Run("condition and prompt configs become details", func(t *testing.T) {
		nodes := []types.Node{
			{ID: "c1", Type: types.NodeTypeIfElse, Data: types.NodeData{
				Label: "If/Else", Type: types.NodeCategoryCondition,
				Config: map[string]interface{}{"condition": "count > 3"},
			}},
			{ID: "a1", Type: types.NodeTypeAIProcess, Data: types.NodeData{
				Label: "AI Process", Type: types.NodeCategoryAction,
				Config: map[string]interface{}{"prompt": "summarize the rows"},
			}},
		}
		steps, err := FromGraph(nodes, []types.Edge{{ID: "e1", Source: "c1", Target: "a1"}})
		if err != nil {
			t.Fatalf("FromGraph failed: %v", err)
		}
		if steps[0].Details != "count > 3" {
			t.Errorf("condition details = %q, want %q", steps[0].Details, "count > 3")
		}
		if steps[1].Details != "summarize the rows" {
			t.Errorf("prompt details = %q, want %q", steps[1].Details, "summarize the rows")
		}
	})

	t.Run("edge referencing unknown node fails", func(t *testing.T) {
		nodes := []types.Node{triggerNode("t1")}
		edges := []types.Edge{{ID: "e1", Source: "t1", Target: "ghost"}}
		if _, err := FromGraph(nodes, edges); err == nil {
			t.Fatal("expected error for edge to unknown node")
		}

		edges = []types.Edge{{ID: "e1", Source: "ghost", Target: "t1"}}
		if _, err := FromGraph(nodes, edges); err == nil {
			t.Fatal("expected error for edge from unknown node")
		}
	})

	t.Run("reachable cycle fails", func(t *testing.T) {
		nodes := []types.Node{
			triggerNode("t1"),
			actionNode("a1", types.NodeTypeAPICall, "API Call"),
			actionNode("a2", types.NodeTypeAPICall, "API Call"),
		}
		edges := []types.Edge{
			{ID: "e1", Source: "t1", Target: "a1"},
			{ID: "e2", Source: "a1", Target: "a2"},
			{ID: "e3", Source: "a2", Target: "a1"},
		}
		_, err := FromGraph(nodes, edges)
		if err == nil {
			t.Fatal("expected cycle error")
		}
		if !strings.Contains(err.Error(), "cycle") {
			t.Errorf("error does not mention cycle: %v", err)
		}
	})

	t.Run("detached cycle fails", func(t *testing.T) {
		nodes := []types.Node{
			triggerNode("t1"),
			actionNode("a1", types.NodeTypeAPICall, "API Call"),
			actionNode("a2", types.NodeTypeAPICall, "API Call"),
		}
		// a1 and a2 only reference each other; no root reaches them.
		edges := []types.Edge{
			{ID: "e1", Source: "a1", Target: "a2"},
			{ID: "e2", Source: "a2", Target: "a1"},
		}
		if _, err := FromGraph(nodes, edges); err == nil {
			t.Fatal("expected cycle error for unreachable loop")
		}
	})

	t.Run("all nodes have predecessors fails", func(t *testing.T) {
		nodes := []types.Node{
			actionNode("a1", types.NodeTypeAPICall, "API Call"),
			actionNode("a2", types.NodeTypeAPICall, "API Call"),
		}
		edges := []types.Edge{
			{ID: "e1", Source: "a1", Target: "a2"},
			{ID: "e2", Source: "a2", Target: "a1"},
		}
		_, err := FromGraph(nodes, edges)
		if err == nil {
			t.Fatal("expected no-entry-point error")
		}
	})

	t.Run("action chain without trigger still plans", func(t *testing.T) {
		nodes := []types.Node{
			actionNode("a1", types.NodeTypeDataFetch, "Fetch"),
			actionNode("a2", types.NodeTypeSendEmail, "Send"),
		}
		edges := []types.Edge{{ID: "e1", Source: "a1", Target: "a2"}}
		steps, err := FromGraph(nodes, edges)
		if err != nil {
			t.Fatalf("FromGraph failed: %v", err)
		}
		if len(steps) != 2 {
			t.Fatalf("expected 2 steps, got %d", len(steps))
		}
	})

	t.Run("empty graph yields no steps", func(t *testing.T) {
		steps, err := FromGraph(nil, nil)
		if err != nil {
			t.Fatalf("FromGraph failed: %v", err)
		}
		if len(steps) != 0 {
			t.Errorf("expected no steps, got %d", len(steps))
		}
	})

	t.Run("shared node visited once", func(t *testing.T) {
		nodes := []types.Node{
			triggerNode("t1"),
			triggerNode("t2"),
			actionNode("a1", types.NodeTypeSendEmail, "Send Email"),
		}
		edges := []types.Edge{
			{ID: "e1", Source: "t1", Target: "a1"},
			{ID: "e2", Source: "t2", Target: "a1"},
		}
		steps, err := FromGraph(nodes, edges)
		if err != nil {
			t.Fatalf("FromGraph failed: %v", err)
		}
		if len(steps) != 1 {
			t.Errorf("expected shared node to emit 1 step, got %d", len(steps))
		}
	})
}
