package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flexinfer/agentflow/internal/agentstore"
	"github.com/flexinfer/agentflow/internal/execstore"
	"github.com/flexinfer/agentflow/internal/integrations"
	"github.com/flexinfer/agentflow/internal/interpreter"
	"github.com/flexinfer/agentflow/internal/planner"
	"github.com/flexinfer/agentflow/pkg/types"
)

type stubInference struct {
	response string
	err      error
}

func (c *stubInference) Generate(ctx context.Context, prompt string) (string, error) {
	return c.response, c.err
}

type orchFixture struct {
	agents *agentstore.MemoryStore
	execs  *execstore.MemoryStore
	orch   *Orchestrator
}

func newFixture(t *testing.T, infer *stubInference) *orchFixture {
	t.Helper()
	agents := agentstore.NewMemoryStore()
	execs := execstore.NewMemoryStore(nil)
	interp := interpreter.New(execs, &integrations.LogNotifier{}, &integrations.StaticSheetReader{}, nil)
	orch := New(agents, execs, planner.New(infer), interp, infer, nil)
	return &orchFixture{agents: agents, execs: execs, orch: orch}
}

func (f *orchFixture) createAgent(t *testing.T, agent *types.Agent) *types.Agent {
	t.Helper()
	created, err := f.agents.Create(context.Background(), agent)
	if err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	return created
}

func TestModeFor(t *testing.T) {
	cases := []struct {
		description string
		want        Mode
	}{
		{"", ModeWorkflow},
		{"exactly twenty chars", ModeWorkflow}, // len 20, at the boundary
		{"just over twenty chars", ModeSmartAI},
		{strings.Repeat("x", 21), ModeSmartAI},
	}
	for _, tc := range cases {
		agent := &types.Agent{Description: tc.description}
		if got := ModeFor(agent); got != tc.want {
			t.Errorf("ModeFor(len %d) = %q, want %q", len(tc.description), got, tc.want)
		}
	}
}

func TestStart(t *testing.T) {
	t.Run("missing agent leaves no execution", func(t *testing.T) {
		f := newFixture(t, &stubInference{})

		_, err := f.orch.Start(context.Background(), "no-such-agent", "user-1")
		if !errors.Is(err, agentstore.ErrAgentNotFound) {
			t.Fatalf("expected ErrAgentNotFound, got %v", err)
		}
	})

	t.Run("agent of another user is not found", func(t *testing.T) {
		f := newFixture(t, &stubInference{})
		agent := f.createAgent(t, &types.Agent{Name: "Theirs", UserID: "user-2"})

		_, err := f.orch.Start(context.Background(), agent.ID, "user-1")
		if !errors.Is(err, agentstore.ErrAgentNotFound) {
			t.Fatalf("expected ErrAgentNotFound, got %v", err)
		}
	})

	t.Run("smart mode completes with ai plan", func(t *testing.T) {
		infer := &stubInference{response: `{"steps":[{"action":"Send report","type":"email","details":"daily report"}],"summary":"send a report"}`}
		f := newFixture(t, infer)
		agent := f.createAgent(t, &types.Agent{
			Name:        "Reporter",
			UserID:      "user-1",
			Description: "send me an email report every single day",
		})

		h, err := f.orch.Start(context.Background(), agent.ID, "user-1")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if h.Mode != ModeSmartAI {
			t.Errorf("mode = %q, want smart-ai", h.Mode)
		}
		h.Wait()

		exec, err := f.execs.Get(context.Background(), h.ExecutionID)
		if err != nil {
			t.Fatalf("failed to get execution: %v", err)
		}
		if exec.Status != types.ExecutionStatusCompleted {
			t.Fatalf("status = %q, want completed", exec.Status)
		}
		if exec.End == nil {
			t.Error("finalized execution must have an end time")
		}

		var sawDelegate, sawStep bool
		for _, entry := range exec.Logs {
			if entry.Message == "Delegating task to AI planning engine..." {
				sawDelegate = true
			}
			if entry.Message == "Send report: daily report" {
				sawStep = true
			}
		}
		if !sawDelegate {
			t.Error("expected the delegation log entry")
		}
		if !sawStep {
			t.Error("expected a per-step plan log entry")
		}

		var aggregate *types.ResultEntry
		for i := range exec.Results {
			if exec.Results[i].NodeID == "ai-planner" {
				aggregate = &exec.Results[i]
			}
		}
		if aggregate == nil {
			t.Fatal("no aggregate planner result entry")
		}
		if aggregate.NodeType != "smart-execution" || aggregate.NodeLabel != "AI Planner" {
			t.Errorf("unexpected aggregate entry: %+v", aggregate)
		}
	})

	t.Run("unparseable ai response degrades but completes", func(t *testing.T) {
		infer := &stubInference{response: "Sorry, I can only answer questions."}
		f := newFixture(t, infer)
		agent := f.createAgent(t, &types.Agent{
			Name:        "Degraded",
			UserID:      "user-1",
			Description: "a task description long enough for smart mode",
		})

		h, err := f.orch.Start(context.Background(), agent.ID, "user-1")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		h.Wait()

		exec, _ := f.execs.Get(context.Background(), h.ExecutionID)
		if exec.Status != types.ExecutionStatusCompleted {
			t.Fatalf("status = %q, want completed", exec.Status)
		}

		var sawEmptyWarning bool
		for _, entry := range exec.Logs {
			if entry.Level == types.LogLevelWarning && entry.Message == "No steps to execute" {
				sawEmptyWarning = true
			}
		}
		if !sawEmptyWarning {
			t.Error("expected the empty-plan warning")
		}

		var aggregate bool
		for _, res := range exec.Results {
			if res.NodeID == "ai-planner" {
				aggregate = true
			}
		}
		if !aggregate {
			t.Error("degraded plan must still record the aggregate result entry")
		}
	})

	t.Run("unreachable inference fails the run", func(t *testing.T) {
		infer := &stubInference{err: errors.New("connection refused")}
		f := newFixture(t, infer)
		agent := f.createAgent(t, &types.Agent{
			Name:        "Broken",
			UserID:      "user-1",
			Description: "a task description long enough for smart mode",
		})

		h, err := f.orch.Start(context.Background(), agent.ID, "user-1")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		h.Wait()

		exec, _ := f.execs.Get(context.Background(), h.ExecutionID)
		if exec.Status != types.ExecutionStatusFailed {
			t.Fatalf("status = %q, want failed", exec.Status)
		}
		if exec.Error == "" {
			t.Error("failed execution must carry an error message")
		}

		var sawError bool
		for _, entry := range exec.Logs {
			if entry.Level == types.LogLevelError && strings.HasPrefix(entry.Message, "Execution failed:") {
				sawError = true
			}
		}
		if !sawError {
			t.Error("expected an execution failure log entry")
		}
	})

	t.Run("workflow mode walks the graph", func(t *testing.T) {
		f := newFixture(t, &stubInference{})
		agent := f.createAgent(t, &types.Agent{
			Name:        "Graph",
			UserID:      "user-1",
			Description: "short graph run",
			Nodes: []types.Node{
				{ID: "t1", Type: types.NodeTypeScheduleTrigger, Data: types.NodeData{Label: "Schedule", Type: types.NodeCategoryTrigger}},
				{ID: "a1", Type: types.NodeTypeSendEmail, Data: types.NodeData{Label: "Send Email", Type: types.NodeCategoryAction}},
			},
			Edges: []types.Edge{{ID: "e1", Source: "t1", Target: "a1"}},
		})

		h, err := f.orch.Start(context.Background(), agent.ID, "user-1")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if h.Mode != ModeWorkflow {
			t.Errorf("mode = %q, want workflow", h.Mode)
		}
		h.Wait()

		exec, _ := f.execs.Get(context.Background(), h.ExecutionID)
		if exec.Status != types.ExecutionStatusCompleted {
			t.Fatalf("status = %q, want completed", exec.Status)
		}

		var sawEmail bool
		for _, entry := range exec.Logs {
			if entry.Message == "Email sent successfully" {
				sawEmail = true
			}
		}
		if !sawEmail {
			t.Error("expected the email step to run")
		}
	})

	t.Run("cyclic graph fails the run", func(t *testing.T) {
		f := newFixture(t, &stubInference{})
		agent := f.createAgent(t, &types.Agent{
			Name:        "Cycle",
			UserID:      "user-1",
			Description: "short",
			Nodes: []types.Node{
				{ID: "t1", Type: types.NodeTypeScheduleTrigger, Data: types.NodeData{Label: "Schedule", Type: types.NodeCategoryTrigger}},
				{ID: "a1", Type: types.NodeTypeAPICall, Data: types.NodeData{Label: "API", Type: types.NodeCategoryAction}},
				{ID: "a2", Type: types.NodeTypeAPICall, Data: types.NodeData{Label: "API", Type: types.NodeCategoryAction}},
			},
			Edges: []types.Edge{
				{ID: "e1", Source: "t1", Target: "a1"},
				{ID: "e2", Source: "a1", Target: "a2"},
				{ID: "e3", Source: "a2", Target: "a1"},
			},
		})

		h, err := f.orch.Start(context.Background(), agent.ID, "user-1")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		h.Wait()

		exec, _ := f.execs.Get(context.Background(), h.ExecutionID)
		if exec.Status != types.ExecutionStatusFailed {
			t.Fatalf("status = %q, want failed", exec.Status)
		}
		if !strings.Contains(exec.Error, "cycle") {
			t.Errorf("error does not mention the cycle: %q", exec.Error)
		}
	})

	t.Run("failing step still completes the run", func(t *testing.T) {
		agents := agentstore.NewMemoryStore()
		execs := execstore.NewMemoryStore(nil)
		notifier := &failingSendNotifier{}
		interp := interpreter.New(execs, notifier, &integrations.StaticSheetReader{}, nil)
		infer := &stubInference{response: `{"steps":[{"action":"Send report","type":"email"}],"summary":"daily email"}`}
		orch := New(agents, execs, planner.New(infer), interp, infer, nil)

		agent, err := agents.Create(context.Background(), &types.Agent{
			Name:        "Flaky",
			UserID:      "user-1",
			Description: "email me a report daily",
		})
		if err != nil {
			t.Fatalf("failed to create agent: %v", err)
		}

		h, err := orch.Start(context.Background(), agent.ID, "user-1")
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		h.Wait()

		exec, _ := execs.Get(context.Background(), h.ExecutionID)
		if exec.Status != types.ExecutionStatusCompleted {
			t.Fatalf("status = %q, want completed despite the failed step", exec.Status)
		}

		var sawError bool
		for _, entry := range exec.Logs {
			if entry.Level == types.LogLevelError {
				sawError = true
			}
		}
		if !sawError {
			t.Error("expected an error log entry from the failed step")
		}
	})
}

type failingSendNotifier struct{}

func (n *failingSendNotifier) Send(context.Context, string, string) error {
	return errors.New("smtp relay rejected the message")
}

func TestRunAdhoc(t *testing.T) {
	t.Run("returns raw inference output", func(t *testing.T) {
		f := newFixture(t, &stubInference{response: "plain text answer, not a plan"})

		result, err := f.orch.RunAdhoc(context.Background(), "what is the weather")
		if err != nil {
			t.Fatalf("RunAdhoc failed: %v", err)
		}
		if result.Output != "plain text answer, not a plan" {
			t.Errorf("output = %q", result.Output)
		}
		if result.Timestamp.IsZero() {
			t.Error("timestamp must be set")
		}
	})

	t.Run("propagates inference errors", func(t *testing.T) {
		f := newFixture(t, &stubInference{err: errors.New("boom")})

		if _, err := f.orch.RunAdhoc(context.Background(), "anything"); err == nil {
			t.Fatal("expected error")
		}
	})
}
