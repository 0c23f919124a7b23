package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubClient struct {
	response string
	err      error
	prompt   string
}

func (c *stubClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.response, c.err
}

func TestParsePlan(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		plan := ParsePlan(`{"steps":[{"action":"Fetch rows","type":"data_fetch","status":"planned"}],"summary":"fetch then report"}`)
		if len(plan.Steps) != 1 {
			t.Fatalf("expected 1 step, got %d", len(plan.Steps))
		}
		if plan.Steps[0].Action != "Fetch rows" {
			t.Errorf("expected action %q, got %q", "Fetch rows", plan.Steps[0].Action)
		}
		if plan.Summary != "fetch then report" {
			t.Errorf("expected summary %q, got %q", "fetch then report", plan.Summary)
		}
	})

	t.Run("json fenced", func(t *testing.T) {
		text := "```json\n{\"steps\":[{\"action\":\"Send report\",\"type\":\"email\"}],\"summary\":\"daily report\"}\n```"
		plan := ParsePlan(text)
		if len(plan.Steps) != 1 || plan.Steps[0].Type != "email" {
			t.Fatalf("fenced response did not parse: %+v", plan)
		}
	})

	t.Run("bare fence without language tag", func(t *testing.T) {
		text := "```\n{\"steps\":[],\"summary\":\"nothing to do\"}\n```"
		plan := ParsePlan(text)
		if plan.Summary != "nothing to do" {
			t.Fatalf("expected summary %q, got %q", "nothing to do", plan.Summary)
		}
	})

	t.Run("uppercase fence tag", func(t *testing.T) {
		text := "```JSON\n{\"steps\":[],\"summary\":\"ok\"}\n```"
		plan := ParsePlan(text)
		if plan.Summary != "ok" {
			t.Fatalf("expected summary %q, got %q", "ok", plan.Summary)
		}
	})

	t.Run("garbage degrades to empty plan", func(t *testing.T) {
		plan := ParsePlan("Sure! Here is your plan: first we will...")
		if plan.Summary != FailedParseSummary {
			t.Errorf("expected summary %q, got %q", FailedParseSummary, plan.Summary)
		}
		if plan.Steps == nil {
			t.Error("degraded plan must have non-nil steps")
		}
		if len(plan.Steps) != 0 {
			t.Errorf("degraded plan must be empty, got %d steps", len(plan.Steps))
		}
	})

	t.Run("missing steps normalized to empty slice", func(t *testing.T) {
		plan := ParsePlan(`{"summary":"no steps field"}`)
		if plan.Steps == nil {
			t.Error("steps must never be nil")
		}
		if plan.Summary != "no steps field" {
			t.Errorf("expected summary to survive, got %q", plan.Summary)
		}
	})
}

func TestPlannerGenerate(t *testing.T) {
	t.Run("embeds task in prompt and parses response", func(t *testing.T) {
		client := &stubClient{response: `{"steps":[{"action":"Check price","type":"api_call"}],"summary":"price watch"}`}
		p := New(client)

		plan, err := p.Generate(context.Background(), "track bitcoin price")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !strings.Contains(client.prompt, "track bitcoin price") {
			t.Errorf("prompt does not contain the task description: %q", client.prompt)
		}
		if len(plan.Steps) != 1 || plan.Summary != "price watch" {
			t.Errorf("unexpected plan: %+v", plan)
		}
	})

	t.Run("inference error is fatal", func(t *testing.T) {
		client := &stubClient{err: errors.New("connection refused")}
		p := New(client)

		plan, err := p.Generate(context.Background(), "anything")
		if err == nil {
			t.Fatal("expected error when inference is unreachable")
		}
		if plan != nil {
			t.Errorf("expected nil plan on error, got %+v", plan)
		}
	})

	t.Run("unparseable response is not an error", func(t *testing.T) {
		client := &stubClient{response: "I cannot help with that."}
		p := New(client)

		plan, err := p.Generate(context.Background(), "anything")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if plan.Summary != FailedParseSummary {
			t.Errorf("expected degraded plan, got summary %q", plan.Summary)
		}
	})
}
