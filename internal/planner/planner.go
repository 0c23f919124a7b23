// Package planner turns an agent's intent into an ordered execution plan.
//
// Two independent strategies exist: FromGraph walks a persisted node/edge
// graph, Generate delegates to the AI inference service. The orchestrator
// selects between them; see orchestrator.ModeFor.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/flexinfer/agentflow/internal/inference"
	"github.com/flexinfer/agentflow/pkg/types"
)

// FailedParseSummary is the summary of the empty plan returned when the
// inference response cannot be parsed. A malformed response degrades to an
// empty plan instead of failing the run.
const FailedParseSummary = "Failed to parse AI response"

const promptTemplate = `
You are an AI automation agent. Understand this user automation task and generate a structured execution plan.
Task: %q
Return STRICT JSON ONLY. Format exactly like:
{
  "steps": [
    {
      "action": "What to do",
      "type": "api_call | data_fetch | email | analysis | automation",
      "details": "Explain specifically",
      "status": "planned"
    }
  ],
  "summary": "Short description"
}
`

// Planner generates execution plans from free-text task descriptions.
type Planner struct {
	client inference.Client
}

// New creates a planner backed by the given inference client.
func New(client inference.Client) *Planner {
	return &Planner{client: client}
}

// Generate builds the plan prompt for the task description, invokes the
// inference service, and parses the response. An unreachable service is an
// error; an unparseable response is not.
func (p *Planner) Generate(ctx context.Context, description string) (*types.Plan, error) {
	prompt := fmt.Sprintf(promptTemplate, description)

	response, err := p.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	return ParsePlan(response), nil
}

var fenceOpen = regexp.MustCompile("(?i)```json")

// ParsePlan parses an inference response into a Plan. The response is
// expected to be JSON, possibly wrapped in markdown code fences; fenced
// and unfenced input parse identically. Any parse failure yields the
// empty degraded plan, never an error.
func ParsePlan(text string) *types.Plan {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpen.ReplaceAllString(cleaned, "")
		cleaned = strings.ReplaceAll(cleaned, "```", "")
		cleaned = strings.TrimSpace(cleaned)
	}

	var plan types.Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return &types.Plan{Steps: []types.Step{}, Summary: FailedParseSummary}
	}
	if plan.Steps == nil {
		plan.Steps = []types.Step{}
	}

	return &plan
}
