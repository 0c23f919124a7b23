package planner

import (
	"strings"

	"github.com/flexinfer/agentflow/pkg/types"
)

// Keyword-driven intent detection. This is deliberately a table of
// substring rules, not a parser: rules are evaluated independently, no
// precedence or negation handling, first match wins within a
// single-valued category, and several action rules may all fire.

// keywordRule matches when any of its substrings occurs in the lowercased
// description.
type keywordRule struct {
	keywords []string
	value    string
}

func (r keywordRule) matches(text string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var triggerLabelRules = []keywordRule{
	{[]string{"email", "gmail"}, "Email Trigger"},
	{[]string{"every", "daily"}, "Schedule Trigger"},
	{[]string{"when", "if"}, "Event Trigger"},
}

var actionLabelRules = []keywordRule{
	{[]string{"email", "send"}, "Send Email"},
	{[]string{"slack", "alert"}, "Slack Message"},
	{[]string{"whatsapp"}, "WhatsApp"},
	{[]string{"summarize", "analyze"}, "AI Analysis"},
	{[]string{"track", "check"}, "Web Scraper"},
}

var scheduleRules = []keywordRule{
	{[]string{"daily", "every day"}, "Daily"},
	{[]string{"sunday", "monday"}, "Weekly"},
	{[]string{"morning"}, "9:00 AM"},
	{[]string{"8pm", "evening"}, "8:00 PM"},
}

// ScheduleRealTime is the schedule label when no schedule keyword matches.
const ScheduleRealTime = "Real-time"

// DetectTriggers returns the display label of the trigger strategy.
// First match wins; the fallback is a webhook trigger.
func DetectTriggers(description string) []string {
	text := strings.ToLower(description)
	for _, rule := range triggerLabelRules {
		if rule.matches(text) {
			return []string{rule.value}
		}
	}
	return []string{"Webhook Trigger"}
}

// DetectActions returns the display labels of every matching action
// capability. All matching rules fire.
func DetectActions(description string) []string {
	text := strings.ToLower(description)
	var actions []string
	for _, rule := range actionLabelRules {
		if rule.matches(text) {
			actions = append(actions, rule.value)
		}
	}
	if len(actions) == 0 {
		return []string{"Execute Action"}
	}
	return actions
}

// DetectSchedule derives a human-readable schedule label from the
// description. First match wins.
func DetectSchedule(description string) string {
	text := strings.ToLower(description)
	for _, rule := range scheduleRules {
		if rule.matches(text) {
			return rule.value
		}
	}
	return ScheduleRealTime
}

// Synthesize builds a workflow graph from a natural-language description:
// one trigger node, one action node per matching action rule, and a
// trailing condition node when conditional keywords appear. The result is
// a simple chain in rule order.
func Synthesize(description string) ([]types.Node, []types.Edge) {
	text := strings.ToLower(description)

	var nodes []types.Node
	var edges []types.Edge
	y := 50.0

	triggerType := types.NodeTypeWebhookTrigger
	triggerLabel := "Webhook Trigger"
	if strings.Contains(text, "every") || strings.Contains(text, "daily") {
		triggerType = types.NodeTypeScheduleTrigger
		triggerLabel = "Schedule Trigger"
	}
	nodes = append(nodes, types.Node{
		ID:       "trigger-1",
		Type:     triggerType,
		Position: types.Position{X: 100, Y: y},
		Data: types.NodeData{
			Label: triggerLabel,
			Type:  types.NodeCategoryTrigger,
			Config: map[string]interface{}{
				"schedule": DetectSchedule(description),
			},
		},
	})
	lastID := "trigger-1"
	y += 100

	appendNode := func(node types.Node) {
		nodes = append(nodes, node)
		edges = append(edges, types.Edge{
			ID:     "e-" + lastID + "-" + node.ID,
			Source: lastID,
			Target: node.ID,
		})
		lastID = node.ID
		y += 100
	}

	if strings.Contains(text, "email") || strings.Contains(text, "send") {
		appendNode(types.Node{
			ID:       "action-email",
			Type:     types.NodeTypeSendEmail,
			Position: types.Position{X: 100, Y: y},
			Data: types.NodeData{
				Label: "Send Email",
				Type:  types.NodeCategoryAction,
				Config: map[string]interface{}{
					"to":      "user@example.com",
					"subject": "Automated Email",
				},
			},
		})
	}

	if strings.Contains(text, "summarize") || strings.Contains(text, "analyze") {
		appendNode(types.Node{
			ID:       "action-ai",
			Type:     types.NodeTypeAIProcess,
			Position: types.Position{X: 100, Y: y},
			Data: types.NodeData{
				Label: "AI Process",
				Type:  types.NodeCategoryAction,
				Config: map[string]interface{}{
					"prompt": "Analyze and summarize: " + description,
				},
			},
		})
	}

	if strings.Contains(text, "api") || strings.Contains(text, "fetch") || strings.Contains(text, "get data") {
		appendNode(types.Node{
			ID:       "action-api",
			Type:     types.NodeTypeAPICall,
			Position: types.Position{X: 100, Y: y},
			Data: types.NodeData{
				Label: "API Call",
				Type:  types.NodeCategoryAction,
				Config: map[string]interface{}{
					"method": "GET",
				},
			},
		})
	}

	if strings.Contains(text, "if") || strings.Contains(text, "when") || strings.Contains(text, "alert if") {
		appendNode(types.Node{
			ID:       "condition-1",
			Type:     types.NodeTypeIfElse,
			Position: types.Position{X: 100, Y: y},
			Data: types.NodeData{
				Label: "If/Else",
				Type:  types.NodeCategoryCondition,
				Config: map[string]interface{}{
					"condition": "value > 0",
				},
			},
		})
	}

	return nodes, edges
}
