package planner

import (
	"reflect"
	"testing"

	"github.com/flexinfer/agentflow/pkg/types"
)

func TestDetectTriggers(t *testing.T) {
	cases := []struct {
		description string
		want        []string
	}{
		{"forward my Gmail attachments", []string{"Email Trigger"}},
		{"run every morning", []string{"Schedule Trigger"}},
		{"alert me when the price drops", []string{"Event Trigger"}},
		{"post updates somewhere", []string{"Webhook Trigger"}},
		// Email rule is checked before the schedule rule.
		{"email me daily", []string{"Email Trigger"}},
	}
	for _, tc := range cases {
		got := DetectTriggers(tc.description)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("DetectTriggers(%q) = %v, want %v", tc.description, got, tc.want)
		}
	}
}

func TestDetectActions(t *testing.T) {
	cases := []struct {
		description string
		want        []string
	}{
		{"send an email report", []string{"Send Email"}},
		{"post to slack and summarize the thread", []string{"Slack Message", "AI Analysis"}},
		{"ping me on whatsapp", []string{"WhatsApp"}},
		{"track the stock price", []string{"Web Scraper"}},
		{"do the thing", []string{"Execute Action"}},
		// All matching rules fire, in rule order.
		{"send a slack alert and analyze the results", []string{"Send Email", "Slack Message", "AI Analysis"}},
	}
	for _, tc := range cases {
		got := DetectActions(tc.description)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("DetectActions(%q) = %v, want %v", tc.description, got, tc.want)
		}
	}
}

func TestDetectSchedule(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"run this daily", "Daily"},
		{"every day at noon", "Daily"},
		{"every sunday", "Weekly"},
		{"each morning", "9:00 AM"},
		{"in the evening", "8:00 PM"},
		{"at 8pm sharp", "8:00 PM"},
		{"whenever something happens", ScheduleRealTime},
	}
	for _, tc := range cases {
		if got := DetectSchedule(tc.description); got != tc.want {
			t.Errorf("DetectSchedule(%q) = %q, want %q", tc.description, got, tc.want)
		}
	}
}

func TestSynthesize(t *testing.T) {
	t.Run("bare description yields lone webhook trigger", func(t *testing.T) {
		nodes, edges := Synthesize("do something")
		if len(nodes) != 1 {
			t.Fatalf("expected 1 node, got %d", len(nodes))
		}
		if nodes[0].Type != types.NodeTypeWebhookTrigger {
			t.Errorf("trigger type = %q, want webhookTrigger", nodes[0].Type)
		}
		if len(edges) != 0 {
			t.Errorf("expected no edges, got %d", len(edges))
		}
		if nodes[0].Data.Config["schedule"] != ScheduleRealTime {
			t.Errorf("schedule = %v, want %q", nodes[0].Data.Config["schedule"], ScheduleRealTime)
		}
	})

	t.Run("daily email becomes schedule trigger plus send email", func(t *testing.T) {
		nodes, edges := Synthesize("email me daily and summarize my inbox")
		if len(nodes) != 3 {
			t.Fatalf("expected 3 nodes, got %d", len(nodes))
		}
		if nodes[0].Type != types.NodeTypeScheduleTrigger {
			t.Errorf("trigger type = %q, want scheduleTrigger", nodes[0].Type)
		}
		if nodes[0].Data.Config["schedule"] != "Daily" {
			t.Errorf("schedule = %v, want Daily", nodes[0].Data.Config["schedule"])
		}
		if nodes[1].ID != "action-email" || nodes[1].Type != types.NodeTypeSendEmail {
			t.Errorf("unexpected second node: %+v", nodes[1])
		}
		if nodes[2].ID != "action-ai" {
			t.Errorf("unexpected third node: %+v", nodes[2])
		}
		if len(edges) != 2 {
			t.Fatalf("expected 2 edges, got %d", len(edges))
		}
		if edges[0].Source != "trigger-1" || edges[0].Target != "action-email" {
			t.Errorf("first edge %s -> %s", edges[0].Source, edges[0].Target)
		}
		if edges[1].Source != "action-email" || edges[1].Target != "action-ai" {
			t.Errorf("second edge %s -> %s", edges[1].Source, edges[1].Target)
		}
	})

	t.Run("chain threads through every matched action", func(t *testing.T) {
		nodes, edges := Synthesize("when the api returns data, analyze it and send an email")
		var ids []string
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		want := []string{"trigger-1", "action-email", "action-ai", "action-api", "condition-1"}
		if !reflect.DeepEqual(ids, want) {
			t.Fatalf("node ids = %v, want %v", ids, want)
		}
		if len(edges) != len(nodes)-1 {
			t.Fatalf("expected %d edges, got %d", len(nodes)-1, len(edges))
		}
		for i, e := range edges {
			if e.Source != nodes[i].ID || e.Target != nodes[i+1].ID {
				t.Errorf("edge %d is %s -> %s, want %s -> %s", i, e.Source, e.Target, nodes[i].ID, nodes[i+1].ID)
			}
			if e.ID != "e-"+e.Source+"-"+e.Target {
				t.Errorf("edge id = %q", e.ID)
			}
		}
	})

	t.Run("condition node carries a default expression", func(t *testing.T) {
		nodes, _ := Synthesize("alert if the count changes")
		last := nodes[len(nodes)-1]
		if last.ID != "condition-1" || last.Type != types.NodeTypeIfElse {
			t.Fatalf("expected trailing condition node, got %+v", last)
		}
		if last.Data.Config["condition"] != "value > 0" {
			t.Errorf("condition = %v", last.Data.Config["condition"])
		}
	})

	t.Run("ai prompt embeds the description", func(t *testing.T) {
		nodes, _ := Synthesize("summarize my inbox")
		var ai *types.Node
		for i := range nodes {
			if nodes[i].ID == "action-ai" {
				ai = &nodes[i]
			}
		}
		if ai == nil {
			t.Fatal("no action-ai node synthesized")
		}
		if ai.Data.Config["prompt"] != "Analyze and summarize: summarize my inbox" {
			t.Errorf("prompt = %v", ai.Data.Config["prompt"])
		}
	})

	t.Run("synthesized graph plans cleanly", func(t *testing.T) {
		nodes, edges := Synthesize("every day fetch data from the api, analyze it and send an email")
		steps, err := FromGraph(nodes, edges)
		if err != nil {
			t.Fatalf("FromGraph failed on synthesized graph: %v", err)
		}
		if len(steps) != len(nodes)-1 {
			t.Errorf("expected %d steps, got %d", len(nodes)-1, len(steps))
		}
	})
}
