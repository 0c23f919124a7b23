// Package validator provides JSON schema validation for agent definitions.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flexinfer/agentflow/pkg/types"
)

// Validator validates agent create/update payloads before they reach the
// store.
type Validator struct {
	agentSchema *jsonschema.Schema
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult holds the result of a validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// New creates a new validator with the embedded agent schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("agent.json", strings.NewReader(agentSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add agent schema: %w", err)
	}

	agentSchema, err := compiler.Compile("agent.json")
	if err != nil {
		return nil, fmt.Errorf("compile agent schema: %w", err)
	}

	return &Validator{agentSchema: agentSchema}, nil
}

// ValidateAgentJSON validates a JSON-encoded agent payload: schema shape
// first, then edge endpoint integrity.
func (v *Validator) ValidateAgentJSON(data []byte) *ValidationResult {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)},
			},
		}
	}

	result := v.validate(v.agentSchema, payload)
	if !result.Valid {
		return result
	}

	var agent types.Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Path: "$", Message: err.Error()}},
		}
	}
	if errs := checkEdges(agent.Nodes, agent.Edges); len(errs) > 0 {
		return &ValidationResult{Valid: false, Errors: errs}
	}

	return &ValidationResult{Valid: true}
}

// checkEdges rejects edges referencing node ids that do not exist. The
// schema cannot express cross-field references, so this runs after it.
func checkEdges(nodes []types.Node, edges []types.Edge) []ValidationError {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}

	var errs []ValidationError
	for i, e := range edges {
		if !ids[e.Source] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/edges/%d/source", i),
				Message: fmt.Sprintf("edge references unknown node %q", e.Source),
			})
		}
		if !ids[e.Target] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/edges/%d/target", i),
				Message: fmt.Sprintf("edge references unknown node %q", e.Target),
			})
		}
	}
	return errs
}

// validate runs schema validation and converts errors.
func (v *Validator) validate(schema *jsonschema.Schema, data interface{}) *ValidationResult {
	err := schema.Validate(data)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	result := &ValidationResult{Valid: false}

	if verr, ok := err.(*jsonschema.ValidationError); ok {
		result.Errors = extractErrors(verr)
	} else {
		result.Errors = []ValidationError{
			{Path: "$", Message: err.Error()},
		}
	}

	return result
}

// extractErrors recursively extracts validation errors.
func extractErrors(verr *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	if verr.Message != "" {
		errors = append(errors, ValidationError{
			Path:    verr.InstanceLocation,
			Message: verr.Message,
		})
	}

	for _, cause := range verr.Causes {
		errors = append(errors, extractErrors(cause)...)
	}

	return errors
}

// Embedded JSON schema

const agentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "agent.json",
  "title": "Agent Definition",
  "description": "Schema for agentflow agent definitions",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1,
      "maxLength": 200,
      "description": "Human-readable agent name"
    },
    "description": {
      "type": "string",
      "description": "Free-text task description; drives smart-ai mode when long enough"
    },
    "status": {
      "type": "string",
      "enum": ["draft", "active", "paused"],
      "description": "Agent lifecycle state"
    },
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "data"],
        "properties": {
          "id": {
            "type": "string",
            "minLength": 1,
            "description": "Node identifier, unique within the agent"
          },
          "type": {
            "type": "string",
            "description": "Refined node type (scheduleTrigger, sendEmail, ...)"
          },
          "position": {
            "type": "object",
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            },
            "description": "Canvas position, display only"
          },
          "data": {
            "type": "object",
            "required": ["label", "type"],
            "properties": {
              "label": {"type": "string"},
              "type": {
                "type": "string",
                "enum": ["trigger", "action", "condition", "data"]
              },
              "config": {
                "type": "object",
                "description": "Free-form node configuration"
              }
            }
          }
        }
      },
      "description": "Workflow graph nodes"
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "id": {"type": "string"},
          "source": {
            "type": "string",
            "description": "Source node ID"
          },
          "target": {
            "type": "string",
            "description": "Target node ID"
          }
        }
      },
      "description": "Directed workflow edges"
    },
    "triggers": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Display labels of detected triggers"
    },
    "actions": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Display labels of detected actions"
    },
    "schedule": {
      "type": "string",
      "description": "Human-readable schedule label"
    }
  }
}`
