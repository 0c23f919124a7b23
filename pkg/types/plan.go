package types

// Step is one unit of planned work. The Type tag is free-form external
// input: it comes back from the AI planner (model-controlled) or is mapped
// from user-entered graph nodes, so it is never trusted directly. Kind()
// folds it into the closed StepKind set the interpreter dispatches on.
type Step struct {
	Action  string `json:"action"`
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
	Status  string `json:"status,omitempty"`

	// Set when the step was derived from a graph node; used to label
	// result entries. Empty for AI-planned steps.
	NodeID    string `json:"nodeId,omitempty"`
	NodeLabel string `json:"nodeLabel,omitempty"`
}

// StepKind is the closed set of step types the interpreter understands.
// Anything outside the set maps to StepKindUnknown, which executes as a
// logged no-op: unknown step types never fail a run.
type StepKind int

const (
	StepKindUnknown StepKind = iota
	StepKindDataFetch
	StepKindEmail
	StepKindAnalysis
	StepKindAPICall
	StepKindAutomation
	StepKindCondition
)

// Step type tags recognized on the wire.
const (
	StepTypeDataFetch    = "data_fetch"
	StepTypeGoogleSheets = "google_sheets" // alias for data_fetch
	StepTypeEmail        = "email"
	StepTypeAnalysis     = "analysis"
	StepTypeAPICall      = "api_call"
	StepTypeAutomation   = "automation"
	StepTypeCondition    = "condition"
)

// Kind maps the free-form type tag onto the closed StepKind set.
func (s Step) Kind() StepKind {
	switch s.Type {
	case StepTypeDataFetch, StepTypeGoogleSheets:
		return StepKindDataFetch
	case StepTypeEmail:
		return StepKindEmail
	case StepTypeAnalysis:
		return StepKindAnalysis
	case StepTypeAPICall:
		return StepKindAPICall
	case StepTypeAutomation:
		return StepKindAutomation
	case StepTypeCondition:
		return StepKindCondition
	default:
		return StepKindUnknown
	}
}

// Plan is an ordered list of steps plus a summary, generated fresh for
// each execution and never persisted on its own.
type Plan struct {
	Steps   []Step `json:"steps"`
	Summary string `json:"summary"`
}
