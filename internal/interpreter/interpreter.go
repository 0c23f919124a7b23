// Package interpreter executes plan steps against external side-effect
// services, converting each outcome into log and result entries on the
// execution record.
package interpreter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flexinfer/agentflow/internal/execstore"
	"github.com/flexinfer/agentflow/internal/integrations"
	"github.com/flexinfer/agentflow/internal/metrics"
	"github.com/flexinfer/agentflow/pkg/types"
)

// Fixed email content for the minimal notification path. The recipient is
// deployment configuration, not step input.
const (
	emailSubject = "Automation Report"
	emailBody    = "This email is sent automatically by AI Agent"
)

// Interpreter runs plan steps strictly in order. A failing step yields one
// error-level log entry and execution proceeds to the next step; unknown
// step types are a logged no-op. Only the surrounding orchestration can
// fail a run, never an individual step.
type Interpreter struct {
	store    execstore.Store
	notifier integrations.Notifier
	sheets   integrations.SheetReader
	eval     *ExprEvaluator
	logger   *slog.Logger

	// SheetRange labels result entries from data fetch steps.
	SheetLabel string
}

func New(store execstore.Store, notifier integrations.Notifier, sheets integrations.SheetReader, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		store:      store,
		notifier:   notifier,
		sheets:     sheets,
		eval:       NewExprEvaluator(),
		logger:     logger,
		SheetLabel: "Sheet Data",
	}
}

// runState carries side effects visible to later steps of the same run.
type runState struct {
	rows [][]string
}

// Run executes every step in order. It never returns an error for
// individual step failures; the error return is reserved for future
// orchestration-level faults and is currently always nil.
func (in *Interpreter) Run(ctx context.Context, execID string, steps []types.Step) error {
	if len(steps) == 0 {
		in.appendLog(ctx, execID, types.LogLevelWarning, "No steps to execute")
		return nil
	}

	state := &runState{}
	for i := range steps {
		in.runStep(ctx, execID, steps[i], state)
	}
	return nil
}

// runStep executes one step with full failure isolation, including panics
// from integration code.
func (in *Interpreter) runStep(ctx context.Context, execID string, step types.Step, state *runState) {
	start := time.Now()
	status := "succeeded"

	defer func() {
		if r := recover(); r != nil {
			status = "failed"
			in.logger.Error("step panicked", "execution_id", execID, "step_type", step.Type, "panic", r)
			in.appendLog(ctx, execID, types.LogLevelError, fmt.Sprintf("Step failed: %v", r))
		}
		metrics.StepsTotal.WithLabelValues(step.Type, status).Inc()
		metrics.StepDuration.WithLabelValues(step.Type).Observe(time.Since(start).Seconds())
	}()

	switch step.Kind() {
	case types.StepKindDataFetch:
		if err := in.runDataFetch(ctx, execID, step, state); err != nil {
			status = "failed"
		}
	case types.StepKindEmail:
		if err := in.runEmail(ctx, execID); err != nil {
			status = "failed"
		}
	case types.StepKindCondition:
		if err := in.runCondition(ctx, execID, step, state); err != nil {
			status = "failed"
		}
	default:
		// Unknown and not-yet-automatable step types are a deliberate
		// no-op: unknown types never fail a run.
		status = "skipped"
		in.appendLog(ctx, execID, types.LogLevelInfo, fmt.Sprintf("Skipping action: %s", step.Type))
	}
}

func (in *Interpreter) runDataFetch(ctx context.Context, execID string, step types.Step, state *runState) error {
	in.appendLog(ctx, execID, types.LogLevelInfo, "Fetching sheet data...")

	rows, err := in.sheets.Read(ctx)
	if err != nil {
		in.appendLog(ctx, execID, types.LogLevelError, fmt.Sprintf("Sheet fetch failed: %v", err))
		return err
	}
	state.rows = rows

	in.appendLog(ctx, execID, types.LogLevelSuccess, "Sheet data fetched")

	nodeID := step.NodeID
	if nodeID == "" {
		nodeID = "sheet-reader"
	}
	nodeLabel := step.NodeLabel
	if nodeLabel == "" {
		nodeLabel = in.SheetLabel
	}
	in.appendResult(ctx, execID, types.ResultEntry{
		NodeID:    nodeID,
		NodeType:  "data",
		NodeLabel: nodeLabel,
		Result:    rows,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (in *Interpreter) runEmail(ctx context.Context, execID string) error {
	in.appendLog(ctx, execID, types.LogLevelInfo, "Sending email...")

	if err := in.notifier.Send(ctx, emailSubject, emailBody); err != nil {
		in.appendLog(ctx, execID, types.LogLevelError, fmt.Sprintf("Email failed: %v", err))
		return err
	}

	in.appendLog(ctx, execID, types.LogLevelSuccess, "Email sent successfully")
	return nil
}

func (in *Interpreter) runCondition(ctx context.Context, execID string, step types.Step, state *runState) error {
	expression := step.Details
	if expression == "" {
		in.appendLog(ctx, execID, types.LogLevelInfo, "Skipping empty condition")
		return nil
	}

	env := buildStepEnv(state)
	result, err := in.eval.EvaluateBool(expression, env)
	if err != nil {
		in.appendLog(ctx, execID, types.LogLevelError, fmt.Sprintf("Condition failed: %v", err))
		return err
	}

	in.appendLog(ctx, execID, types.LogLevelInfo, fmt.Sprintf("Condition %q evaluated to %t", expression, result))
	if step.NodeID != "" {
		in.appendResult(ctx, execID, types.ResultEntry{
			NodeID:    step.NodeID,
			NodeType:  "condition",
			NodeLabel: step.NodeLabel,
			Result:    result,
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

// buildStepEnv exposes run state to condition expressions: the rows from
// the most recent data fetch and their count as "value".
func buildStepEnv(state *runState) map[string]interface{} {
	return map[string]interface{}{
		"rows":  state.rows,
		"count": len(state.rows),
		"value": len(state.rows),
	}
}

// appendLog records a log entry, swallowing store failures. A logging
// failure must never abort a run already in progress.
func (in *Interpreter) appendLog(ctx context.Context, execID string, level types.LogLevel, message string) {
	if err := in.store.AppendLog(ctx, execID, level, message); err != nil {
		metrics.StoreOperations.WithLabelValues("append_log", "error").Inc()
		in.logger.Warn("append log failed", "execution_id", execID, "error", err)
		return
	}
	metrics.StoreOperations.WithLabelValues("append_log", "success").Inc()
}

func (in *Interpreter) appendResult(ctx context.Context, execID string, entry types.ResultEntry) {
	if err := in.store.AppendResult(ctx, execID, entry); err != nil {
		metrics.StoreOperations.WithLabelValues("append_result", "error").Inc()
		in.logger.Warn("append result failed", "execution_id", execID, "error", err)
		return
	}
	metrics.StoreOperations.WithLabelValues("append_result", "success").Inc()
}
