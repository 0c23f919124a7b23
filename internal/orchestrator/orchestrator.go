// Package orchestrator drives agent executions: it selects the planning
// mode, creates the execution record, runs the plan through the
// interpreter, and finalizes the record exactly once.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flexinfer/agentflow/internal/agentstore"
	"github.com/flexinfer/agentflow/internal/execstore"
	"github.com/flexinfer/agentflow/internal/inference"
	"github.com/flexinfer/agentflow/internal/interpreter"
	"github.com/flexinfer/agentflow/internal/metrics"
	"github.com/flexinfer/agentflow/internal/planner"
	"github.com/flexinfer/agentflow/pkg/types"
)

// Mode is the planning strategy selected for a run. The values are part of
// the execute API response.
type Mode string

const (
	// ModeSmartAI plans via the AI inference service from the agent's
	// free-text description.
	ModeSmartAI Mode = "smart-ai"
	// ModeWorkflow walks the agent's explicit node/edge graph.
	ModeWorkflow Mode = "workflow"
)

// descriptionModeThreshold is the description length above which an agent
// runs in smart-ai mode. At or below it the graph path runs.
const descriptionModeThreshold = 20

// ModeFor selects the planning mode for an agent.
func ModeFor(agent *types.Agent) Mode {
	if len(agent.Description) > descriptionModeThreshold {
		return ModeSmartAI
	}
	return ModeWorkflow
}

// plannerNodeID labels the aggregate plan result entry in smart-ai mode.
const plannerNodeID = "ai-planner"

// Handle identifies a started run. Wait blocks until the detached run
// goroutine finishes; it exists for tests and callers that need to join.
type Handle struct {
	ExecutionID string
	AgentName   string
	Mode        Mode

	done chan struct{}
}

// Wait blocks until the run has finalized its execution record.
func (h *Handle) Wait() {
	<-h.done
}

// Orchestrator coordinates stores, planners, and the interpreter. Safe for
// concurrent use; concurrent runs share no state beyond the stores.
type Orchestrator struct {
	agents  agentstore.Store
	execs   execstore.Store
	planner *planner.Planner
	interp  *interpreter.Interpreter
	infer   inference.Client
	logger  *slog.Logger
	tracer  trace.Tracer
}

func New(agents agentstore.Store, execs execstore.Store, p *planner.Planner, interp *interpreter.Interpreter, infer inference.Client, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		agents:  agents,
		execs:   execs,
		planner: p,
		interp:  interp,
		infer:   infer,
		logger:  logger,
		tracer:  otel.Tracer("agentflow/orchestrator"),
	}
}

// Start launches a run for the agent. The agent lookup happens before any
// execution record is created, so a missing agent leaves no trace. The run
// itself proceeds in a detached goroutine with no cancellation: once
// started, it runs to completion or failure.
func (o *Orchestrator) Start(ctx context.Context, agentID, userID string) (*Handle, error) {
	agent, err := o.agents.Get(ctx, agentID, userID)
	if err != nil {
		return nil, err
	}

	mode := ModeFor(agent)
	execID, err := o.execs.Create(ctx, agentID, userID)
	if err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	h := &Handle{
		ExecutionID: execID,
		AgentName:   agent.Name,
		Mode:        mode,
		done:        make(chan struct{}),
	}

	o.logger.Info("execution started",
		"execution_id", execID,
		"agent_id", agentID,
		"agent_name", agent.Name,
		"mode", string(mode))

	go func() {
		defer close(h.done)
		// Detached from the request context: the trigger call returns
		// immediately and must not cancel the run.
		runCtx, span := o.tracer.Start(context.Background(), "orchestrator.run",
			trace.WithAttributes(
				attribute.String("agent.id", agentID),
				attribute.String("execution.id", execID),
				attribute.String("run.mode", string(mode)),
			))
		defer span.End()

		if err := o.run(runCtx, execID, agent, mode); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Error("execution failed", "execution_id", execID, "error", err)
			return
		}
		o.logger.Info("execution completed", "execution_id", execID)
	}()

	return h, nil
}

// run executes one agent run end to end and finalizes the record. Any
// error returned here already finalized the execution as failed, except
// when finalize itself failed.
func (o *Orchestrator) run(ctx context.Context, execID string, agent *types.Agent, mode Mode) error {
	start := time.Now()
	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	runErr := o.runSteps(ctx, execID, agent, mode)

	status := types.ExecutionStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = types.ExecutionStatusFailed
		errMsg = runErr.Error()
	}

	metrics.RunsTotal.WithLabelValues(string(status), string(mode)).Inc()
	metrics.RunDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())

	// Finalize failure is fatal: it is the last chance to record outcome.
	if err := o.execs.Finalize(ctx, execID, status, errMsg); err != nil {
		metrics.StoreOperations.WithLabelValues("finalize", "error").Inc()
		return fmt.Errorf("finalize execution %s: %w", execID, err)
	}
	metrics.StoreOperations.WithLabelValues("finalize", "success").Inc()

	return runErr
}

// runSteps generates the plan and hands it to the interpreter. An error
// return fails the whole run; individual step failures never surface here.
func (o *Orchestrator) runSteps(ctx context.Context, execID string, agent *types.Agent, mode Mode) error {
	o.appendLog(ctx, execID, types.LogLevelInfo, "Starting smart agent execution")
	o.appendLog(ctx, execID, types.LogLevelInfo, fmt.Sprintf("Task: %s", agent.Description))

	var steps []types.Step

	switch mode {
	case ModeSmartAI:
		o.appendLog(ctx, execID, types.LogLevelInfo, "Delegating task to AI planning engine...")

		plan, err := o.planner.Generate(ctx, agent.Description)
		if err != nil {
			metrics.PlansTotal.WithLabelValues("ai", "error").Inc()
			o.appendLog(ctx, execID, types.LogLevelError, fmt.Sprintf("Execution failed: %v", err))
			return err
		}
		if plan.Summary == planner.FailedParseSummary {
			metrics.PlansTotal.WithLabelValues("ai", "degraded").Inc()
		} else {
			metrics.PlansTotal.WithLabelValues("ai", "ok").Inc()
		}

		o.appendLog(ctx, execID, types.LogLevelInfo, "AI engine generated execution plan")
		for _, step := range plan.Steps {
			o.appendLog(ctx, execID, types.LogLevelInfo, fmt.Sprintf("%s: %s", step.Action, step.Details))
		}

		if err := o.interp.Run(ctx, execID, plan.Steps); err != nil {
			return err
		}

		// One aggregate entry records the full plan, even when degraded
		// parsing produced an empty one.
		if err := o.execs.AppendResult(ctx, execID, types.ResultEntry{
			NodeID:    plannerNodeID,
			NodeType:  "smart-execution",
			NodeLabel: "AI Planner",
			Result:    plan,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			o.logger.Warn("append planner result failed", "execution_id", execID, "error", err)
		}
		return nil

	case ModeWorkflow:
		var err error
		steps, err = planner.FromGraph(agent.Nodes, agent.Edges)
		if err != nil {
			metrics.PlansTotal.WithLabelValues("graph", "error").Inc()
			o.appendLog(ctx, execID, types.LogLevelError, fmt.Sprintf("Execution failed: %v", err))
			return fmt.Errorf("generate plan: %w", err)
		}
		metrics.PlansTotal.WithLabelValues("graph", "ok").Inc()

		return o.interp.Run(ctx, execID, steps)

	default:
		return fmt.Errorf("unknown execution mode %q", mode)
	}
}

// AdhocResult is the outcome of a persistence-free run.
type AdhocResult struct {
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// RunAdhoc sends the prompt straight to the inference service and returns
// its raw output. No execution record is created and no steps run.
func (o *Orchestrator) RunAdhoc(ctx context.Context, prompt string) (*AdhocResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.adhoc")
	defer span.End()

	output, err := o.infer.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &AdhocResult{Output: output, Timestamp: time.Now().UTC()}, nil
}

// appendLog records a run-level log entry; store failures are diagnostics
// only.
func (o *Orchestrator) appendLog(ctx context.Context, execID string, level types.LogLevel, message string) {
	if err := o.execs.AppendLog(ctx, execID, level, message); err != nil {
		o.logger.Warn("append log failed", "execution_id", execID, "error", err)
	}
}
