package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flexinfer/agentflow/internal/agentstore"
	"github.com/flexinfer/agentflow/internal/config"
	"github.com/flexinfer/agentflow/internal/execstore"
	"github.com/flexinfer/agentflow/internal/orchestrator"
	"github.com/flexinfer/agentflow/internal/planner"
	"github.com/flexinfer/agentflow/internal/validator"
	"github.com/flexinfer/agentflow/pkg/types"
)

// maxBodyBytes caps request bodies read into memory.
const maxBodyBytes = 1 << 20

// defaultExecutionLimit is the history page size when ?limit= is absent.
const defaultExecutionLimit = 10

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	agents    agentstore.Store
	execs     execstore.Store
	orch      *orchestrator.Orchestrator
	validator *validator.Validator
	config    *config.Config
	logger    *slog.Logger
	limiter   *clientLimiter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(agents agentstore.Store, execs execstore.Store, orch *orchestrator.Orchestrator, v *validator.Validator, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		agents:    agents,
		execs:     execs,
		orch:      orch,
		validator: v,
		config:    cfg,
		logger:    logger,
		limiter:   newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
}

// userID resolves the owning user for a request: the X-User-ID header if
// present, the configured default otherwise. Agents and executions are
// always scoped to it.
func (h *Handlers) userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return h.config.DefaultUserID
}

// --- Health Endpoints ---

// Health handles the /health and /healthz endpoints.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready handles the /ready endpoint, checking dependencies.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, err := h.execs.AdapterInfo(ctx)
	if err != nil {
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "execution store unhealthy", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ready",
		"store":  info,
	})
}

// --- Agent Management ---

// CreateAgent handles POST /api/v1/agents
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body", err)
		return
	}

	if result := h.validator.ValidateAgentJSON(body); !result.Valid {
		h.respondValidation(w, r, result)
		return
	}

	var agent types.Agent
	if err := json.Unmarshal(body, &agent); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	agent.UserID = h.userID(r)

	created, err := h.agents.Create(ctx, &agent)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to create agent", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// ListAgents handles GET /api/v1/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agents, err := h.agents.List(ctx, h.userID(r))
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list agents", err)
		return
	}

	h.respondJSON(w, http.StatusOK, agents)
}

// GetAgent handles GET /api/v1/agents/{id}
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := mux.Vars(r)["id"]

	agent, err := h.agents.Get(ctx, agentID, h.userID(r))
	if err != nil {
		if errors.Is(err, agentstore.ErrAgentNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "agent not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to get agent", err)
		return
	}

	h.respondJSON(w, http.StatusOK, agent)
}

// UpdateAgent handles PUT /api/v1/agents/{id}
func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := mux.Vars(r)["id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body", err)
		return
	}

	if result := h.validator.ValidateAgentJSON(body); !result.Valid {
		h.respondValidation(w, r, result)
		return
	}

	var update types.Agent
	if err := json.Unmarshal(body, &update); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	agent, err := h.agents.Update(ctx, agentID, h.userID(r), &update)
	if err != nil {
		if errors.Is(err, agentstore.ErrAgentNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "agent not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to update agent", err)
		return
	}

	h.respondJSON(w, http.StatusOK, agent)
}

// DeleteAgent handles DELETE /api/v1/agents/{id}
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := mux.Vars(r)["id"]

	if err := h.agents.Delete(ctx, agentID, h.userID(r)); err != nil {
		if errors.Is(err, agentstore.ErrAgentNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "agent not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to delete agent", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SynthesizeAgentRequest is the request body for NL agent synthesis.
type SynthesizeAgentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SynthesizeAgent handles POST /api/v1/agents/synthesize. It turns a
// natural-language description into a persisted draft agent with a
// keyword-synthesized workflow graph.
func (h *Handlers) SynthesizeAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SynthesizeAgentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if req.Description == "" {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "description is required", errors.New("empty description"))
		return
	}

	name := req.Name
	if name == "" {
		name = req.Description
		if len(name) > 40 {
			name = name[:40]
		}
	}

	nodes, edges := planner.Synthesize(req.Description)
	agent := &types.Agent{
		UserID:      h.userID(r),
		Name:        name,
		Description: req.Description,
		Nodes:       nodes,
		Edges:       edges,
		Status:      types.AgentStatusDraft,
		Triggers:    planner.DetectTriggers(req.Description),
		Actions:     planner.DetectActions(req.Description),
		Schedule:    planner.DetectSchedule(req.Description),
	}

	created, err := h.agents.Create(ctx, agent)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to create agent", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// --- Execution ---

// ExecuteAgentResponse is the immediate response to an execute request.
// The run itself proceeds in the background; its outcome is visible only
// through the execution record.
type ExecuteAgentResponse struct {
	Message     string `json:"message"`
	AgentID     string `json:"agentId"`
	AgentName   string `json:"agentName"`
	ExecutionID string `json:"executionId"`
	Mode        string `json:"mode"`
	Status      string `json:"status"`
}

// ExecuteAgent handles POST /api/v1/agents/{id}/execute (and /run).
func (h *Handlers) ExecuteAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := mux.Vars(r)["id"]

	handle, err := h.orch.Start(ctx, agentID, h.userID(r))
	if err != nil {
		if errors.Is(err, agentstore.ErrAgentNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "agent not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to execute agent", err)
		return
	}

	h.respondJSON(w, http.StatusOK, ExecuteAgentResponse{
		Message:     "Agent execution started",
		AgentID:     agentID,
		AgentName:   handle.AgentName,
		ExecutionID: handle.ExecutionID,
		Mode:        string(handle.Mode),
		Status:      "running",
	})
}

// ExecuteAdhocRequest is the request body for a persistence-free run.
type ExecuteAdhocRequest struct {
	Prompt string `json:"prompt"`
}

// ExecuteAdhoc handles POST /api/v1/agents/execute-adhoc. The prompt goes
// straight to the inference service; no execution record is created.
func (h *Handlers) ExecuteAdhoc(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ExecuteAdhocRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if req.Prompt == "" {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "prompt is required", errors.New("empty prompt"))
		return
	}

	result, err := h.orch.RunAdhoc(ctx, req.Prompt)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to execute ad-hoc agent", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// ListAgentExecutions handles GET /api/v1/agents/{id}/executions
func (h *Handlers) ListAgentExecutions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := mux.Vars(r)["id"]

	limit := defaultExecutionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	executions, err := h.execs.ListByAgent(ctx, agentID, h.userID(r), limit)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to fetch executions", err)
		return
	}

	h.respondJSON(w, http.StatusOK, executions)
}

// GetExecution handles GET /api/v1/executions/{id}
func (h *Handlers) GetExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	execID := mux.Vars(r)["id"]

	exec, err := h.execs.Get(ctx, execID)
	if err != nil {
		if errors.Is(err, execstore.ErrExecutionNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "execution not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to get execution", err)
		return
	}

	h.respondJSON(w, http.StatusOK, exec)
}

// --- Store Diagnostics ---

// StoreInfo handles GET /api/v1/store/info
func (h *Handlers) StoreInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, err := h.execs.AdapterInfo(ctx)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to get store info", err)
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// --- Helper Methods ---

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	h.logger.Error(message, "error", err, "status", status)
	var details map[string]interface{}
	if err != nil {
		details = map[string]interface{}{"cause": err.Error()}
	}
	writeErrorResponse(w, r, status, code, message, details)
}

func (h *Handlers) respondValidation(w http.ResponseWriter, r *http.Request, result *validator.ValidationResult) {
	writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "agent definition invalid", map[string]interface{}{
		"errors": result.Errors,
	})
}
