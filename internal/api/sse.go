package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/flexinfer/agentflow/internal/execstore"
	"github.com/flexinfer/agentflow/internal/metrics"
	"github.com/flexinfer/agentflow/pkg/types"
)

// sseHeartbeatInterval keeps idle streams alive through proxies.
const sseHeartbeatInterval = 15 * time.Second

// StreamExecutionLogs handles GET /api/v1/executions/{id}/logs/stream.
// It streams the execution's log as Server-Sent Events: a replay of the
// entries recorded so far, then live entries until the run finalizes.
// Event ids are 1-based log positions; a Last-Event-ID header resumes the
// replay after that position.
func (h *Handlers) StreamExecutionLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	execID := mux.Vars(r)["id"]
	startTime := time.Now()

	requestID := GetRequestID(ctx, r)

	exec, err := h.execs.Get(ctx, execID)
	if err != nil {
		if errors.Is(err, execstore.ErrExecutionNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "execution not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to get execution", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "streaming not supported", nil)
		return
	}

	metrics.SSEConnectionsActive.Inc()
	defer metrics.SSEConnectionsActive.Dec()

	h.logger.Info("SSE connection opened",
		slog.String("execution_id", execID),
		slog.String("request_id", requestID),
		slog.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Resume after the last event the client saw.
	since := 0
	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		if n, err := strconv.Atoi(lastEventID); err == nil && n > 0 {
			since = n
		}
	}

	// Replay recorded entries.
	seq := since
	for i := since; i < len(exec.Logs); i++ {
		seq++
		h.writeLogEvent(w, flusher, &exec.Logs[i], seq)
	}

	if exec.Status.Terminal() {
		h.writeStatusEvent(w, flusher, exec)
		h.closeStream(execID, requestID, startTime, "already finalized")
		return
	}

	// Live tail. Entries appended between the snapshot above and this
	// subscription can be lost to this stream; the record itself is
	// always complete.
	logCh, cleanup, err := h.execs.Subscribe(ctx, execID)
	if err != nil {
		h.logger.Error("failed to subscribe to logs", "error", err, "execution_id", execID)
		return
	}
	defer cleanup()

	done := r.Context().Done()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.closeStream(execID, requestID, startTime, "client disconnect")
			return

		case entry, ok := <-logCh:
			if !ok {
				// Channel closed: the run finalized.
				if final, err := h.execs.Get(r.Context(), execID); err == nil {
					h.writeStatusEvent(w, flusher, final)
				} else {
					h.logger.Error("failed to get final execution", "error", err, "execution_id", execID)
				}
				h.closeStream(execID, requestID, startTime, "run finalized")
				return
			}
			seq++
			h.writeLogEvent(w, flusher, entry, seq)

		case <-heartbeat.C:
			h.writeComment(w, flusher, "heartbeat")
		}
	}
}

// writeLogEvent writes one log entry in SSE format and flushes.
func (h *Handlers) writeLogEvent(w http.ResponseWriter, flusher http.Flusher, entry *types.LogEntry, seq int) {
	if entry == nil {
		return
	}
	if _, err := w.Write(entry.ToSSE(strconv.Itoa(seq))); err != nil {
		h.logger.Error("failed to write SSE event", "error", err)
		return
	}
	flusher.Flush()
}

// writeStatusEvent writes the terminal status event that ends a stream.
func (h *Handlers) writeStatusEvent(w http.ResponseWriter, flusher http.Flusher, exec *types.Execution) {
	payload := map[string]interface{}{
		"status":   exec.Status,
		"duration": exec.Duration,
	}
	if exec.Error != "" {
		payload["error"] = exec.Error
	}
	data, _ := json.Marshal(payload)
	if _, err := fmt.Fprintf(w, "id: final\nevent: status\ndata: %s\n\n", data); err != nil {
		h.logger.Error("failed to write SSE status event", "error", err)
		return
	}
	flusher.Flush()
}

// writeComment writes an SSE comment (for heartbeats).
func (h *Handlers) writeComment(w http.ResponseWriter, flusher http.Flusher, comment string) {
	if _, err := w.Write([]byte(": " + comment + "\n\n")); err != nil {
		h.logger.Error("failed to write SSE comment", "error", err)
		return
	}
	flusher.Flush()
}

func (h *Handlers) closeStream(execID, requestID string, startTime time.Time, reason string) {
	h.logger.Info("SSE connection closed",
		slog.String("execution_id", execID),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(startTime)),
		slog.String("reason", reason),
	)
}
