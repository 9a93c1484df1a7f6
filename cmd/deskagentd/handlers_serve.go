package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/deskagent/deskagent/internal/config"
	"github.com/deskagent/deskagent/internal/hostagent"
)

// runServe implements the serve command: load config, wire the daemon, run
// its HTTP surface until a shutdown signal arrives, then drain in-flight
// work within a bounded grace period.
func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	slog.Info("starting deskagentd", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	d, err := buildDaemon(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build daemon: %w", err)
	}

	housekeeper, err := d.startHousekeeping()
	if err != nil {
		return fmt.Errorf("failed to start housekeeping: %w", err)
	}
	defer func() { <-housekeeper.Stop().Done() }()

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	httpServer := &http.Server{Addr: addr, Handler: d.httpMux()}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("deskagentd HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, draining in-flight work")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if d.host.IsProcessing() {
		d.host.Cancel()
	}
	if err := d.closer(); err != nil {
		slog.Warn("browser driver shutdown error", "error", err)
	}
	if d.tracerShutdown != nil {
		if err := d.tracerShutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown error", "error", err)
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}

	slog.Info("deskagentd stopped gracefully")
	return nil
}

// httpMux builds the daemon's full route table.
func (d *daemon) httpMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", d.handleCreateTask)
	mux.HandleFunc("GET /tasks/{id}", d.handleGetTask)
	mux.HandleFunc("POST /tasks/{id}/resume", d.handleResumeTask)
	mux.HandleFunc("POST /tasks/{id}/pause", d.handlePauseTask)
	mux.HandleFunc("POST /tasks/{id}/cancel", d.handleCancelTask)
	mux.HandleFunc("POST /tasks/{id}/confirm", d.handleConfirmTask)
	mux.HandleFunc("GET /events", d.wsSink.ServeHTTP)
	mux.HandleFunc("GET /healthz", d.handleHealthz)
	mux.Handle("GET /metrics", promMetricsHandler())
	return mux
}

type createTaskRequest struct {
	Text        string  `json:"text"`
	TargetHwnds []int64 `json:"target_hwnds"`
}

type taskResponse struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	Iterations int    `json:"iterations,omitempty"`
	DurationS  float64 `json:"duration_s,omitempty"`
	Error      string `json:"error,omitempty"`
}

// handleCreateTask submits a task and runs it to completion in the request
// goroutine, mirroring ProcessTask's single-in-flight-task contract: the
// caller gets the final ProcessResult, and can poll GET /tasks/{id} or
// subscribe to GET /events for progress in the meantime.
func (d *daemon) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == "" {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("text is required"))
		return
	}

	taskID := uuid.NewString()
	if err := d.store.CreateTask(r.Context(), taskID, req.Text, req.TargetHwnds); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := d.host.ProcessTask(r.Context(), taskID, req.Text, req.TargetHwnds)
	if err != nil {
		writeJSONError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{
		TaskID:     result.TaskID,
		Status:     string(result.Status),
		Iterations: result.Iterations,
		DurationS:  result.DurationS,
	})
}

func (d *daemon) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := d.store.GetTask(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (d *daemon) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := d.host.Resume(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{TaskID: result.TaskID, Status: string(result.Status), Iterations: result.Iterations, DurationS: result.DurationS})
}

func (d *daemon) handlePauseTask(w http.ResponseWriter, r *http.Request) {
	if !d.host.IsProcessing() {
		writeJSONError(w, http.StatusConflict, fmt.Errorf("no task currently running"))
		return
	}
	d.host.Pause()
	w.WriteHeader(http.StatusAccepted)
}

func (d *daemon) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if !d.host.IsProcessing() {
		writeJSONError(w, http.StatusConflict, fmt.Errorf("no task currently running"))
		return
	}
	d.host.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

type confirmRequest struct {
	ActionID  string `json:"action_id"`
	Allowed   bool   `json:"allowed"`
	DecidedBy string `json:"decided_by"`
}

func (d *daemon) handleConfirmTask(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	ok := d.host.Confirmations().Decide(req.ActionID, hostagent.ConfirmDecision{Allowed: req.Allowed, DecidedBy: req.DecidedBy})
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("no pending confirmation %q", req.ActionID))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (d *daemon) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
