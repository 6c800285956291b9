package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/pkg/queue"
)

type JobHandler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

func NewJobHandler(inspector *asynq.Inspector, logger *slog.Logger) *JobHandler {
	return &JobHandler{inspector: inspector, logger: logger}
}

type QueueStatsResponse struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// Stats handles GET /api/v1/jobs/stats and reports per-queue counters.
func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	queues := []string{queue.QueueSync, queue.QueueWebhooks, queue.QueueReports}
	response := make([]QueueStatsResponse, 0, len(queues))

	for _, q := range queues {
		info, err := h.inspector.GetQueueInfo(q)
		if err != nil {
			// A queue that has never seen a task does not exist yet.
			continue
		}
		response = append(response, QueueStatsResponse{
			Queue:     q,
			Size:      info.Size,
			Pending:   info.Pending,
			Active:    info.Active,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/jobs/{queue}/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")
	taskID := chi.URLParam(r, "id")

	info, err := h.inspector.GetTaskInfo(queueName, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		h.logger.Error("task lookup failed", "queue", queueName, "task_id", taskID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load task"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        info.ID,
		"queue":     info.Queue,
		"type":      info.Type,
		"state":     info.State.String(),
		"retried":   info.Retried,
		"max_retry": info.MaxRetry,
		"last_err":  info.LastErr,
	})
}

// Cancel handles DELETE /api/v1/jobs/{queue}/{id}. Pending tasks are
// deleted; active ones get a cancellation signal.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")
	taskID := chi.URLParam(r, "id")

	err := h.inspector.DeleteTask(queueName, taskID)
	if err == nil {
		writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Task deleted"})
		return
	}
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
		return
	}

	if cancelErr := h.inspector.CancelProcessing(taskID); cancelErr == nil {
		writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Cancellation requested"})
		return
	}

	h.logger.Error("task cancellation failed", "queue", queueName, "task_id", taskID, "error", err)
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to cancel task"})
}
