package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// Handler exposes the conversation engine over HTTP. Async turns go
// through the queue and are polled by job id; the sync endpoint runs
// the turn inline for the web widget and local tooling.
type Handler struct {
	publisher *Publisher
	jobs      JobRecorder
	engine    TurnProcessor
	logger    *logging.Logger
}

func NewHandler(publisher *Publisher, jobs JobRecorder, engine TurnProcessor, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		publisher: publisher,
		jobs:      jobs,
		engine:    engine,
		logger:    logger,
	}
}

type enqueueResponse struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Message handles POST /conversations/message: it records a pending
// job, enqueues the turn and returns 202 with the job id to poll.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil || h.jobs == nil {
		http.Error(w, "Async processing not configured", http.StatusServiceUnavailable)
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	job := &JobRecord{
		JobID:     jobID,
		SessionID: req.SessionID,
		Channel:   req.Channel,
		Request:   &req,
	}
	if err := h.jobs.PutPending(r.Context(), job); err != nil {
		h.logger.Error("failed to record pending job", "error", err)
		http.Error(w, "Failed to accept message", http.StatusInternalServerError)
		return
	}

	if err := h.publisher.EnqueueTurn(r.Context(), jobID, req); err != nil {
		h.logger.Error("failed to enqueue turn", "job_id", jobID, "error", err)
		http.Error(w, "Failed to accept message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, enqueueResponse{
		JobID:     jobID,
		SessionID: req.SessionID,
		Status:    string(JobStatusPending),
	})
}

// Job handles GET /conversations/jobs/{jobID}.
func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Async processing not configured", http.StatusServiceUnavailable)
		return
	}

	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		http.Error(w, "Missing job id", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load job", "job_id", jobID, "error", err)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

// Chat handles POST /conversations/chat: a synchronous turn whose
// reply is returned in the response body.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		http.Error(w, "Sync processing not configured", http.StatusServiceUnavailable)
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode chat request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Channel == "" {
		req.Channel = ChannelWidget
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.engine.ProcessTurn(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to process chat turn",
			"session_id", req.SessionID,
			"error", err,
		)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
