package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/documents"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// defaultMaxUploadBytes bounds salary-slip uploads unless MAX_UPLOAD_BYTES
// overrides it.
const defaultMaxUploadBytes = 10 << 20 // 10 MB

var allowedUploadExtensions = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Handler wires HTTP requests to the conversation service. The transport is
// stateless: every request carries its session identifier and all state
// lives behind the SessionStore.
type Handler struct {
	service   Service
	store     SessionStore
	jobs      JobRecorder
	maxUpload int64
	logger    *logging.Logger
}

// HandlerOption tweaks handler construction.
type HandlerOption func(*Handler)

// WithUploadLimit caps salary-slip uploads at n bytes.
func WithUploadLimit(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewHandler creates a conversation handler. jobs may be nil when job
// tracking is not configured.
func NewHandler(service Service, store SessionStore, jobs JobRecorder, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if service == nil {
		panic("conversation: service cannot be nil")
	}
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		service:   service,
		store:     store,
		jobs:      jobs,
		maxUpload: defaultMaxUploadBytes,
		logger:    logger.Component("conversation.http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the chat API router, mounted under /api/chat.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", h.Message)
	r.Post("/reset", h.Reset)
	r.Get("/status/{sessionID}", h.Status)
	r.Get("/sessions", h.Sessions)
	r.Get("/jobs/{jobID}", h.Job)
	return r
}

// messageRequest is the wire form of one chat turn. Exactly one of message,
// form, or selection should be set; selection wins when several arrive.
type messageRequest struct {
	SessionID string           `json:"sessionId"`
	Message   string           `json:"message,omitempty"`
	Form      *FormSubmission  `json:"form,omitempty"`
	Selection *OptionSelection `json:"selection,omitempty"`
}

func (req messageRequest) toEvent() (Event, error) {
	switch {
	case req.Selection != nil:
		return OptionEvent(req.Selection.Index), nil
	case req.Form != nil:
		return FormEvent(*req.Form), nil
	case strings.TrimSpace(req.Message) != "":
		return TextEvent(req.Message), nil
	}
	return Event{}, fmt.Errorf("%w: message, form, or selection required", ErrMalformedEvent)
}

// Message handles POST /api/chat/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := req.toEvent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := h.service.HandleEvent(r.Context(), EventRequest{SessionID: req.SessionID, Event: event})
	if err != nil {
		if errors.Is(err, ErrMalformedEvent) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to process chat event", "session_id", req.SessionID, "error", err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, reply)
}

// Reset handles POST /api/chat/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	reply, err := h.service.HandleEvent(r.Context(), EventRequest{SessionID: req.SessionID, Event: ResetEvent()})
	if err != nil {
		h.logger.Error("failed to reset session", "session_id", req.SessionID, "error", err)
		http.Error(w, "Failed to reset session", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, reply)
}

// sessionStatus is the inspection view of one session.
type sessionStatus struct {
	SessionID      string        `json:"sessionId"`
	Stage          Stage         `json:"stage"`
	Collected      CollectedData `json:"collected"`
	PendingTasks   []string      `json:"pendingTasks,omitempty"`
	CompletedTasks []string      `json:"completedTasks,omitempty"`
	ErrorCount     int           `json:"errorCount"`
	CreatedAt      string        `json:"createdAt"`
	UpdatedAt      string        `json:"updatedAt"`
}

// Status handles GET /api/chat/status/{sessionID}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sctx, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, sessionStatus{
		SessionID:      sctx.SessionID,
		Stage:          sctx.Stage,
		Collected:      sctx.Collected,
		PendingTasks:   sctx.PendingTasks,
		CompletedTasks: sctx.CompletedTasks,
		ErrorCount:     len(sctx.Errors),
		CreatedAt:      sctx.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      sctx.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// Sessions handles GET /api/chat/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.Sessions(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"sessions": summaries,
		"count":    len(summaries),
	})
}

// Job handles GET /api/chat/jobs/{jobID}.
func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "job tracking not enabled", http.StatusNotFound)
		return
	}
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load job", "job_id", jobID, "error", err)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

// uploadResponse reports what the salary-slip upload produced: the extracted
// figure (or why extraction failed) and the workflow reply it triggered.
type uploadResponse struct {
	SessionID       string `json:"sessionId"`
	Filename        string `json:"filename"`
	MonthlySalary   int64  `json:"monthlySalary,omitempty"`
	ExtractionError string `json:"extractionError,omitempty"`
	Reply           *Reply `json:"reply"`
}

// Upload handles POST /api/documents/upload: validates the file, extracts a
// salary figure, and feeds a file event into the workflow. Extraction
// failure is not an HTTP error; the workflow replies asking for a better
// copy.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, h.uploadLimitMessage(), http.StatusBadRequest)
		return
	}

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedUploadExtensions[ext]; !ok {
		http.Error(w, "unsupported file type: only .pdf, .jpg, .jpeg, and .png are accepted", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, h.uploadLimitMessage(), http.StatusBadRequest)
		return
	}

	ref := uuid.NewString()
	resp := uploadResponse{SessionID: sessionID, Filename: header.Filename}

	extraction, err := documents.ExtractSalary(documents.TextFromUpload(data))
	if err != nil {
		resp.ExtractionError = err.Error()
	} else {
		resp.MonthlySalary = extraction.MonthlyIncome
	}

	reply, err := h.service.HandleEvent(r.Context(), EventRequest{
		SessionID: sessionID,
		Event:     FileEvent(FileUpload{Ref: ref, Filename: header.Filename, MonthlySalary: resp.MonthlySalary}),
	})
	if err != nil {
		h.logger.Error("failed to process file upload", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to process upload", http.StatusInternalServerError)
		return
	}
	resp.Reply = reply

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) uploadLimitMessage() string {
	return fmt.Sprintf("file exceeds the %d MB limit", h.maxUpload>>20)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
