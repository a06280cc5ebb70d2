package documents

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// Handler serves artifact metadata and downloads.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the documents HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger.Component("documents.http")}
}

// Routes returns the handler's route tree, mounted under /api/documents.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{artifactID}", h.HandleGet)
	r.Get("/{artifactID}/download", h.HandleDownload)
	return r
}

// HandleGet returns artifact metadata.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "artifactID")
	artifact, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		h.logger.Error("artifact lookup failed", "artifact_id", id, "error", err)
		http.Error(w, "failed to load artifact", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(artifact)
}

// HandleDownload streams the letter content. Repeated downloads serve the
// stored bytes and bump the download counter; nothing is regenerated.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "artifactID")
	artifact, body, err := h.service.Content(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		h.logger.Error("artifact download failed", "artifact_id", id, "error", err)
		http.Error(w, "failed to load artifact", http.StatusInternalServerError)
		return
	}

	if _, err := h.service.RecordDownload(r.Context(), id); err != nil {
		h.logger.Warn("download counter update failed", "artifact_id", id, "error", err)
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
