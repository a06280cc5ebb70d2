package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/conversation"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

const defaultFunnelWindow = 7 * 24 * time.Hour

// SessionLister is the slice of the session store the dashboard reads.
type SessionLister interface {
	Sessions(ctx context.Context) ([]conversation.SessionSummary, error)
}

// SessionStats counts live sessions by stage.
type SessionStats struct {
	Active  int            `json:"active"`
	ByStage map[string]int `json:"by_stage,omitempty"`
}

// Dashboard is the operations overview response.
type Dashboard struct {
	GeneratedAt     string        `json:"generated_at"`
	Sessions        SessionStats  `json:"sessions"`
	Funnel          *Funnel       `json:"funnel,omitempty"`
	DecisionLatency *LatencyStats `json:"decision_latency,omitempty"`
}

// Handler serves the operations dashboard. The funnel repository is
// optional: without a database the dashboard reports sessions and latency
// only.
type Handler struct {
	funnel   *FunnelRepository
	sessions SessionLister
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

// NewHandler creates the ops dashboard handler.
func NewHandler(funnel *FunnelRepository, sessions SessionLister, gatherer prometheus.Gatherer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		funnel:   funnel,
		sessions: sessions,
		gatherer: gatherer,
		logger:   logger.Component("ops.dashboard"),
	}
}

// Routes returns the handler's route tree, mounted under /api/ops.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/dashboard", h.GetDashboard)
	return r
}

// GetDashboard returns the operations overview.
// GET /api/ops/dashboard
// Query params:
//   - days: daily funnel window in days (optional, default 7, 0 disables)
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard := Dashboard{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}

	window := defaultFunnelWindow
	if days := r.URL.Query().Get("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			http.Error(w, `{"error": "invalid days, use a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		window = time.Duration(n) * 24 * time.Hour
	}

	if h.sessions != nil {
		summaries, err := h.sessions.Sessions(r.Context())
		if err != nil {
			h.logger.Error("failed to list sessions", "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			return
		}
		for _, s := range summaries {
			if dashboard.Sessions.ByStage == nil {
				dashboard.Sessions.ByStage = make(map[string]int)
			}
			dashboard.Sessions.ByStage[string(s.Stage)]++
			if !s.Stage.Terminal() {
				dashboard.Sessions.Active++
			}
		}
	}

	if h.funnel != nil {
		funnel, err := h.funnel.GetFunnel(r.Context(), window)
		if err != nil {
			h.logger.Error("failed to aggregate funnel", "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			return
		}
		dashboard.Funnel = funnel
	}

	latency, err := DecisionLatency(h.gatherer)
	if err != nil {
		h.logger.Warn("failed to gather decision latency", "error", err)
	} else {
		dashboard.DecisionLatency = latency
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dashboard); err != nil {
		h.logger.Error("failed to encode dashboard", "error", err)
	}
}
