// Package router assembles the HTTP surface: chat, documents, the ops
// dashboard, and the operational endpoints (health, readiness, metrics).
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/conversation"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/documents"
	httpmiddleware "github.com/Adithyanmurthy/Loan-Chatbot/internal/http/middleware"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/ops"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// Chat traffic is a human typing, so a small sustained rate with room for
// a burst of quick replies is plenty.
const (
	chatRatePerSecond = 5
	chatBurst         = 10
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *conversation.Handler
	DocumentsHandler   *documents.Handler
	OpsHandler         *ops.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ReadyCheck reports whether downstream dependencies are reachable.
	// Nil means readiness mirrors liveness.
	ReadyCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady(cfg.ReadyCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.ChatHandler != nil {
			api.With(httpmiddleware.RateLimit(chatRatePerSecond, chatBurst)).
				Mount("/chat", cfg.ChatHandler.Routes())
		}

		api.Route("/documents", func(docs chi.Router) {
			if cfg.ChatHandler != nil {
				docs.Post("/upload", cfg.ChatHandler.Upload)
			}
			if cfg.DocumentsHandler != nil {
				docs.Get("/{artifactID}", cfg.DocumentsHandler.HandleGet)
				docs.Get("/{artifactID}/download", cfg.DocumentsHandler.HandleDownload)
			}
		})

		if cfg.OpsHandler != nil {
			api.Mount("/ops", cfg.OpsHandler.Routes())
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleReady(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}
