package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"naskahsync/config"
	docHandler "naskahsync/internal/document"
	"naskahsync/internal/document/service"
	"naskahsync/middleware"
	"naskahsync/pkg/logger"
	"naskahsync/socket"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup wires every route. db is nil when running on the in-memory store.
func Setup(cfg *config.Config, docService *service.DocumentService, db *sql.DB) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", health(db))

	auth := middleware.Auth([]byte(cfg.JWTSecret))
	wsOpts := socket.Options{MaxMessageBytes: int64(cfg.MaxContentBytes) + 4096}

	// WebSocket
	r.With(auth).Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())
		socket.ServeWs(docService, w, r, user, wsOpts)
	})

	// REST API
	h := docHandler.NewDocumentHandler(docService)
	r.Route("/api/documents", func(r chi.Router) {
		r.Use(auth)
		r.Use(chimw.RequestSize(int64(cfg.MaxContentBytes) + 4096))

		r.Post("/", h.CreateDocument)
		r.Get("/", h.GetDocuments)
		r.Get("/{id}", h.GetDocument)
		r.Put("/{id}/content", h.SaveDocument)
		r.Put("/{id}/name", h.RenameDocument)
		r.Post("/{id}/share", h.ShareDocument)
		r.Get("/{id}/chat", h.GetChat)
		r.Post("/{id}/chat", h.PostChat)
		r.Post("/{id}/typing", h.Typing)
		r.Get("/{id}/export", h.ExportDocument)
	})

	return r
}

func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		storage := "memory"
		if db != nil {
			storage = "postgres"
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logger.Sugar.Warnf("Health check: database ping failed: %v", err)
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    status,
			"storage":   storage,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
