package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"tradelic.app/cloud/internal/config"
	"tradelic.app/cloud/internal/logger"
	"tradelic.app/cloud/internal/ratelimit"
	"tradelic.app/cloud/models"
	"tradelic.app/cloud/storage"
)

type Server struct {
	Router  chi.Router
	Storage storage.Storage
	Config  *config.Config
	Version string
}

func NewServer(store storage.Storage, cfg *config.Config) *Server {
	s := &Server{
		Storage: store,
		Config:  cfg,
		Version: "dev",
	}

	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	r.Use(requestLogger)

	r.Get("/health", s.Health)

	r.Route("/api", func(r chi.Router) {
		// Robot endpoints: no API key, but rate limited per address.
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(limiter))
			r.Post("/activate", s.Activate)
			r.Post("/check", s.Check)
		})

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)

			r.Route("/licenses", func(r chi.Router) {
				r.Get("/", s.ListLicenses)
				r.Post("/", s.CreateLicense)
				r.Get("/{key}", s.GetLicense)
				r.Put("/{key}", s.UpdateLicense)
				r.Delete("/{key}", s.DeleteLicense)
				r.Post("/{key}/extend", s.ExtendLicense)
				r.Post("/{key}/block", s.BlockLicense)
			})

			r.Route("/statistics", func(r chi.Router) {
				r.Get("/", s.Statistics)
				r.Get("/events", s.Events)
			})
		})
	})

	s.Router = r
	return s
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.Version,
		Timestamp: time.Now(),
	})
}

// requireAPIKey guards the admin routes with the static key from config.
// The key may arrive as X-API-Key, a bearer token or an api_key query
// parameter.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			logger.Warn("request without API key rejected", map[string]interface{}{
				"remote_addr": clientIP(r),
				"path":        r.URL.Path,
			})
			writeError(w, http.StatusUnauthorized, "API_KEY_REQUIRED", "API key is required for this endpoint")
			return
		}

		if apiKey != s.Config.APIKey {
			logger.Warn("invalid API key", map[string]interface{}{
				"api_key":     apiKey,
				"remote_addr": clientIP(r),
			})
			writeError(w, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request handled", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

// logEvent writes an audit entry. Event logging must never break the
// operation that produced it, so failures only hit the log.
func (s *Server) logEvent(ctx context.Context, eventType, licenseKey, robotName, clientName, description, priority string, details map[string]string) {
	ev := &models.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		LicenseKey:  licenseKey,
		RobotName:   robotName,
		ClientName:  clientName,
		Description: description,
		Priority:    priority,
		Details:     details,
		CreatedAt:   time.Now(),
	}
	if details != nil {
		ev.IPAddress = details["ip"]
	}

	if err := s.Storage.InsertEvent(ctx, ev); err != nil {
		logger.Error("failed to record event", map[string]interface{}{
			"event_type": eventType,
			"key":        licenseKey,
			"error":      err.Error(),
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
