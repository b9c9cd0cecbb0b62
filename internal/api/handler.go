// Package api exposes the HTTP surface: the query endpoint, dataset
// introspection, session reset, and the operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bauquery/bauquery/internal/config"
	"github.com/bauquery/bauquery/internal/nlq"
	"github.com/bauquery/bauquery/internal/observability"
	"github.com/bauquery/bauquery/internal/query/sqlite"
	"github.com/bauquery/bauquery/internal/schema"
	"github.com/bauquery/bauquery/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

// PipelineRunner is the query pipeline as the transport layer sees it.
type PipelineRunner interface {
	Run(ctx context.Context, sessionID, utterance string) (nlq.Outcome, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Pipeline          PipelineRunner
	Sessions          *session.Store
	Descriptor        *schema.Descriptor
	DatasetInfo       sqlite.DatasetInfo
	ModelName         string
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		connected := true
		if deps.Readiness != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			connected = deps.Readiness(ctx) == nil
			cancel()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":             "ok",
			"service":            cfg.Service.Name,
			"database_connected": connected,
		})
	})

	mux.HandleFunc("GET /api/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	protected.HandleFunc("GET /api/info", func(w http.ResponseWriter, _ *http.Request) {
		handleInfo(cfg, deps, w)
	})
	protected.HandleFunc("GET /api/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	protected.HandleFunc("POST /api/session/reset", func(w http.ResponseWriter, r *http.Request) {
		handleSessionReset(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /api/query", protectedHandler)
	mux.Handle("GET /api/info", protectedHandler)
	mux.Handle("GET /api/schema", protectedHandler)
	mux.Handle("POST /api/session/reset", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func handleInfo(cfg config.Config, deps Dependencies, w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": cfg.Service.Name,
		"model":   deps.ModelName,
		"dataset": deps.DatasetInfo,
	})
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Descriptor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema descriptor is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":      deps.Descriptor.Tables,
		"views":       deps.Descriptor.Views,
		"categories":  deps.Descriptor.Categories,
		"story_codes": deps.Descriptor.StoryCodes,
	})
}

// CheckDatabase verifies the dataset is reachable.
func CheckDatabase(ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New("database is not configured")
		}
		return ping(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
