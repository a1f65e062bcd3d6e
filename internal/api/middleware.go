package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one line per request. Health probes and the docs page
// log at debug; event streams log when they open as well as when they end.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		stream := strings.HasPrefix(r.URL.Path, "/api/v1/runs/events") || strings.HasPrefix(r.URL.Path, "/api/v1/runs/ws")
		if stream {
			slog.Info("event stream opened", "path", r.URL.Path, "remote", r.RemoteAddr, "request_id", reqID)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if r.URL.Path == "/health" || r.URL.Path == "/docs" {
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", reqID,
		)
	})
}
