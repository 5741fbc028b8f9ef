package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gioxx/trakt-multi-scrobbler/services/library"
)

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("http.response.encode_failed", "error", err)
	}
}

// jsonError sends a plain {"error": ...} body.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// refreshLibrary brings the snapshot up to date before a read. A failed
// refresh is logged and the previous snapshot keeps serving.
func refreshLibrary(ctx context.Context, lib *library.Service) {
	if err := lib.Refresh(ctx, false); err != nil {
		slog.Warn("http.refresh_failed", "error", err)
	}
}

// APIKeyMiddleware guards mutating requests with a static X-API-Key header.
// Reads pass through untouched and an empty key disables the check entirely.
func APIKeyMiddleware(key string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case key == "":
				next.ServeHTTP(w, r)
			case r.Method == http.MethodGet, r.Method == http.MethodHead, r.Method == http.MethodOptions:
				next.ServeHTTP(w, r)
			case subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(key)) == 1:
				next.ServeHTTP(w, r)
			default:
				jsonError(w, "unauthorized", http.StatusUnauthorized)
			}
		})
	}
}
