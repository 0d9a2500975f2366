// Package api implements the SES-compatible HTTP API of the twin: the legacy
// query API on POST /, the v2 send endpoint and the store inspection routes.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/template"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

// maxBodySize matches the 25 MB request limit of the real service.
const maxBodySize = 25 << 20

// Handler holds all API handler state.
type Handler struct {
	store     *store.MemoryStore
	mw        *twincore.Middleware
	templates *template.Resolver
	logger    *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, templates *template.Resolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, mw: mw, templates: templates, logger: logger}
}

// Routes mounts the SES routes, the store routes and the unknown-operation
// fallback. Only the store routes skip authentication.
func (h *Handler) Routes(r chi.Router) {
	// Store inspection (no auth required)
	r.Get("/", h.Index)
	r.Post("/clear-store", h.ClearStore)
	r.Get("/store", h.GetStore)
	r.Get("/health-check", h.HealthCheck)

	// SES API routes (AWS auth required)
	r.Group(func(r chi.Router) {
		r.Use(h.awsAuthMiddleware)
		r.Use(h.mw.FaultInjection)

		r.Post("/", h.Legacy)
		r.Post("/v2/email/outbound-emails", h.SendEmailV2)
	})

	// Unmatched requests are authenticated before they are rejected.
	unknown := h.awsAuthMiddleware(http.HandlerFunc(h.UnknownOperation))
	r.NotFound(unknown.ServeHTTP)
	r.MethodNotAllowed(unknown.ServeHTTP)
}

// awsAuthMiddleware only checks that an AWS-style authorization header is
// present. Signatures are never verified.
func (h *Handler) awsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			twincore.JSON(w, http.StatusForbidden, map[string]string{
				"message": "Missing Authentication Token",
				"detail":  "twin-ses: Must provide some type of authentication, even if only a mock access key",
			})
			return
		}
		if !strings.HasPrefix(auth, "AWS") {
			twincore.JSON(w, http.StatusBadRequest, map[string]string{
				"message": "Not Authorized",
				"detail":  "twin-ses: Authorization type must be AWS",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UnknownOperation handles every unmatched route.
func (h *Handler) UnknownOperation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("<UnknownOperationException/>"))
}
