package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/keygate/license-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for license use-cases.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers the license HTTP routes and middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/license/v1", func(r chi.Router) {
		r.Post("/activate", handler.activate)
		r.Post("/deactivate", handler.deactivate)
		r.Post("/validate", handler.validate)
		r.Post("/heartbeat", handler.heartbeat)
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Route("/licenses", func(r chi.Router) {
			r.Post("/", handler.issueLicense)
			r.Get("/", handler.listLicenses)
			r.Get("/expiring", handler.listExpiringLicenses)
			r.Get("/{license_id}", handler.getLicense)
			r.Post("/{license_id}/revoke", handler.revokeLicense)
			r.Get("/{license_id}/activations", handler.listActivations)
		})
		r.Route("/users", func(r chi.Router) {
			r.Post("/", handler.createUser)
			r.Get("/{user_id}", handler.getUser)
			r.Post("/{user_id}/verify", handler.verifyUser)
			r.Post("/{user_id}/activate", handler.activateUser)
			r.Post("/{user_id}/block", handler.blockUser)
			r.Post("/{user_id}/unblock", handler.unblockUser)
			r.Delete("/{user_id}", handler.deleteUser)
		})
	})

	return r
}
