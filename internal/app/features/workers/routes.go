// internal/app/features/workers/routes.go
package workers

import "github.com/go-chi/chi/v5"

// Routes returns the JSON API router (mounted under /api).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Route("/farms/{farmID}", func(r chi.Router) {
		r.Get("/workers", h.list)
		r.Post("/workers", h.create)
		r.Get("/notifications", h.notifications)
		r.Post("/maintenance/sweep", h.sweep)
		r.Post("/maintenance/heal", h.heal)
	})

	r.Post("/workers/bulk-delete", h.bulkDelete)
	r.Route("/workers/{workerID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.edit)
		r.Delete("/", h.remove)
		r.Get("/timeline", h.timeline)
		r.Post("/reactivate", h.reactivate)
		r.Post("/transfer", h.transfer)
		r.Post("/items", h.allocate)
		r.Post("/items/return", h.giveBack)
	})

	r.Post("/notifications/{notificationID}/read", h.markRead)
	return r
}
