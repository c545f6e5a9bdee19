package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router assembles the HTTP surface of the document store.
func Router(h *Handler, rps float64, burst int) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rateLimit(rps, burst))

	r.Get("/ping", h.Ping)
	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)

	r.Route("/users/{uid}", func(r chi.Router) {
		r.Use(requireUser(h.secret))

		r.Post("/backup", h.Backup)
		r.Get("/{collection}", h.ListCollection)
		r.Put("/{collection}/{id}", h.PutDocument)
		r.Get("/{collection}/{id}", h.GetDocument)
	})

	return r
}
