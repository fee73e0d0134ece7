package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestContext)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/resources", apiHandler.ResourcesHandler)

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/me", apiHandler.MeHandler)

			r.Post("/session", apiHandler.StartSessionHandler)
			r.Get("/session/{sessionID}", apiHandler.GetSessionHandler)
			r.Post("/session/{sessionID}/end", apiHandler.EndSessionHandler)
			r.Post("/session/{sessionID}/message", apiHandler.PostMessageHandler)

			r.Get("/history", apiHandler.HistoryHandler)
		})
	})

	return r
}
