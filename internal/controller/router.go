package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c *Controller) Mux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Get("/ws", c.gateway.ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(c.rateLimitMw)
			r.Post("/register", c.register)
			r.Post("/login", c.login)
			r.With(c.authMw).Get("/profile", c.getProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(c.rateLimitMw)
			r.Use(c.authMw)

			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", c.createRoom)
				r.Get("/", c.listPublicRooms)
				r.Get("/my-rooms", c.listHostedRooms)
				r.Get("/joined", c.listJoinedRooms)
				r.Route("/{room-id}", func(r chi.Router) {
					r.Get("/", c.getRoom)
					r.Put("/", c.updateRoom)
					r.Delete("/", c.deleteRoom)
					r.Post("/join", c.joinRoom)
					r.Post("/leave", c.leaveRoom)
					r.Get("/participants", c.listParticipants)
					r.Delete("/participants/{user-id}", c.removeParticipant)
					r.Get("/online", c.listOnline)
				})
			})

			r.Route("/streaming", func(r chi.Router) {
				r.Post("/validate-url", c.validateURL)
				r.Get("/metadata", c.getMetadata)
				r.Route("/rooms/{room-id}", func(r chi.Router) {
					r.Get("/state", c.getState)
					r.Put("/state", c.updateState)
					r.Post("/sync", c.syncState)
					r.Get("/events", c.listEvents)
				})
			})
		})
	})

	return r
}
