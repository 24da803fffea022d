package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/playoff-app/playoff-backend/handlers"
	"github.com/playoff-app/playoff-backend/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Team       *handlers.TeamHandler
	Tournament *handlers.TournamentHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret []byte) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/verify", h.Auth.Verify)
		r.Post("/password/forgot", h.Auth.ForgotPassword)
		r.Post("/password/reset", h.Auth.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Delete("/account", h.Auth.DeleteAccount)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", h.Team.List)
		r.Get("/{teamName}", h.Team.Get)
		r.Get("/{teamName}/players", h.Team.ListMembers)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Team.Create)
			r.Post("/{teamName}/join", h.Team.Join)
			r.Delete("/{teamName}/leave", h.Team.Leave)
			r.Post("/{teamName}/playing", h.Team.SetPlaying)
			r.Put("/{teamName}/logo", h.Team.UploadLogo)
		})
	})

	router.Route("/players", func(r chi.Router) {
		r.Get("/{playerName}", h.Team.GetPlayer)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/location/{location}", h.Tournament.ListByLocation)
		r.Get("/{tournamentID}", h.Tournament.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Tournament.Create)
			r.Put("/{tournamentID}", h.Tournament.Update)
			r.Delete("/{tournamentID}", h.Tournament.Delete)
			r.Post("/{tournamentID}/join", h.Tournament.Join)
			r.Post("/{tournamentID}/unjoin", h.Tournament.Unjoin)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	return router
}
