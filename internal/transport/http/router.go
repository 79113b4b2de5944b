package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warbler/internal/handler"
	"warbler/internal/httputil"
	"warbler/internal/monitoring"
	"warbler/internal/session"
	authmw "warbler/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	Sessions *session.Manager
	Users    authmw.UserLoader
	Tokens   authmw.TokenParser

	AuthHandler    *handler.AuthHandler
	FeedHandler    *handler.FeedHandler
	UserHandler    *handler.UserHandler
	FollowHandler  *handler.FollowHandler
	MessageHandler *handler.MessageHandler
	LikeHandler    *handler.LikeHandler
	APIHandler     *handler.APIHandler

	CORSAllowedOrigins []string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(monitoring.InstrumentHandler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Browser-facing pages and forms
	r.Group(func(r chi.Router) {
		r.Use(authmw.LoadSession(cfg.Sessions, cfg.Users))
		r.Use(authmw.CSRF(cfg.Sessions))
		requireUser := authmw.RequireUser(cfg.Sessions)

		r.Get("/", cfg.FeedHandler.Home)

		r.Get("/signup", cfg.AuthHandler.SignupPage)
		r.Post("/signup", cfg.AuthHandler.Signup)
		r.Get("/login", cfg.AuthHandler.LoginPage)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Get("/logout", cfg.AuthHandler.Logout)

		r.Get("/users", cfg.UserHandler.List)
		r.Get("/users/{id}", cfg.UserHandler.Show)
		r.Get("/users/{id}/likes", cfg.LikeHandler.List)
		r.Get("/messages/{id}", cfg.MessageHandler.Show)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/users/{id}/following", cfg.FollowHandler.Following)
			r.Get("/users/{id}/followers", cfg.FollowHandler.Followers)
			r.Post("/users/follow/{id}", cfg.FollowHandler.Follow)
			r.Post("/users/stop-following/{id}", cfg.FollowHandler.Unfollow)

			r.Get("/users/profile/{id}", cfg.UserHandler.EditPage)
			r.Post("/users/profile/{id}", cfg.UserHandler.Update)
			r.Post("/users/delete", cfg.UserHandler.Delete)

			r.Get("/messages/new", cfg.MessageHandler.NewPage)
			r.Post("/messages/new", cfg.MessageHandler.Create)
			r.Post("/messages/{id}/delete", cfg.MessageHandler.Delete)

			r.Post("/users/add_like/{msgId}/{userId}", cfg.LikeHandler.AddLike)
			r.Post("/users/{id}/{msgId}", cfg.LikeHandler.Unlike)
		})
	})

	// JSON API for non-browser clients
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		r.Post("/token", cfg.APIHandler.Token)

		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.Tokens))

			r.Get("/feed", cfg.APIHandler.Feed)
			r.Post("/messages", cfg.APIHandler.CreateMessage)
			r.Delete("/messages/{id}", cfg.APIHandler.DeleteMessage)
			r.Post("/messages/{id}/like", cfg.APIHandler.ToggleLike)
			r.Post("/users/{id}/follow", cfg.APIHandler.Follow)
			r.Delete("/users/{id}/follow", cfg.APIHandler.Unfollow)
		})
	})

	return r
}
