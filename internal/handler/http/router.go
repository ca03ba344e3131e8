package http

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/noaione/klibrarian/internal/handler/http/middleware"
)

// NewRouter wires the HTTP surface. Admin endpoints (create, list, delete,
// config) sit behind the shared-token middleware; the token fetch and apply
// endpoints are public so invitees can redeem.
func NewRouter(authToken, env, version string, authHandler AuthHandler, inviteHandler InviteHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "k-librarian"),
		slog.String("version", version),
		slog.String("env", env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/_/health"))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Route("/invite", func(r chi.Router) {
			r.Get("/info", inviteHandler.Info)

			// Invitee-facing endpoints
			r.Get("/{token}", inviteHandler.Get)
			r.Post("/{token}/apply", inviteHandler.Apply)

			// Admin endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.TokenAuth(authToken))
				r.Get("/", inviteHandler.List)
				r.Post("/", inviteHandler.Create)
				r.Delete("/{token}", inviteHandler.Delete)
				r.Get("/config", inviteHandler.Config)
			})
		})
	})

	return r
}
