package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/tweeter-be/internal/api/handlers"
	"github.com/isdelr/tweeter-be/internal/auth"
	"github.com/isdelr/tweeter-be/internal/media"
	"github.com/isdelr/tweeter-be/internal/metrics"
	"github.com/isdelr/tweeter-be/internal/serializer"
	"github.com/isdelr/tweeter-be/internal/services"
	"github.com/isdelr/tweeter-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	MediaURL       string

	Tokens     *auth.TokenManager
	Users      services.UserServiceProvider
	Tweets     services.TweetServiceProvider
	Events     services.EventServiceProvider
	Serializer *serializer.Serializer
	Media      *media.Storage
	Hub        *websocket.Hub
	Ping       func(ctx context.Context) error
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(requestIDLogger)
	r.Use(middleware.RealIP)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens, deps.Serializer)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Serializer, deps.Media, deps.Hub)
	tweetHandler := handlers.NewTweetHandler(deps.Tweets, deps.Users, deps.Serializer, deps.Hub)
	eventHandler := handlers.NewEventHandler(deps.Events)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)
	healthHandler := handlers.NewHealthHandler(deps.Ping)

	requireAuth := deps.Tokens.Middleware()

	r.Get("/healthz", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())
	mountMedia(r, deps.MediaURL, deps.Media)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/token/refresh", authHandler.Refresh)
			r.With(requireAuth).Post("/logout", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			// WebSocket connection endpoint
			r.Get("/ws", wsHandler.Serve)
			r.Get("/activity", eventHandler.GetRecent)

			r.Route("/user", func(r chi.Router) {
				r.Get("/detail", userHandler.Detail)
				r.Put("/update-bio", userHandler.UpdateBio)
				r.Patch("/update-bio", userHandler.UpdateBio)
				r.Put("/update-profile-image", userHandler.UpdateProfileImage)
				r.Patch("/update-profile-image", userHandler.UpdateProfileImage)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/list", userHandler.List)
				r.Get("/{id}", userHandler.Get)
				r.Post("/{id}/follow", userHandler.ToggleFollow)
			})

			r.Route("/tweets", func(r chi.Router) {
				r.Get("/", tweetHandler.List)
				r.Post("/", tweetHandler.Create)
				r.Get("/following", tweetHandler.Following)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", tweetHandler.Get)
					r.Put("/", tweetHandler.Update)
					r.Patch("/", tweetHandler.Update)
					r.Delete("/", tweetHandler.Delete)
					r.Delete("/delete", tweetHandler.Delete)
					r.Post("/like", tweetHandler.Like)
					r.Post("/unlike", tweetHandler.Unlike)
				})
			})
		})
	})

	return r
}

// mountMedia serves uploaded files when the media URL is a local path.
func mountMedia(r chi.Router, mediaURL string, storage *media.Storage) {
	if storage == nil || !strings.HasPrefix(mediaURL, "/") {
		return
	}
	prefix := strings.TrimSuffix(mediaURL, "/")
	fs := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(storage.Root())))
	r.Get(prefix+"/*", fs.ServeHTTP)
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
