package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/swaggo/http-swagger"

	"github.com/vntrieu/impostor/internal/httpapi/handler"
	"github.com/vntrieu/impostor/internal/ratelimit"
	"github.com/vntrieu/impostor/internal/websocket"

	_ "github.com/vntrieu/impostor/docs" // swag-generated docs
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Matches  handler.MatchService
	Profiles handler.ProfileService
	// Moderation is optional: it enables the admin routes and the ranked room allowlist.
	Moderation handler.Moderator
	Hub        *websocket.Hub
	DB         handler.Pinger

	// TokenSecret signs WebSocket and action tokens; if empty, create/join responses omit the token.
	TokenSecret []byte
	// RateLimiter is optional: if nil, no rate limiting is applied; otherwise writes are limited per user or IP.
	RateLimiter ratelimit.Limiter
	// AllowedOrigins for CORS; empty allows all.
	AllowedOrigins []string
}

// NewRouter builds the root HTTP router with basic middleware and health check.
//
// @title            Impostor API
// @version          1.0
// @description      API for social-deduction matches: lobbies, night actions, votes and the fixer window.
// @BasePath         /
// @SecurityDefinitions.apikey  BearerAuth
// @in               header
// @name             Authorization
func NewRouter(d Deps) http.Handler {
	if d.RateLimiter == nil {
		d.RateLimiter = &ratelimit.Noop{}
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", handler.Healthz(d.DB))

	// Swagger UI and generated OpenAPI doc (from swag comments)
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// Per-room push WebSocket (token auth)
	if d.Hub != nil {
		wsHandler := websocket.NewWSHandler(d.Hub, d.TokenSecret)
		r.Get("/ws/rooms/{room_id}", wsHandler.HandleRoomWebSocket)
	}

	// Writes are limited per token user, or per IP for anonymous callers
	limitWrites := RateLimitMiddleware(d.RateLimiter, RateLimitKey)

	matchHandler := handler.NewMatchHandler(d.Matches, d.TokenSecret)
	if d.Moderation != nil {
		matchHandler.WithModes(d.Moderation)
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(LimitRequestBody(DefaultMaxBodyBytes))
		r.Use(OptionalToken(d.TokenSecret))

		r.With(limitWrites).Post("/matches", matchHandler.CreateMatch)
		r.Route("/matches/{id}", func(r chi.Router) {
			r.Get("/", matchHandler.GetMatch)
			r.Get("/players", matchHandler.GetPlayers)
			r.Get("/round", matchHandler.GetRound)

			r.Group(func(r chi.Router) {
				r.Use(limitWrites)
				r.Post("/join", matchHandler.JoinMatch)
				r.Post("/start", matchHandler.StartMatch)
				r.Post("/end", matchHandler.EndMatch)
				r.Post("/night-actions", matchHandler.SubmitNightAction)
				r.Post("/tasks/complete", matchHandler.CompleteTask)
				r.Post("/fixer", matchHandler.SubmitFixerDecision)
				r.Post("/votes", matchHandler.SubmitVote)
			})
		})
		r.Get("/rooms/{room_id}/match", matchHandler.ActiveMatchForRoom)

		if d.Profiles != nil {
			userHandler := handler.NewUserHandler(d.Profiles)
			r.Get("/users/{id}", userHandler.GetUser)
			r.Get("/leaderboard", userHandler.Leaderboard)
		}

		if d.Moderation != nil {
			adminHandler := handler.NewAdminHandler(d.Moderation)
			r.Route("/admin", func(r chi.Router) {
				r.Use(limitWrites)
				r.Post("/bans", adminHandler.Ban)
				r.Delete("/bans/{user_id}", adminHandler.Unban)
				r.Put("/users/{id}/xp", adminHandler.SetXP)
			})
		}
	})

	return r
}

// DefaultRateLimiter returns an in-memory rate limiter: perMinute requests per minute per key.
// Returns nil when perMinute is 0, which disables limiting. For multi-instance, replace with a shared limiter.
func DefaultRateLimiter(perMinute int) ratelimit.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return ratelimit.NewInMemory(perMinute, time.Minute)
}
