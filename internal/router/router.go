package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"dutywatch-backend/internal/handlers"
	"dutywatch-backend/internal/middleware"
	"dutywatch-backend/internal/models"
	"dutywatch-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.DutySessionHandler,
	logHandler *handlers.HourlyLogHandler,
	strikeHandler *handlers.StrikeHandler,
	userHandler *handlers.UserHandler,
	statsHandler *handlers.StatsHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	authRatePerMinute int,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (per-IP, per minute)
	authLimiter := middleware.NewRateLimiter(authRatePerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Duty Session Routes ────
		r.Route("/duty-sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", sessionHandler.History)
			r.Post("/start", sessionHandler.Start)
			r.Get("/active", sessionHandler.Active)
			r.Post("/{id}/end", sessionHandler.End)
			r.Get("/{id}/summary", sessionHandler.Summary)

			// Gap detection over a finished session's log trail
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleCoreTeam, models.RoleTeacher))
				r.Get("/{id}/missed-logs", logHandler.MissedLogsPreview)
				r.Post("/{id}/missed-logs/commit", logHandler.MissedLogsCommit)
			})
		})

		// ──── Hourly Log Routes ────
		r.Route("/hourly-logs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", logHandler.Submit)
			r.Get("/next-due", logHandler.NextDue)
			r.Put("/{id}", logHandler.Edit)
			r.Post("/{id}/break/start", logHandler.StartBreak)
			r.Post("/{id}/break/end", logHandler.EndBreak)
		})

		// ──── Strike Routes ────
		r.Route("/strikes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/mine", strikeHandler.ListMine)
			r.Get("/mine/count", strikeHandler.CountActive)
			r.Get("/{id}", strikeHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleCoreTeam, models.RoleTeacher))
				r.Post("/", strikeHandler.Create)
				r.Post("/{id}/resolve", strikeHandler.Resolve)
				r.Get("/user/{userID}", strikeHandler.ListByUser)
			})
		})

		// ──── User Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", userHandler.GetMe)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleCoreTeam, models.RoleTeacher))
				r.Put("/{userID}/role", userHandler.UpdateRole)
			})
		})

		// ──── Stats Routes ────
		r.Route("/stats", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", statsHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleCoreTeam, models.RoleTeacher))
				r.Get("/overview", statsHandler.Overview)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
