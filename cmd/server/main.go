package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dutywatch-backend/internal/config"
	"dutywatch-backend/internal/database"
	"dutywatch-backend/internal/handlers"
	"dutywatch-backend/internal/middleware"
	"dutywatch-backend/internal/repository"
	"dutywatch-backend/internal/router"
	"dutywatch-backend/internal/services"
	"dutywatch-backend/internal/websocket"
	"dutywatch-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting DutyWatch Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	sessionRepo := repository.NewDutySessionRepo(pool)
	logRepo := repository.NewHourlyLogRepo(pool)
	strikeRepo := repository.NewStrikeRepo(pool)

	// ──── Initialize Services ────
	clock := services.SystemClock()
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	notifier := services.NewRedisNotifier(redisClients.PubSub, redisClients.Queue)
	jobQueue := services.NewJobQueue(redisClients.Queue)

	strikeService := services.NewStrikeService(
		strikeRepo,
		userRepo,
		notifier,
		clock,
		cfg.WarningStrikeThreshold,
		cfg.SuspensionStrikeThreshold,
		cfg.SuspensionDays,
		cfg.StrikeDedupHours,
	)
	dutyService := services.NewDutyService(
		sessionRepo,
		logRepo,
		strikeService,
		strikeService,
		jobQueue,
		clock,
		cfg.MinDutyMinutes,
		cfg.MaxBreakMinutes,
	)
	cadenceService := services.NewCadenceService(
		sessionRepo,
		logRepo,
		strikeService,
		strikeService,
		clock,
		cfg.CadenceToleranceMinutes,
		cfg.MissedLogGapMinutes,
		cfg.LogEditWindowMinutes,
	)
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth, strikeService)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewDutySessionHandler(dutyService)
	logHandler := handlers.NewHourlyLogHandler(cadenceService, dutyService)
	strikeHandler := handlers.NewStrikeHandler(strikeService)
	userHandler := handlers.NewUserHandler(userRepo, strikeService)
	statsHandler := handlers.NewStatsHandler(pool)

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		cadenceService,
		emailService,
		userRepo,
		cfg.SuspensionStrikeThreshold,
		5,
	)
	workerPool.Start()
	log.Println("✓ Worker pool started (5 goroutines)")

	reminderScheduler := services.NewReminderScheduler(sessionRepo, notifier, redisClients.Queue, clock)
	reminderScheduler.Start()
	log.Println("✓ Reminder scheduler started")

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		sessionHandler,
		logHandler,
		strikeHandler,
		userHandler,
		statsHandler,
		wsHub,
		cfg.FrontendURL,
		cfg.AuthRateLimitPerMin,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		reminderScheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ DutyWatch Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
