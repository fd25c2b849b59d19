package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/complaint-tracker/internal/config"
	"github.com/yourusername/complaint-tracker/internal/handler"
	"github.com/yourusername/complaint-tracker/internal/middleware"
	pgRepo "github.com/yourusername/complaint-tracker/internal/repository/postgres"
	redisRepo "github.com/yourusername/complaint-tracker/internal/repository/redis"
	"github.com/yourusername/complaint-tracker/internal/service"
	"github.com/yourusername/complaint-tracker/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories
	userRepo := pgRepo.NewUserRepo(db)
	complaintRepo := pgRepo.NewComplaintRepo(db)
	sessionRepo, err := redisRepo.NewSessionRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize SessionRepo: %v", err)
		os.Exit(1)
	}

	// Google
	googleClient, err := service.NewGoogleClient(cfg.Google)
	if err != nil {
		log.Printf("Failed to initialize Google client: %v", err)
		os.Exit(1)
	}
	idTokenVerifier, err := service.NewGoogleIDTokenVerifier(googleClient.ClientID(), cfg.Google.JWKSURL, cfg.Google.RequestTimeout)
	if err != nil {
		log.Printf("Failed to initialize Google ID token verifier: %v", err)
		os.Exit(1)
	}

	// Services
	sessionService, err := service.NewSessionService(sessionRepo, userRepo, cfg.Session.TTL)
	if err != nil {
		log.Printf("Failed to initialize SessionService: %v", err)
		os.Exit(1)
	}
	stateTokens, err := service.NewStateTokenManager(sessionRepo, cfg.Session.StateTTL)
	if err != nil {
		log.Printf("Failed to initialize StateTokenManager: %v", err)
		os.Exit(1)
	}
	authService, err := service.NewAuthService(userRepo, sessionService, stateTokens, googleClient, idTokenVerifier)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}

	var notifier service.Notifier = service.NoopNotifier{}
	if cfg.Email.ResendAPIKey != "" {
		resendNotifier, err := service.NewResendNotifier(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize Resend notifier: %v", err)
			os.Exit(1)
		}
		notifier = resendNotifier
	} else {
		log.Println("RESEND_API_KEY is not set, status change emails are disabled")
	}
	complaintService, err := service.NewComplaintService(complaintRepo, userRepo, notifier)
	if err != nil {
		log.Printf("Failed to initialize ComplaintService: %v", err)
		os.Exit(1)
	}

	// HTTP
	cookies := middleware.NewSessionCookies(cfg.Session)
	routes := handler.Routes{
		Auth:        handler.NewAuthHandler(authService, sessionService, complaintService, cookies),
		Complaints:  handler.NewComplaintHandler(complaintService, cookies, cfg.Uploads),
		Admin:       handler.NewAdminHandler(complaintService),
		Sessions:    middleware.NewSessionMiddleware(cookies, sessionService),
		RateLimiter: middleware.NewRateLimiter(redisClient),
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID())

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	if len(cfg.CORS.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	handler.RegisterRoutes(router, routes)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server exited properly")
}
