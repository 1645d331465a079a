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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/suitelabs/conductor/internal/config"
	"github.com/suitelabs/conductor/internal/database"
	"github.com/suitelabs/conductor/internal/gateway"
	"github.com/suitelabs/conductor/internal/goals"
	"github.com/suitelabs/conductor/internal/handlers"
	"github.com/suitelabs/conductor/internal/ledger"
	"github.com/suitelabs/conductor/internal/logger"
	"github.com/suitelabs/conductor/internal/middleware"
	"github.com/suitelabs/conductor/internal/ratelimit"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables and defaults")
	}

	handlers.SetVersionInfo(Version, BuildTime, GitCommit)

	envCfg := config.NewEnvConfig()

	if err := logger.Setup(&logger.Config{
		LogDir:     envCfg.LogDir,
		LogFile:    envCfg.LogFile,
		Rotation:   envCfg.LogRotation,
		MaxSize:    envCfg.LogMaxSize,
		MaxBackups: envCfg.LogMaxBackups,
		MaxAge:     envCfg.LogMaxAge,
		Compress:   envCfg.LogCompress,
		Console:    envCfg.LogToConsole,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	if envCfg.AccessKey == "" {
		log.Printf("⚠️ ACCESS_KEY not set — the API is running open. Set one for any non-local deployment")
	}
	if envCfg.GeminiAPIKey == "" {
		log.Printf("⚠️ GEMINI_API_KEY not set — upstream calls will fail until it is configured")
	}

	// Database (SQLite by default, PostgreSQL via DATABASE_TYPE/DATABASE_URL)
	db, err := database.New(database.ConfigFromEnv())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Runtime config with hot reload (free tier limit, tier budgets,
	// endpoint limits)
	runtimeManager, err := config.NewRuntimeManager(envCfg.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to initialize runtime config: %v", err)
	}
	defer runtimeManager.Close()
	runtimeCfg := runtimeManager.GetConfig()

	// Core managers
	ledgerManager := ledger.NewManager(ledger.NewDBStore(db), runtimeCfg.FreeTierLimit)
	log.Printf("✅ Credit ledger initialized (free tier: %d actions)", runtimeCfg.FreeTierLimit)

	tracker := ratelimit.NewTracker(runtimeCfg.Tiers, ratelimit.NewDBStore(db), nil)
	log.Printf("✅ Tier rate limiter initialized (%d tiers)", len(runtimeCfg.Tiers))

	goalsManager := goals.NewManager(goals.NewDBStore(db))
	log.Printf("✅ Goals manager initialized")

	client := gateway.NewClient(envCfg.UpstreamURL, envCfg.GeminiAPIKey,
		time.Duration(envCfg.RequestTimeout)*time.Millisecond, tracker)

	// Endpoint throttling and brute-force protection
	apiRateLimiter := middleware.NewRateLimiterWithConfig(runtimeCfg.API)
	defer apiRateLimiter.Stop()
	authFailureLimiter := middleware.NewAuthFailureRateLimiterWithConfig(runtimeCfg.AuthFailure)
	defer authFailureLimiter.Stop()

	// Propagate hot config changes to the live components
	runtimeManager.SetOnChangeCallback(func(newCfg config.RuntimeConfig) {
		ledgerManager.SetFreeLimit(newCfg.FreeTierLimit)
		if err := tracker.UpdateLimits(newCfg.Tiers); err != nil {
			log.Printf("⚠️ Rejected tier limit update: %v", err)
		}
		apiRateLimiter.UpdateConfig(newCfg.API)
		authFailureLimiter.UpdateConfig(newCfg.AuthFailure)
	})

	if envCfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// Trusted proxies (prevents client IP spoofing through X-Forwarded-For)
	if len(envCfg.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(envCfg.TrustedProxies); err != nil {
			log.Printf("⚠️ Failed to set trusted proxies: %v", err)
		}
	} else if envCfg.IsProduction() {
		if err := r.SetTrustedProxies(nil); err != nil {
			log.Printf("⚠️ Failed to disable proxy trust: %v", err)
		}
	}

	r.Use(middleware.SecurityHeadersMiddleware())
	if envCfg.EnableCORS {
		r.Use(middleware.CORSMiddleware(envCfg))
	}
	r.Use(middleware.AuthMiddleware(envCfg, authFailureLimiter))

	r.GET("/health", handlers.HealthCheck())
	r.GET("/api/health/details", handlers.HealthCheckDetailed(envCfg, runtimeManager))

	planHandler := handlers.NewPlanHandler(client, ledgerManager)
	goalsHandler := handlers.NewGoalsHandler(goalsManager)
	creditsHandler := handlers.NewCreditsHandler(ledgerManager)
	rateLimitHandler := handlers.NewRateLimitHandler(tracker, runtimeManager)

	// Credit-gated upstream calls
	v1Group := r.Group("/v1")
	v1Group.Use(middleware.APIRateLimitMiddleware(apiRateLimiter))
	{
		v1Group.POST("/plan", planHandler.CreatePlan)
		v1Group.POST("/feedback", planHandler.ProcessFeedback)
		v1Group.POST("/ask", planHandler.AskClarification)
	}

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.APIRateLimitMiddleware(apiRateLimiter))
	{
		// Goal document
		apiGroup.GET("/goals", goalsHandler.GetDocument)
		apiGroup.GET("/goals/markdown", goalsHandler.GetMarkdown)
		apiGroup.PUT("/goals/markdown", goalsHandler.SetMarkdown)
		apiGroup.GET("/goals/stats", goalsHandler.GetStats)
		apiGroup.POST("/goals", goalsHandler.AddGoal)
		apiGroup.POST("/goals/complete", goalsHandler.CompleteGoal)
		apiGroup.POST("/goals/start", goalsHandler.StartGoal)
		apiGroup.POST("/goals/update", goalsHandler.UpdateGoal)
		apiGroup.POST("/goals/remove", goalsHandler.RemoveGoal)
		apiGroup.POST("/goals/reorder", goalsHandler.ReorderGoals)
		apiGroup.POST("/goals/sections/:id/toggle", goalsHandler.ToggleSection)

		// Credits
		apiGroup.GET("/credits/:account", creditsHandler.GetStats)
		apiGroup.POST("/credits/:account/topup", creditsHandler.TopUp)

		// Tier budgets and runtime config
		apiGroup.GET("/ratelimit/status", rateLimitHandler.GetStatus)
		apiGroup.POST("/ratelimit/reset", rateLimitHandler.Reset)
		apiGroup.GET("/config", rateLimitHandler.GetConfig)
		apiGroup.PUT("/config", rateLimitHandler.UpdateConfig)
	}

	addr := fmt.Sprintf(":%d", envCfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		fmt.Printf("\n🚀 Conductor started\n")
		fmt.Printf("📌 Version: %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("🕐 Build time: %s\n", BuildTime)
		}
		fmt.Printf("📍 API: http://localhost:%d/api\n", envCfg.Port)
		fmt.Printf("💚 Health: GET /health\n")
		fmt.Printf("📊 Environment: %s\n\n", envCfg.Env)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🔄 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Forced shutdown: %v", err)
	}
	log.Println("✅ Server stopped")
}
