package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cleanup-game-system/config"
	"cleanup-game-system/handlers"
	"cleanup-game-system/middleware"
	"cleanup-game-system/models"
	"cleanup-game-system/services"
	"cleanup-game-system/utils"
	"cleanup-game-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	app := fiber.New(fiber.Config{
		AppName: "cleanup-game-system",
	})

	// Optional shared-token guard for gateway-fronted deployments
	app.Use(middleware.ServiceTokenMiddleware(cfg.ServiceToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Host-Key, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Optional session archive (Postgres) ---
	var archiver services.SessionArchiver
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database:", err)
		}
		if err := db.AutoMigrate(&models.SessionArchive{}, &models.FinalStanding{}); err != nil {
			log.Fatal("failed to migrate database:", err)
		}
		worker := workers.NewArchiveWorker(db)
		go worker.Start(ctx)
		archiver = worker
	} else {
		log.Println("⚠️  DATABASE_URL not set — session archive disabled")
	}

	// --- Bucket storage provider (shared junk drawer sessions) ---
	if err := utils.InitBucket(cfg.BucketAccountID, cfg.BucketAccessKey, cfg.BucketAccessSecret, cfg.BucketName, cfg.BucketPrefix); err != nil {
		log.Fatal("failed to initialize bucket provider:", err)
	}

	// --- Core: store, engine, coordinator ---
	sessionStore := services.NewSessionStore()
	statsEngine := services.NewStatsEngine()
	hub := services.NewBroadcaster(sessionStore, statsEngine, archiver)

	// Idle sessions get force-ended so abandoned lobbies don't pile up
	services.StartSweepScheduler(hub, sessionStore, cfg.SessionTTL)

	// --- Routes ---
	sessionHandler := handlers.NewSessionHandler(sessionStore, hub, cfg)
	eventsHandler := handlers.NewEventsHandler(hub)
	handlers.SetupSessionRoutes(app, sessionHandler, eventsHandler)
	handlers.SetupAuthRoutes(app, handlers.NewAuthHandler(hub, cfg))
	handlers.SetupFileRoutes(app, handlers.NewFilesHandler(sessionStore, hub))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	// Static frontend (lobby + game screens)
	app.Static("/", "./public")

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%d", cfg.Port)
	log.Printf("✅ Session sweeper running (TTL %s)", cfg.SessionTTL)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
