package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cipher-match-system/handlers"
	"cipher-match-system/middleware"
	"cipher-match-system/models"
	"cipher-match-system/services"
	"cipher-match-system/utils"
	"cipher-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "cipher-match-system",
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Optional wallet context for every route; mutating routes re-check with required=true
	app.Use(middleware.WalletContextMiddleware(false))

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Wallet-Address",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Room{},
		&models.LeaderboardEntry{},
		&models.MatchEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// R2 archive is optional — without credentials the archiver stays off.
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 archive disabled: %v", err)
	}

	cfg := services.RegistryConfig{RematchPolicy: services.RematchReuseEscrow}
	if os.Getenv("REMATCH_POLICY") == "fresh" {
		cfg.RematchPolicy = services.RematchFreshStake
	}

	ledger := services.NewMemoryLedger()
	engine := services.NewDevComputeEngine()
	registry := services.NewRegistryService(cfg, ledger, engine)

	cache, err := services.NewLeaderboardCacheFromEnv()
	if err != nil {
		log.Printf("⚠️  Leaderboard cache disabled: %v", err)
	} else if cache != nil {
		registry.SetLeaderboardCache(cache)
		log.Println("✅ Redis leaderboard cache attached")
	}

	if os.Getenv("SEED_DEMO") == "true" {
		seedDemo(registry, ledger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirrorClient := workers.NewMirrorClient(db, registry)
	go workers.PollMirror(ctx, mirrorClient, 10*time.Second)

	archiver := workers.NewTimelineArchiver(registry)
	go workers.PollTimelineArchive(ctx, archiver, 30*time.Second)

	scheduler, err := registry.StartResolveScheduler(15 * time.Second)
	if err != nil {
		log.Fatal("failed to start resolve scheduler:", err)
	}
	defer func() { _ = scheduler.Shutdown() }()

	handlers.SetupRoomRoutes(app, registry)
	handlers.SetupDevRoutes(app, registry, engine)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ State mirror polling running (every 10s)")
	log.Println("✅ Resolve scheduler running (every 15s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}

// seedDemo funds two wallets and opens a demo room so a fresh dev stack has
// something to poke at.
func seedDemo(registry *services.RegistryService, ledger *services.MemoryLedger) {
	alice := services.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob := services.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	ledger.Deposit(alice, 1_000_000)
	ledger.Deposit(bob, 1_000_000)

	summary, err := registry.CreateRoom(alice, services.CreateRoomParams{
		Stake:                1000,
		MoveTimeoutSeconds:   300,
		RematchWindowSeconds: 600,
		RankingEnabled:       true,
		Label:                "demo arena",
		Attached:             1000,
	})
	if err != nil {
		log.Printf("⚠️  Demo seed failed: %v", err)
		return
	}
	log.Printf("🌱 Seeded demo room %d (%s), wallets %s / %s funded", summary.RoomID, summary.Slug, alice, bob)
}
