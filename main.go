package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"igaming-lobby-system/handlers"
	"igaming-lobby-system/middleware"
	"igaming-lobby-system/models"
	"igaming-lobby-system/services"
	"igaming-lobby-system/workers"

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

	app := fiber.New()

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-Username",
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
		&models.Lobby{},
		&models.Player{},
		&models.PlayerPoints{},
		&models.PointHistory{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("LOBBY_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("LOBBY_SERVICE_TOKEN environment variable not set")
	}
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}

	userService := services.NewUserService(db)
	lobbyStore := services.NewLobbyStore(db)
	eventBus := services.NewLobbyEventBus()
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	lobbyService, err := services.NewLobbyService(userService, lobbyStore, eventBus)
	if err != nil {
		log.Fatal("failed to create lobby service:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewPlayerSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", serviceToken)
	go syncWorker.Start(ctx)

	archiver := workers.NewRoundArchiver(db)
	go archiver.Start(ctx)

	if err := lobbyService.StartNewRound(); err != nil {
		// A retry is already scheduled; the server still comes up.
		log.Printf("first round not started yet: %v", err)
	}

	handlers.SetupLobbyRoutes(app, lobbyService, userService, authClient)
	handlers.SetupUserRoutes(app, userService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Lobby rounds running (25s round, 5s cooldown)")
	log.Println("✅ Player sync worker running")
	log.Println("✅ Round archiver running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := lobbyService.Shutdown(); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
