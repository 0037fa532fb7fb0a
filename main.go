package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"trading-support-app/config"
	"trading-support-app/internal/api"
	"trading-support-app/internal/auth"
	"trading-support-app/internal/cache"
	"trading-support-app/internal/chat"
	"trading-support-app/internal/database"
	"trading-support-app/internal/device"
	"trading-support-app/internal/events"
	"trading-support-app/internal/logging"
	"trading-support-app/internal/notify"
	"trading-support-app/internal/session"
	"trading-support-app/internal/state"
	"trading-support-app/internal/vault"
	"trading-support-app/internal/wallet"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// Component logger for injected services
	zlevel, err := zerolog.ParseLevel(strings.ToLower(cfg.LoggingConfig.Level))
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	zlog := zerolog.New(os.Stdout).Level(zlevel).With().Timestamp().Logger()

	ctx := context.Background()

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Initialize Vault client (falls back to in-memory when disabled)
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("Failed to initialize vault client: %v", err)
	}

	// Secrets prefer Vault over environment
	jwtSecret := cfg.AuthConfig.JWTSecret
	if secret, err := vaultClient.GetSecret(ctx, vault.SecretJWT); err == nil && secret != "" {
		jwtSecret = secret
	}
	dbPassword := cfg.DatabaseConfig.Password
	if secret, err := vaultClient.GetSecret(ctx, vault.SecretDBPassword); err == nil && secret != "" {
		dbPassword = secret
	}
	adminPassword := cfg.AuthConfig.AdminPassword
	if secret, err := vaultClient.GetSecret(ctx, vault.SecretAdminPassword); err == nil && secret != "" {
		adminPassword = secret
	}

	// Initialize database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: dbPassword,
		Database: cfg.DatabaseConfig.Name,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := database.NewRepository(db)

	// Initialize redis cache (degrades to passthrough when unreachable)
	cacheService, err := cache.NewCacheService(cfg.RedisConfig)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheService.Close()

	// Initialize auth service and make sure an admin identity exists
	authConfig := auth.DefaultConfig()
	authConfig.JWTSecret = jwtSecret
	authConfig.TradingIDPrefix = cfg.AuthConfig.TradingIDPrefix
	authService := auth.NewService(repo, eventBus, cacheService, authConfig)

	if err := auth.SeedAdminUser(ctx, repo, cfg.AuthConfig.AdminEmail, adminPassword, cfg.AuthConfig.TradingIDPrefix); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	// Initialize the state mirror
	store := state.NewStore(repo, eventBus, zlog)
	if err := store.Load(ctx); err != nil {
		log.Fatalf("Failed to load state mirror: %v", err)
	}
	store.Start()
	logger.Info("State mirror loaded")

	// Initialize operational alerts
	alerts := notify.NewManager(cfg.NotificationConfig.Enabled)
	if cfg.NotificationConfig.Discord.Enabled {
		alerts.AddNotifier(notify.NewDiscordNotifier(notify.DiscordConfig{
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			Enabled:    cfg.NotificationConfig.Discord.Enabled,
		}))
		logger.Info("Discord alerts enabled")
	}

	// Domain services
	walletService := wallet.NewService(repo, store, eventBus, zlog)
	chatService := chat.NewService(repo, store, eventBus,
		cfg.ChatConfig.WelcomeMessage, cfg.ChatConfig.TypingTTL, zlog)

	// Device snapshot store and session manager
	deviceStore, err := device.NewStore(cfg.DeviceStoreConfig.Path,
		cfg.DeviceStoreConfig.Namespace, cfg.DeviceStoreConfig.QuotaBytes)
	if err != nil {
		log.Fatalf("Failed to open device store: %v", err)
	}
	sessionManager := session.NewManager(store, deviceStore, cacheService,
		eventBus, chatService.AdminID, zlog)
	sessionManager.Start()

	// Alert the support team about registrations
	eventBus.Subscribe(events.EventUsersChanged, func(event events.Event) {
		userID, _ := event.Data["user_id"].(string)
		if userID == "" {
			return
		}
		if u := store.UserByID(userID); u != nil && !u.IsAdmin {
			if err := alerts.SendSignup(u.ID, u.Name, u.TradingID); err != nil {
				logger.WithError(err).Warn("Failed to send signup alert")
			}
		}
	})

	// Periodically expire revoked refresh tokens
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := authService.CleanupExpiredTokens(cleanupCtx); err != nil {
				logger.WithError(err).Warn("Refresh token cleanup failed")
			}
			cancel()
		}
	}()

	// Initialize web server
	serverConfig := api.ServerConfig{
		Port:            cfg.ServerConfig.Port,
		Host:            cfg.ServerConfig.Host,
		ProductionMode:  cfg.ServerConfig.ProductionMode,
		StaticFilesPath: cfg.ServerConfig.StaticFilesPath,
	}

	server := api.NewServer(serverConfig, repo, eventBus, authService,
		store, walletService, chatService, sessionManager, alerts, zlog)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()

	logger.Info("Support backend started",
		"host", serverConfig.Host,
		"port", serverConfig.Port)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down web server")
	}

	logger.Info("Shutdown complete")
}
