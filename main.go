package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emailbot-backend/config"
	"emailbot-backend/internal/api"
	"emailbot-backend/internal/audit"
	"emailbot-backend/internal/auth"
	"emailbot-backend/internal/cache"
	"emailbot-backend/internal/database"
	"emailbot-backend/internal/license"
	"emailbot-backend/internal/logging"
	"emailbot-backend/internal/monitor"
	"emailbot-backend/internal/screenshots"
	"emailbot-backend/internal/stats"
	"emailbot-backend/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		// No logger yet
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize structured logging
	logger := logging.New(logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
	})
	logger.Info().Msg("Structured logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve secrets from Vault when enabled
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize vault client")
		}

		secret, err := vaultClient.GetJWTSecret(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to fetch JWT secret from vault")
		}
		cfg.AuthConfig.JWTSecret = secret

		if dbPassword, err := vaultClient.GetDatabasePassword(ctx); err == nil && dbPassword != "" {
			cfg.DatabaseConfig.Password = dbPassword
		}

		logger.Info().Str("address", cfg.VaultConfig.Address).Msg("Vault secrets loaded")
	}

	// Initialize database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := database.NewRepository(db)

	// Redis-backed cache is optional; the server degrades to direct queries
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache unavailable, continuing without it")
			cacheService = nil
		} else {
			defer cacheService.Close()
			logger.Info().Str("address", cfg.RedisConfig.Address).Msg("Cache connected")
		}
	}

	// Services
	authService := auth.NewService(repo, auth.Config{
		JWTSecret:            cfg.AuthConfig.JWTSecret,
		AccessTokenDuration:  cfg.AuthConfig.AccessTokenDuration,
		RefreshTokenDuration: cfg.AuthConfig.RefreshTokenDuration,
		MinPasswordLength:    cfg.AuthConfig.MinPasswordLength,
	})

	licenseService := license.NewService(repo)
	statsService := stats.NewService(repo, logger)

	hub := monitor.NewHub()
	go hub.Run()

	monitorService := monitor.NewService(repo, cacheService, hub, cfg.MonitorConfig, logger)
	go monitorService.RunBroadcaster(ctx)

	screenshotService, err := screenshots.NewService(repo, cfg.StorageConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize screenshot storage")
	}

	auditRecorder := audit.NewRecorder(repo, logger)

	// Ensure the bootstrap admin account exists
	if err := auth.SeedAdminUser(ctx, repo, cfg.AuthConfig.AdminEmail, cfg.AuthConfig.AdminPassword); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed admin user")
	}

	// HTTP server
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
	}, api.Deps{
		Repo:              repo,
		AuthService:       authService,
		LicenseService:    licenseService,
		StatsService:      statsService,
		MonitorService:    monitorService,
		ScreenshotService: screenshotService,
		AuditRecorder:     auditRecorder,
		CacheService:      cacheService,
		Hub:               hub,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	logger.Info().
		Str("host", cfg.ServerConfig.Host).
		Int("port", cfg.ServerConfig.Port).
		Msg("Server started")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	// Flush queued audit entries before the database goes away
	auditRecorder.Close()

	logger.Info().Msg("Shutdown complete")
}
