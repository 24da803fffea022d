package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playoff-app/playoff-backend/config"
	"github.com/playoff-app/playoff-backend/db"
	"github.com/playoff-app/playoff-backend/handlers"
	"github.com/playoff-app/playoff-backend/live"
	"github.com/playoff-app/playoff-backend/repositories"
	"github.com/playoff-app/playoff-backend/routes"
	"github.com/playoff-app/playoff-backend/services"
	"github.com/playoff-app/playoff-backend/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, logo uploads disabled")
	}

	var mailer services.EmailSender
	if cfg.SMTPConfigured() {
		mailer = services.NewEmailService(cfg)
		logger.Info("SMTP mailer initialized", slog.String("host", cfg.SMTPHost))
	} else {
		logger.Warn("SMTP not configured, OTP emails disabled")
	}

	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	txManager := repositories.NewSQLTxManager(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	authRepo := repositories.NewPostgresAuthRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(txManager, userRepo, authRepo, playerRepo, mailer, logger)
	membershipService := services.NewMembershipService(txManager, teamRepo, playerRepo, tournamentRepo, uploader, wsHub)
	tournamentService := services.NewTournamentService(txManager, tournamentRepo, teamRepo, playerRepo, userRepo, wsHub, logger)
	logger.Info("services initialized")

	router := routes.InitRoutes(routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService, []byte(cfg.JWTSecretKey)),
		Team:       handlers.NewTeamHandler(membershipService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		WebSocket:  handlers.NewWebSocketHandler(wsHub),
	}, []byte(cfg.JWTSecretKey))
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shut down gracefully")
		}
	}
}
