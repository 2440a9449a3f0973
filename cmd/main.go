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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/courtflow/tournament-engine/brackets"
	"github.com/courtflow/tournament-engine/config"
	"github.com/courtflow/tournament-engine/db"
	"github.com/courtflow/tournament-engine/handlers"
	"github.com/courtflow/tournament-engine/repositories"
	api "github.com/courtflow/tournament-engine/routes"
	"github.com/courtflow/tournament-engine/services"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
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

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	broadcaster := handlers.NewHubBroadcaster(wsHub)
	logger.Info("WebSocket hub started")

	// Инициализация репозиториев
	transactor := repositories.NewSQLTransactor(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	divisionRepo := repositories.NewPostgresDivisionRepository(dbConn)
	phaseRepo := repositories.NewPostgresPhaseRepository(dbConn)
	unitRepo := repositories.NewPostgresUnitRepository(dbConn)
	encounterRepo := repositories.NewPostgresEncounterRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	courtRepo := repositories.NewPostgresCourtRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	durationService := services.NewDurationService(divisionRepo, phaseRepo)
	schedulingService := services.NewSchedulingService(
		transactor,
		eventRepo,
		divisionRepo,
		phaseRepo,
		encounterRepo,
		courtRepo,
		durationService,
		broadcaster,
		logger,
	)
	drawingService := services.NewDrawingService(
		transactor,
		eventRepo,
		divisionRepo,
		unitRepo,
		encounterRepo,
		broadcaster,
		logger,
	)
	progressionService := services.NewProgressionService(
		transactor,
		divisionRepo,
		encounterRepo,
		matchRepo,
		unitRepo,
		broadcaster,
		logger,
	)
	eventService := services.NewEventService(transactor, eventRepo, divisionRepo, broadcaster, logger)
	templateService := services.NewTemplateService(
		transactor,
		eventRepo,
		divisionRepo,
		unitRepo,
		encounterRepo,
		matchRepo,
		broadcaster,
		logger,
	)
	logger.Info("services initialized")

	// Инициализация обработчиков HTTP
	drawingHandler := handlers.NewDrawingHandler(drawingService, eventService)
	schedulingHandler := handlers.NewSchedulingHandler(schedulingService)
	scoreHandler := handlers.NewScoreHandler(progressionService)
	templateHandler := handlers.NewTemplateHandler(templateService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		drawingHandler,
		schedulingHandler,
		scoreHandler,
		templateHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
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

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
