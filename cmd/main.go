package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minecloud-platform/internal/api"
	"minecloud-platform/internal/api/middleware"
	"minecloud-platform/internal/chat"
	"minecloud-platform/internal/config"
	"minecloud-platform/internal/kafka"
	"minecloud-platform/internal/logger"
	"minecloud-platform/internal/service"
	"minecloud-platform/internal/storages/postgres"
)

// @title MineCloud Platform API
// @version 1.0
// @description API for the MineCloud simulated cloud mining platform

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Парсинг флагов командной строки
	configPath := flag.String("c", "", "Path to config file")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Валидация конфигурации
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	log := logger.New(cfg.Logger.Level)
	log.Info("Starting minecloud-platform service...")

	// Подключение к базе данных профилей
	dbConfig := &postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	storage, err := postgres.New(dbConfig, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer storage.Close()

	// Проверка подключения к БД
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := storage.Ping(ctx); err != nil {
		cancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	cancel()
	log.Info("Database connection established")

	// Подключение к хранилищу чата
	chatConfig := &chat.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		Collection:  cfg.Mongo.Collection,
		Timeout:     cfg.Mongo.Timeout,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		MinPoolSize: cfg.Mongo.MinPoolSize,
	}

	chatStore, err := chat.New(chatConfig, log)
	if err != nil {
		log.Fatalf("Failed to connect to chat storage: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := chatStore.Close(ctx); err != nil {
			log.Errorf("Failed to close chat storage: %v", err)
		}
	}()
	log.Info("Chat storage connection established")

	// Инициализация Kafka producer
	kafkaProducer := kafka.NewProducer(
		cfg.Kafka.Brokers,
		cfg.Kafka.Topic,
		cfg.Kafka.WithdrawalThreshold,
		log,
	)
	defer kafkaProducer.Close()

	// Создание сервисного слоя
	platformService := service.NewPlatformService(
		storage,
		chatStore,
		kafkaProducer,
		cfg,
		log,
	)
	log.Info("Platform service initialized")

	// Создание JWT middleware
	jwtMiddleware := middleware.NewJWTMiddleware(cfg.JWT.Secret, log)

	// Настройка роутера
	router := api.SetupRouter(platformService, jwtMiddleware, cfg.JWT, log, cfg.Server.GinMode)

	// Создание HTTP сервера
	srv := &http.Server{
		Addr:         ":" + cfg.Server.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Запуск HTTP сервера в горутине
	go func() {
		log.Infof("HTTP server is listening on port %s", cfg.Server.HTTPPort)
		log.Infof("Swagger documentation available at: http://localhost:%s/swagger/index.html", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Ожидание сигнала завершения
	<-done
	log.Info("Shutting down server...")

	// Graceful shutdown с таймаутом
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	// Закрываем открытые сессии, сбрасывая их состояние в хранилище
	platformService.CloseAllSessions(ctx)

	log.Info("Server stopped gracefully")
}
