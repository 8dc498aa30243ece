package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/tweeter-be/internal/api"
	"github.com/isdelr/tweeter-be/internal/auth"
	"github.com/isdelr/tweeter-be/internal/broker"
	"github.com/isdelr/tweeter-be/internal/config"
	"github.com/isdelr/tweeter-be/internal/database"
	"github.com/isdelr/tweeter-be/internal/logger"
	"github.com/isdelr/tweeter-be/internal/maintenance"
	"github.com/isdelr/tweeter-be/internal/media"
	"github.com/isdelr/tweeter-be/internal/monitoring"
	"github.com/isdelr/tweeter-be/internal/serializer"
	"github.com/isdelr/tweeter-be/internal/services"
	"github.com/isdelr/tweeter-be/internal/websocket"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Ensure the media directory exists
	storage, err := media.NewStorage(cfg.MediaRoot, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create media directory")
	}

	blacklist, closeBlacklist, err := newBlacklist(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BlacklistBackend).Msg("Failed to initialize token blacklist")
	}
	defer closeBlacklist()

	publisher, err := newPublisher(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("publisher", cfg.EventPublisher).Msg("Failed to initialize event publisher")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, blacklist)

	// Set up WebSocket Hub
	hub := websocket.NewHub(log.With().Str("component", "hub").Logger())
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, publisher, log.With().Str("component", "events").Logger())
	userService := services.NewUserService(db, eventService)
	tweetService := services.NewTweetService(db, eventService)

	// Set up and run the maintenance scheduler
	scheduler, err := maintenance.NewScheduler(cfg.MaintenanceCron, blacklist, log.With().Str("component", "maintenance").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize maintenance scheduler")
	}
	scheduler.Run()

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(db, cfg.StatsInterval, log.With().Str("component", "stats").Logger())
	go statUpdater.Run()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Logger:         log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MediaURL:       cfg.MediaURL,
		Tokens:         tokens,
		Users:          userService,
		Tweets:         tweetService,
		Events:         eventService,
		Serializer:     serializer.New(db, cfg.MediaURL),
		Media:          storage,
		Hub:            hub,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	statUpdater.Stop()
	scheduler.Stop()
	hub.Stop()
	eventService.Wait()
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close event publisher")
	}

	log.Info().Msg("Server exiting")
}

func newBlacklist(cfg *config.Config, db *gorm.DB) (auth.Blacklist, func(), error) {
	if cfg.BlacklistBackend != "redis" {
		return auth.NewDBBlacklist(db), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	bl := auth.NewRedisBlacklist(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bl.Connect(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return bl, func() { bl.Close() }, nil
}

func newPublisher(cfg *config.Config) (broker.Publisher, error) {
	switch cfg.EventPublisher {
	case "kafka":
		return broker.NewKafkaPublisher(broker.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			WriteTimeout: cfg.KafkaWriteTimeout,
		}), nil
	case "rabbitmq":
		return broker.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
	default:
		return broker.NoopPublisher{}, nil
	}
}
