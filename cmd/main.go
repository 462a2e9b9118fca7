package main

import (
	"context"
	"dailymatch/backend/internal/api/handler"
	"dailymatch/backend/internal/api/middleware"
	"dailymatch/backend/internal/auth"
	"dailymatch/backend/internal/config"
	"dailymatch/backend/internal/events"
	"dailymatch/backend/internal/localization"
	"dailymatch/backend/internal/matching"
	"dailymatch/backend/internal/storage"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// redisPinger adapts the redis client to handler.Pinger.
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Mode == gin.DebugMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	gin.SetMode(cfg.Mode)
}

func setupDependencies(ctx context.Context, cfg *config.Config) (*storage.Service, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	s := storage.NewStorageService(db)

	// 2. Міграції (таблиці та частковий унікальний індекс)
	if err := s.Migrate(cfg.Matching.Ranks...); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// 3. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect Redis")
	}

	log.Info().Msg("database and redis connections established, migrations complete")
	return s, rdb
}

// setupPublisher fans events out to Redis and, when configured, RabbitMQ.
// The returned close func releases the broker connection.
func setupPublisher(cfg *config.Config, redisPub *events.RedisPublisher) (events.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return redisPub, func() {}
	}

	amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect RabbitMQ")
	}
	log.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events to RabbitMQ")

	return events.Fanout{redisPub, amqpPub}, func() {
		if err := amqpPub.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close RabbitMQ connection")
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg)
	log.Info().Msg("starting daily match backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	store, rdb := setupDependencies(ctx, cfg)
	defer rdb.Close()

	redisPub := events.NewRedisPublisher(rdb)
	pub, closePub := setupPublisher(cfg, redisPub)
	defer closePub()

	localizer := localization.Default()
	if cfg.LocalesDir != "" {
		localizer, err = localization.NewLocalizer(os.DirFS(cfg.LocalesDir), ".")
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.LocalesDir).Msg("failed to load locales")
		}
	}

	// 2. Сервіс підбору та прибиральник черги
	svc := matching.NewService(store, cfg.Matching, pub, matching.WidgetProvider{BaseURL: cfg.Widget.BaseURL})

	reaper := matching.NewReaper(store, store, events.Logged{Next: pub}, cfg.Matching.SweepInterval)
	reaper.Lock = matching.NewRedisLocker(rdb)
	go reaper.Run(ctx)

	// 3. Налаштування Gin та роутингу
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	limiter := middleware.NewLimiterStore(cfg.Matching.RequestsPerMin, cfg.Matching.RequestBurst, time.Minute)
	defer limiter.Stop()

	h := handler.NewHandler(svc, redisPub, localizer, store, redisPinger{rdb})
	r := handler.SetupRouter(h, handler.RouterDeps{
		Verifier:       tokens,
		Members:        store,
		Limiter:        limiter,
		VerifierSecret: cfg.VerifierSecret,
	})

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
