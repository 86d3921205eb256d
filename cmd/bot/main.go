package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petsitting/internal/bot"
	"petsitting/internal/config"
	"petsitting/internal/events"
	"petsitting/internal/gateway"
	"petsitting/internal/logging"
	"petsitting/internal/metrics"
	"petsitting/internal/repository"
	"petsitting/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, logger, closer, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, sessions := initSessionService(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	backend := gateway.NewClient(cfg.Backend, logging.Component(&logger, "gateway"))

	eventBus := events.NewEventBus()
	subscribeBookingEvents(eventBus, &logger)

	startMetrics(ctx, cfg, &logger)

	return startBot(ctx, cfg, sessions, backend, eventBus, &logger)
}

func loadConfigAndLogger(configPath string) (*config.Config, zerolog.Logger, io.Closer, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()
	logger.Info().Str("config", configPath).Str("backend", cfg.Backend.BaseURL).Msg("Config loaded")

	return cfg, logger, closer, nil
}

func initSessionService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.SessionService) {
	ttl := cfg.Session.TTL()
	fallbackRepo := repository.NewMemorySessionRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Warn().Msg("Redis address is empty, sessions are kept in memory")
		return nil, service.NewSessionService(fallbackRepo, logging.Component(logger, "sessions"))
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if errPing := repository.Ping(ctx, redisClient); errPing != nil {
		logger.Warn().Err(errPing).Msg("Redis unavailable")
	}

	primaryRepo := repository.NewRedisSessionRepository(redisClient, ttl)
	sessionRepo := repository.NewFailoverSessionRepository(primaryRepo, fallbackRepo, logger)
	return redisClient, service.NewSessionService(sessionRepo, logging.Component(logger, "sessions"))
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	sessions *service.SessionService,
	backend *gateway.Client,
	eventBus *events.EventBus,
	logger *zerolog.Logger,
) error {
	botWrapper, err := bot.Connect(cfg.Telegram)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}

	tgService := service.NewTelegramService(botWrapper)

	telegramBot, err := bot.NewBot(
		tgService, cfg, sessions, backend,
		eventBus, bot.NewMetrics(nil), logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)

	// Дожидаемся уже отправленных на бэкенд изменений статуса
	telegramBot.Stop()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func subscribeBookingEvents(bus *events.EventBus, logger *zerolog.Logger) {
	if bus == nil {
		return
	}

	handler := func(ev *events.Event) error {
		var payload events.StatusChangedPayload
		if err := ev.Decode(&payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		logger.Info().
			Str("event", ev.Type).
			Int64("booking_id", payload.BookingID).
			Str("previous_status", string(payload.PreviousStatus)).
			Str("status", string(payload.Status)).
			Str("actor_role", string(payload.ActorRole)).
			Str("notified", payload.NotifiedName).
			Msg("Booking status changed")
		return nil
	}

	bus.Subscribe(handler, events.EventBookingConfirmed, events.EventBookingRejected, events.EventBookingCancelled)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", port).Msg("Metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
