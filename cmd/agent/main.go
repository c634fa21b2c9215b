package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"orbsync/internal/config"
	"orbsync/internal/connectivity"
	"orbsync/internal/engine"
	"orbsync/internal/events"
	"orbsync/internal/export"
	"orbsync/internal/logging"
	"orbsync/internal/metrics"
	"orbsync/internal/notify"
	"orbsync/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = store.NewRedisClient(cfg.Redis)
	}

	st, err := store.Open(cfg.Database.Path, redisClient, &logger)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := events.NewBus(&logger)
	monitor := connectivity.NewMonitor(
		cfg.Remote.BaseURL+cfg.Remote.HealthPath,
		time.Duration(cfg.Remote.ProbeTimeoutSeconds)*time.Second,
		bus,
		&logger,
	)

	notifier := buildNotifier(cfg, &logger)

	startMetrics(ctx, cfg, &logger)

	eng := engine.New(st, monitor, bus, notifier, &logger, engine.Options{
		BaseURL:        cfg.Remote.BaseURL,
		RequestTimeout: time.Duration(cfg.Remote.RequestTimeoutSeconds) * time.Second,
		DrainInterval:  time.Duration(cfg.Sync.DrainIntervalSeconds) * time.Second,
		Backoff:        buildBackoff(cfg.Sync),
		RateLimit:      rate.Limit(cfg.Remote.RateLimitRPS),
		Burst:          cfg.Remote.RateLimitBurst,
	})
	eng.Start(ctx)
	defer eng.Close()

	forms := engine.NewFormSaver(st, time.Duration(cfg.Sync.DebounceMs)*time.Millisecond, &logger)
	defer forms.Close()
	reportRestorableForms(ctx, forms, &logger)

	// Стартовое состояние — результат первой активной проверки
	monitor.SetOnline(monitor.VerifyConnectivity(ctx))
	go monitor.Watch(ctx, time.Duration(cfg.Remote.ProbeIntervalSeconds)*time.Second)

	logger.Info().Str("remote", cfg.Remote.BaseURL).Msg("sync agent started")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	writeShutdownReport(cfg, st, &logger)
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
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
	logger := baseLogger.With().Str("component", "agent-main").Logger()

	return cfg, logger, closer, nil
}

func buildNotifier(cfg *config.Config, logger *zerolog.Logger) notify.Notifier {
	sinks := notify.Fanout{notify.NewLogNotifier(logger)}

	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier init failed, continuing without it")
		} else {
			sinks = append(sinks, tg)
		}
	}

	return sinks
}

func buildBackoff(cfg config.SyncConfig) engine.Backoff {
	b := engine.DefaultBackoff()
	if len(cfg.BackoffMs) > 0 {
		delays := make([]time.Duration, 0, len(cfg.BackoffMs))
		for _, ms := range cfg.BackoffMs {
			delays = append(delays, time.Duration(ms)*time.Millisecond)
		}
		b.Delays = delays
	}
	if cfg.MaxRetries > 0 {
		b.MaxRetries = cfg.MaxRetries
	}
	return b
}

// formsCatalog описывает отслеживаемые формы (configs/forms.yaml)
type formsCatalog struct {
	Forms []struct {
		ID    string `yaml:"id"`
		Title string `yaml:"title"`
	} `yaml:"forms"`
}

func reportRestorableForms(ctx context.Context, forms *engine.FormSaver, logger *zerolog.Logger) {
	catalogPath := os.Getenv("FORMS_PATH")
	if catalogPath == "" {
		catalogPath = "configs/forms.yaml"
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		logger.Debug().Err(err).Msg("no forms catalog, skipping snapshot report")
		return
	}

	var catalog formsCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Msg("failed to parse forms catalog")
		return
	}

	for _, form := range catalog.Forms {
		fields, ok, err := forms.Restore(ctx, form.ID)
		if err != nil {
			logger.Error().Err(err).Str("form_id", form.ID).Msg("failed to check form snapshot")
			continue
		}
		if ok {
			logger.Info().Str("form_id", form.ID).Str("title", form.Title).Int("fields", len(fields)).Msg("unsaved form input available for restore")
		}
	}
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

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// writeShutdownReport выгружает незавершённую очередь для ручного разбора
func writeShutdownReport(cfg *config.Config, st store.Store, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := st.ListEntries(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read queue for shutdown report")
		return
	}
	if len(entries) == 0 {
		return
	}

	path := filepath.Join(cfg.Exports.Path, fmt.Sprintf("pending-%s.xlsx", time.Now().Format("20060102-150405")))
	if err := export.WriteQueueReport(path, entries); err != nil {
		logger.Error().Err(err).Msg("failed to write shutdown report")
		return
	}
	logger.Info().Int("entries", len(entries)).Str("path", path).Msg("pending queue exported")
}
