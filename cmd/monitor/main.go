package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tg_monitor/internal/bot"
	"tg_monitor/internal/config"
	"tg_monitor/internal/metrics"
	"tg_monitor/internal/model"
	"tg_monitor/internal/pacing"
	"tg_monitor/internal/pipeline"
	"tg_monitor/internal/scheduler"
	"tg_monitor/internal/source"
	"tg_monitor/internal/storage"
)

const eventBuffer = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	registry := source.NewRegistry()
	b, err := bot.New(cfg.TelegramBotToken, store, registry, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pacer := pacing.New(cfg.PacingRate, cfg.PacingBurst, cfg.PacingJitter)

	target, err := b.ResolveTarget(ctx)
	if err != nil {
		log.Error("resolve target chat", "target", cfg.TargetChat, "error", err)
		os.Exit(1)
	}
	log.Info("notifications go to", "chat", target.DisplayName, "chat_id", target.PlatformID)

	resolveSources(ctx, b, registry, pacer, cfg.Groups, log)
	if registry.Len() == 0 {
		log.Error("no monitored group could be resolved")
		os.Exit(1)
	}
	logWatermarks(ctx, store, registry, log)

	p := pipeline.New(store, registry, b, b, cfg.Keywords, log)
	p.SetFallbackMinutes(cfg.FallbackMinutes)
	p.SetPacer(pacer)

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		p.SetMetrics(metrics.New(reg))
		srv := metrics.Serve(cfg.MetricsAddr, reg, store.Ping, log)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	retention, err := scheduler.NewRetention(store, cfg.RetentionDays, cfg.RetentionSchedule, log)
	if err != nil {
		log.Error("configure retention", "error", err)
		os.Exit(1)
	}
	if err := retention.Start(ctx); err != nil {
		log.Error("start retention", "error", err)
		os.Exit(1)
	}

	events := make(chan model.MatchEvent, eventBuffer)

	if cfg.FeedBridgeURL != "" {
		sched := scheduler.New(registry, cfg.FeedBridgeURL, events, log)
		sched.SetTickInterval(cfg.FeedPollInterval)
		sched.SetPacer(pacer)
		go sched.Run(ctx)
	}

	go p.Run(ctx, events)

	log.Info("starting monitor",
		"bot", b.Username(),
		"sources", registry.Len(),
		"keywords", len(cfg.Keywords),
		"started_at", p.StartedAt().Format(time.RFC3339),
	)

	b.Run(ctx, events)

	log.Info("monitor stopped")
}

func resolveSources(ctx context.Context, b *bot.Bot, registry *source.Registry, pacer *pacing.Pacer, groups []string, log *slog.Logger) {
	for _, url := range groups {
		if err := pacer.Wait(ctx); err != nil {
			return
		}
		src, err := b.ResolveSource(ctx, url)
		if err != nil {
			log.Warn("skip group", "url", url, "error", err)
			continue
		}
		registry.Register(src)
		log.Info("monitoring group", "url", src.URL, "name", src.DisplayName, "chat_id", src.PlatformID)
	}
}

func logWatermarks(ctx context.Context, store storage.Storage, registry *source.Registry, log *slog.Logger) {
	snapshot, err := store.GetAll(ctx)
	if err != nil {
		log.Warn("load watermarks", "error", err)
		return
	}
	for _, src := range registry.All() {
		s, ok := snapshot[src.URL]
		if !ok {
			log.Info("no watermark yet", "url", src.URL)
			continue
		}
		log.Info("resuming from watermark", "url", src.URL, "last_message_time", s.MessageTime.Format(time.RFC3339))
	}
	log.Info("watermarks loaded", "stored", len(snapshot), "monitored", registry.Len())
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
