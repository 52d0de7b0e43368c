package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/api"
	"lead_bot/internal/bot"
	"lead_bot/internal/config"
	"lead_bot/internal/extractor"
	"lead_bot/internal/fetcher"
	"lead_bot/internal/scheduler"
	"lead_bot/internal/search"
	"lead_bot/internal/sheets"
	"lead_bot/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		fmt.Println(strings.TrimPrefix(err.Error(), config.ErrHelp.Error()+"\n"))
		os.Exit(0)
	}
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			return err
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		return err
	}
	defer func() { _ = store.Close() }()

	profile, err := config.LoadProfile(cfg.SearchProfile)
	if err != nil {
		return err
	}

	searcher, err := newSearcher(cfg, profile, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		leads    bot.Leads = sheets.Disabled{}
		leadSink scheduler.LeadSink
	)
	if cfg.SheetsEnabled {
		client, err := sheets.NewGoogle(ctx, cfg.CredentialsFile, cfg.SheetID, log)
		if err != nil {
			return err
		}
		if err := client.SetupHeader(ctx); err != nil {
			log.Warn("set up sheet header", "error", err)
		}
		leads, leadSink = client, client
		log.Info("google sheets enabled", "sheet_id", cfg.SheetID)
	}

	tg, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create telegram client", "error", err)
		return err
	}
	log.Info("authorized", "username", tg.Self.UserName)

	sched, err := scheduler.New(store, searcher, bot.NewNotifier(tg, log), leadSink, log, scheduler.Options{
		Schedule:        cfg.MonitorSchedule,
		CleanupSchedule: cfg.CleanupSchedule,
		Retention:       cfg.Retention,
		Pause:           cfg.DeliveryPause,
	})
	if err != nil {
		return err
	}

	n, err := sched.StartAll(ctx)
	if err != nil {
		log.Error("resume monitoring", "error", err)
	}
	log.Info("monitoring resumed", "workspaces", n)

	b := bot.New(tg, store, sched, leads, cfg, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	if cfg.HTTPAddr != "" {
		srv := api.NewServer(api.NewHandler(store, sched, log), log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(ctx, cfg.HTTPAddr, srv, log); err != nil {
				log.Error("admin api", "error", err)
			}
		}()
	}

	log.Info("starting bot", "renderer", cfg.Renderer, "techniques", searcher.Techniques())

	b.Run(ctx)
	wg.Wait()

	log.Info("bot stopped")
	return nil
}

func newSearcher(cfg *config.Config, profile *config.Profile, log *slog.Logger) (*search.Searcher, error) {
	userAgent := profile.UserAgent

	var renderer fetcher.Renderer
	switch cfg.Renderer {
	case config.RendererChrome:
		renderer = fetcher.NewChrome(userAgent, cfg.ChromePath, cfg.FetchTimeout)
	default:
		renderer = fetcher.NewHTTP(http.DefaultClient, userAgent, cfg.FetchTimeout)
	}
	renderer = fetcher.NewLimited(renderer, cfg.MaxSessions)

	settle := profile.Settle
	if settle == 0 {
		settle = cfg.SettleDelay
	}
	techniques, err := search.BuildTechniques(search.Options{
		BaseURL:       profile.BaseURL,
		LegacyBaseURL: profile.LegacyBaseURL,
		Topics:        profile.Topics,
		Order:         profile.Techniques,
		Settle:        settle,
		LegacySettle:  profile.LegacySettle,
	}, extractor.New(log, extractor.DefaultStrategies()...))
	if err != nil {
		return nil, err
	}
	return search.New(renderer, log, techniques...), nil
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
