package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/clipcourier/internal/bot"
	"github.com/memohai/clipcourier/internal/config"
	"github.com/memohai/clipcourier/internal/fetch"
	"github.com/memohai/clipcourier/internal/logger"
	"github.com/memohai/clipcourier/internal/scratch"
	"github.com/memohai/clipcourier/internal/session"
	"github.com/memohai/clipcourier/internal/transfer"
	"github.com/memohai/clipcourier/internal/version"
)

func runServe() {
	fmt.Printf("Starting clipcourier %s\n", version.GetInfo())
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBotAPI,
			provideSessionManager,
			provideFetcher,
			provideEngine,
			provideJanitor,
			provideBot,
		),
		fx.Invoke(
			startJanitor,
			startBot,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideBotAPI(cfg config.Config) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return api, nil
}

func provideSessionManager(log *slog.Logger) *session.Manager {
	return session.NewManager(log)
}

func provideFetcher(log *slog.Logger, cfg config.Config) *fetch.YtdlpFetcher {
	return fetch.NewYtdlpFetcher(log, fetch.Options{
		BinaryPath:      cfg.Fetch.YtdlpPath,
		CookiesFile:     cfg.Fetch.CookiesFile,
		Timeout:         cfg.Fetch.Timeout(),
		VideoLowHeight:  cfg.Fetch.VideoLowHeight,
		VideoHighHeight: cfg.Fetch.VideoHighHeight,
		AudioFormat:     cfg.Fetch.AudioFormat,
		AudioBitrate:    cfg.Fetch.AudioBitrate,
	})
}

func provideEngine(log *slog.Logger, cfg config.Config) *transfer.Engine {
	return transfer.NewEngine(log, transfer.Options{
		CeilingBytes: cfg.Telegram.CeilingBytes,
		SendRetries:  cfg.Transfer.SendRetries,
	})
}

func provideJanitor(log *slog.Logger, cfg config.Config) (*scratch.Janitor, error) {
	maxAge, err := cfg.Janitor.MaxAgeDuration()
	if err != nil {
		return nil, err
	}
	return scratch.NewJanitor(log, cfg.Fetch.ScratchRoot, maxAge, cfg.Janitor.Schedule), nil
}

func provideBot(log *slog.Logger, api *tgbotapi.BotAPI, sessions *session.Manager, fetcher *fetch.YtdlpFetcher, engine *transfer.Engine, cfg config.Config) *bot.Bot {
	return bot.New(log, api, sessions, fetcher, engine, bot.Options{
		ScratchRoot:     cfg.Fetch.ScratchRoot,
		SendsPerSecond:  cfg.Telegram.SendsPerSecond,
		VideoLowHeight:  cfg.Fetch.VideoLowHeight,
		VideoHighHeight: cfg.Fetch.VideoHighHeight,
	})
}

func startJanitor(lc fx.Lifecycle, janitor *scratch.Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return janitor.Start() },
		OnStop:  func(ctx context.Context) error { janitor.Stop(); return nil },
	})
}

func startBot(lc fx.Lifecycle, log *slog.Logger, b *bot.Bot, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				if err := b.Run(ctx); err != nil {
					log.Error("bot stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
