package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/KevinTran99/MovieContest/internal/app"
	"github.com/KevinTran99/MovieContest/internal/config"
	"github.com/KevinTran99/MovieContest/internal/domain"
	"github.com/KevinTran99/MovieContest/internal/httpapi"
	"github.com/KevinTran99/MovieContest/internal/registry"
	"github.com/KevinTran99/MovieContest/internal/relay"
	"github.com/KevinTran99/MovieContest/internal/storage"
	"github.com/KevinTran99/MovieContest/internal/storage/memory"
)

type backend interface {
	registry.Store
	relay.Outbox
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cfg.VoteSalt == config.DefaultVoteSalt {
		logger.Warn("VOTE_SALT is the development default; set it in production")
	}

	store, closeStore, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.New(store, registry.Options{
		Logger:   logger,
		Operator: domain.Identity(cfg.OperatorID),
	})

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}
	bot.Debug = cfg.BotDebug
	logger.Info("bot started", "username", bot.Self.UserName, "operator", reg.Owner())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.New(bot, reg, logger).Run(gctx)
	})

	g.Go(func() error {
		r := relay.Relay{
			Outbox:    store,
			Publisher: app.Publisher{Bot: bot},
			Interval:  cfg.RelayInterval,
			Logger:    logger,
		}
		if err := r.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(reg, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http api listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

func openBackend(cfg config.Config, logger *slog.Logger) (backend, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Warn("using in-memory storage; state is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	db, dialect, err := storage.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	store := storage.New(db, dialect, cfg.VoteSalt)
	if err := store.InitSchema(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	logger.Info("storage ready", "driver", cfg.DBDriver, "dialect", dialect)
	return store, func() { _ = store.Close() }, nil
}
