// Package main contains the entrypoint for the pantry Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/pantrybot/internal/bot"
	"github.com/edgard/pantrybot/internal/bot/handlers"
	"github.com/edgard/pantrybot/internal/bot/tasks"
	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/config"
	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/httpserver"
	"github.com/edgard/pantrybot/internal/logger"
	"github.com/edgard/pantrybot/internal/metrics"
	"github.com/edgard/pantrybot/internal/session"
	"github.com/edgard/pantrybot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, logger, database, sessions, Telegram, scheduler and the
// optional HTTP server, then blocks until shutdown. It returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path, log)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db, log)
	store := database.NewStore(db, log)

	sessions := session.NewManager(log)
	clock := clockwork.NewRealClock()
	m := metrics.New(sessions.Len)

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Sessions: sessions,
		Clock:    clock,
		Metrics:  m,
		NewMessenger: func(b *tgbot.Bot) chat.Messenger {
			return telegram.NewMessenger(b, log)
		},
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.SetCommands(ctx, tg, log, cfg.Telegram.Commands); err != nil {
		// The command menu is cosmetic; the bot works without it.
		log.Warn("Failed to set bot commands", "error", err)
	}

	tDeps := tasks.TaskDeps{
		Logger:    log,
		Store:     store,
		Messenger: telegram.NewMessenger(tg, log),
		Config:    cfg,
		Clock:     clock,
		Metrics:   m,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), clock, m)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var httpSrv bot.Runner
	if cfg.HTTP.Enabled {
		httpSrv = httpserver.New(cfg.HTTP.Addr, store, m.Handler(), log)
	}

	app := bot.NewBot(log, tg, sched, sessions, httpSrv)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
