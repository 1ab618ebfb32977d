// Copyright 2024-2026 Aiku AI

// Command triggerbot is a Matrix room automation bot. It reacts to
// plain-text triggers (unit conversions, GitHub issue references,
// keyword links, group pings, text expansions, spellcheck corrections)
// and serves a webhook endpoint for injecting messages into rooms.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-triggerbot/pkg/bot"
	"github.com/aiku/matrix-triggerbot/pkg/github"
	"github.com/aiku/matrix-triggerbot/pkg/store"
	"github.com/aiku/matrix-triggerbot/pkg/webhook"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	log := setupLogging()
	log.Info().Str("tag", Tag).Str("commit", Commit).Str("build_time", BuildTime).Msg("Starting triggerbot")

	configPath := os.Getenv("TRIGGERBOT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	manager, err := bot.NewConfigManager(configPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}
	cfg := manager.Current()

	storePath := cfg.StorePath
	if storePath == "" {
		storePath = "triggerbot.db"
	}
	db, err := store.Open(storePath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", storePath).Msg("Failed to open store")
	}
	defer db.Close()

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Matrix client")
	}
	client.Log = log.With().Str("component", "mautrix").Logger()
	client.Store = db

	gateway := bot.NewMatrixGateway(client)
	searcher := github.NewClient(github.Config{Token: cfg.GithubToken})
	dispatcher := bot.NewDispatcher(
		id.UserID(cfg.UserID),
		manager.Current,
		bot.DefaultUnits(),
		searcher,
		db,
		log,
	)
	b := bot.New(client, dispatcher, gateway, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := manager.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Config watcher stopped")
		}
	}()

	if cfg.WebhookAddr != "" {
		srv := webhook.NewServer(cfg.WebhookAddr, cfg.WebhookToken, gateway, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Webhook server failed")
			}
		}()
	}

	if err := b.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Sync loop failed")
	}
	log.Info().Msg("Shutdown complete")
}

func setupLogging() zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv("TRIGGERBOT_LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	var log zerolog.Logger
	if os.Getenv("TRIGGERBOT_LOG_JSON") == "1" {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.StampMilli})
	}
	log = log.With().Timestamp().Logger().Level(level)
	exzerolog.SetupDefaults(&log)
	return log
}
