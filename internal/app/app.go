// Package app wires the storage, engine, transport, and ops components
// together and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inkonio/doppelbot/internal/config"
	"github.com/inkonio/doppelbot/internal/corpus"
	"github.com/inkonio/doppelbot/internal/engine"
	"github.com/inkonio/doppelbot/internal/history"
	"github.com/inkonio/doppelbot/internal/ops"
	"github.com/inkonio/doppelbot/internal/persona"
	"github.com/inkonio/doppelbot/internal/provider/groq"
	"github.com/inkonio/doppelbot/internal/session"
	"github.com/inkonio/doppelbot/internal/store/sqlite"
	"github.com/inkonio/doppelbot/internal/telegram"
)

// Run builds the full application from cfg and blocks until ctx is
// cancelled. Components are stopped in reverse start order.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := sqlite.Open(cfg.Store.Path, cfg.Store.BusyTimeout)
	if err != nil {
		return fmt.Errorf("app: open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close failed", "error", err)
		}
	}()

	sessions := session.NewRegistry(st, logger)
	if err := sessions.Load(ctx); err != nil {
		return fmt.Errorf("app: load sessions: %w", err)
	}

	hist := history.NewManager(st, history.Config{
		MemoryCap:    cfg.History.MemoryCap,
		HydrateLimit: cfg.History.HydrateLimit,
		Retention:    cfg.History.Retention,
	})
	purged, err := hist.PurgeStale(ctx)
	if err != nil {
		return fmt.Errorf("app: purge stale turns: %w", err)
	}
	if purged > 0 {
		logger.Info("purged stale conversation turns", "count", purged)
	}

	corp := corpus.New(st, st)
	personaCache := persona.NewCache(st, cfg.Owner.Username, cfg.Persona.TTL)

	corpusCount, err := corp.Count(ctx)
	if err != nil {
		return fmt.Errorf("app: count corpus: %w", err)
	}
	enabled, err := corp.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("app: read enabled flag: %w", err)
	}

	// Warm the persona prompt so the first reply does not pay the corpus read.
	if corpusCount > 0 {
		if _, err := personaCache.Prompt(ctx); err != nil {
			logger.Warn("persona warm-up failed", "error", err)
		}
	}

	generator := groq.New(cfg.Provider, logger)

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)

	client := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL)
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("app: telegram getMe: %w", err)
	}
	logger.Info("connected to telegram",
		"bot", me.Username,
		"owner", cfg.Owner.Username,
		"model", generator.ModelName(),
		"corpus", corpusCount,
		"enabled", enabled,
		"sessions", sessions.Len(),
	)

	sender := telegram.NewBusinessSender(client)
	eng := engine.New(sessions, corp, personaCache, hist, generator, sender, metrics, logger, engine.Config{
		MinCorpus:    cfg.Engine.MinCorpus,
		HistoryLimit: cfg.Engine.HistoryLimit,
	})

	bot := telegram.NewBot(client, eng, corp, personaCache, sessions, logger, cfg.Owner.Username, cfg.Engine.MinCorpus)

	opsServer := ops.NewServer(cfg.Ops, corp, sessions, generator, registry, logger)
	if err := opsServer.Start(); err != nil {
		return err
	}

	poller := telegram.NewPoller(client, func(u *telegram.Update) {
		bot.HandleUpdate(ctx, u)
	}, logger, cfg.Telegram)
	poller.Start()

	logger.Info("doppelbot running")
	<-ctx.Done()

	logger.Info("shutting down")
	poller.Stop()

	stopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := opsServer.Stop(stopCtx); err != nil {
		logger.Error("ops shutdown failed", "error", err)
	}

	return nil
}
