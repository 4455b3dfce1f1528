package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"riskgate/internal/blackout"
	"riskgate/internal/broker"
	"riskgate/internal/calendar"
	"riskgate/internal/config"
	"riskgate/internal/engine"
	"riskgate/internal/httpapi"
	"riskgate/internal/journal"
	"riskgate/internal/metrics"
	"riskgate/internal/risk"
	"riskgate/internal/state"
)

const (
	heartbeatCheckInterval = 15 * time.Second
	recentDecisions        = 500
)

func runServe(ctx context.Context, cfg *config.Config) error {
	runID := generateRunID()
	m := metrics.New()
	blackouts := blackout.NewStore()

	store := state.NewStore(cfg.PointMult)
	today := cfg.Calendar().TradingDate(time.Now())
	restored, err := store.Load(cfg.CheckpointPath, today)
	switch {
	case err == nil:
		slog.Info("loaded checkpoint", "path", cfg.CheckpointPath, "restored_day", restored)
	case errors.Is(err, fs.ErrNotExist):
	default:
		slog.Warn("checkpoint ignored", "path", cfg.CheckpointPath, "error", err)
	}

	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			slog.Error("failed to close decision logger", "error", err)
		}
	}()
	recent := engine.NewRecentDecisions(recentDecisions)
	sinks := []engine.DecisionSink{decisions, recent}

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		jr, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer jr.Close()
		sinks = append(sinks, jr)
	}

	mode := engine.ModePaper
	var (
		dispatcher broker.Dispatcher
		client     *broker.Client
	)
	if !cfg.Paper {
		mode = engine.ModeLive
		client, err = broker.New(broker.ClientOptions{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.PaperBaseURL,
			OrderType: cfg.OrderType,
			RunID:     runID,
			Symbols:   cfg.VenueSymbols,
		})
		if err != nil {
			return err
		}
		dispatcher = broker.NewBreaker(client, broker.BreakerSettings{Name: "alpaca"})
	}

	eng := engine.New(engine.Options{
		Mode:            mode,
		DispatchTimeout: cfg.DispatchTimeout,
		RunID:           runID,
	}, risk.NewGate(cfg.Rules(), blackouts), store, dispatcher, m, sinks...)

	srvOpts := httpapi.Options{
		Addr:       cfg.Addr,
		AdminToken: cfg.AdminToken,
		WebhookRPS: cfg.WebhookRPS,
		Engine:     eng,
		Blackouts:  blackouts,
		Metrics:    m,
		Decisions:  recent,
	}
	if jr != nil {
		srvOpts.Decisions = jr
	}
	server := httpapi.NewServer(srvOpts)

	slog.Info("starting riskgate", "run_id", runID, "mode", mode, "addr", cfg.Addr,
		"whitelist", cfg.Whitelist, "rth_start", cfg.RTHStart, "rth_end", cfg.RTHEnd, "tz", cfg.TZ)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	if src := calendarSource(cfg); src != nil {
		refresher := calendar.NewRefresher(src, cfg.NewsFilter(), blackouts, m, cfg.CalendarRefresh)
		g.Go(func() error { return refresher.Run(gctx) })
		if cfg.CalendarFile != "" {
			g.Go(func() error { return refresher.Watch(gctx, cfg.CalendarFile) })
		}
	} else {
		slog.Warn("no economic calendar configured; news gate is inactive")
	}
	g.Go(func() error {
		eng.WatchHeartbeat(gctx, heartbeatCheckInterval)
		return nil
	})
	if client != nil {
		g.Go(func() error {
			eng.ReconcileLoop(gctx, client, cfg.CanonicalSymbols(), cfg.ReconcileInterval)
			return nil
		})
	}

	runErr := g.Wait()

	if err := store.Save(cfg.CheckpointPath); err != nil {
		slog.Error("failed to save checkpoint", "path", cfg.CheckpointPath, "error", err)
	}
	slog.Info("riskgate shutdown complete")
	return runErr
}

// calendarSource prefers the local file, which is also watched for edits.
func calendarSource(cfg *config.Config) calendar.Source {
	switch {
	case cfg.CalendarFile != "":
		return calendar.FileSource{Path: cfg.CalendarFile}
	case cfg.CalendarURL != "":
		return calendar.NewHTTPSource(cfg.CalendarURL)
	default:
		return nil
	}
}
