package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/sniperbot/config"
	"github.com/alejandrodnm/sniperbot/internal/application/labeling"
	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/alejandrodnm/sniperbot/internal/ports"
)

// runLabeling is the -label mode: one offline triple-barrier pass over the
// configured symbols, then exit. It shares the barrier geometry with the
// live session so the stored labels match what the brackets will do.
func runLabeling(ctx context.Context, cfg *config.Config, bars ports.BarProvider, store ports.Storage) {
	l := labeling.NewLabeler(bars, store, domain.BarrierConfig{
		StopFraction:   cfg.Barrier.StopFraction,
		TargetFraction: cfg.Barrier.TargetFraction,
		HorizonBars:    cfg.Barrier.HorizonBars,
	}, cfg.LabelLookback())

	slog.Info("labeling run starting",
		"symbols", cfg.Trading.Symbols,
		"lookback", cfg.LabelLookback(),
		"horizon_bars", cfg.Barrier.HorizonBars,
	)

	summaries, err := l.Run(ctx, cfg.Trading.Symbols)
	if err != nil {
		slog.Error("labeling finished with failures", "err", err)
	}

	var totalLabeled, totalWins int
	for _, s := range summaries {
		totalLabeled += s.Labeled
		totalWins += s.Wins
	}
	slog.Info("labeling done",
		"symbols", len(summaries),
		"labeled", totalLabeled,
		"wins", totalWins,
	)

	if err != nil {
		os.Exit(1)
	}
}
