package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/signalbot/internal/adapters/notify"
	"github.com/alejandrodnm/signalbot/internal/adapters/storage"
	"github.com/alejandrodnm/signalbot/internal/application/engine"
	"github.com/alejandrodnm/signalbot/internal/domain"
)

const stopFile = "STOP"

// run executes the first cycle immediately and then one per interval, until
// the context is cancelled, a STOP file appears or the signal source rejects
// our credentials.
func run(ctx context.Context, eng *engine.Engine, interval time.Duration, once bool) error {
	if err := runCycle(ctx, eng); err != nil || once {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("reconciliation loop started — press Ctrl+C or create STOP file to exit")

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciliation stopped (signal)")
			return nil
		case <-ticker.C:
			if _, err := os.Stat(stopFile); err == nil {
				slog.Info("STOP file detected — shutting down")
				os.Remove(stopFile)
				return nil
			}
			if err := runCycle(ctx, eng); err != nil {
				return err
			}
		}
	}
}

// runCycle runs one cycle. Only a fatal error is returned; everything else
// is logged and retried on the next tick.
func runCycle(ctx context.Context, eng *engine.Engine) error {
	result, err := eng.RunOnce(ctx)
	if err != nil {
		if domain.IsFatal(err) {
			return fmt.Errorf("fatal: %w", err)
		}
		slog.Error("cycle failed", "err", err)
		return nil
	}

	slog.Info("cycle complete",
		"cycle", result.Cycle,
		"duration", result.Duration.Round(time.Millisecond),
		"signals", result.SignalsMerged,
		"placed", result.OrdersPlaced,
		"cancelled", result.OrdersCancelled,
		"cancel_failures", result.CancelFailures,
		"pair_errors", result.PairErrors,
		"snapshot_ok", result.SnapshotErr == nil,
	)
	return nil
}

func runReport(ctx context.Context, store *storage.SQLiteStorage, notifier *notify.Console) {
	state, err := store.LoadState(ctx)
	if err != nil {
		slog.Error("failed to load state", "err", err)
		os.Exit(1)
	}
	cycles, err := store.RecentCycles(ctx, 20)
	if err != nil {
		slog.Error("failed to load cycles", "err", err)
		os.Exit(1)
	}
	notifier.PrintReport(state, cycles)
}
