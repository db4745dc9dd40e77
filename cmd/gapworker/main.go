package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"paiwantalk/internal/app"
	"paiwantalk/internal/gaps"
	"paiwantalk/internal/httputil"
	"paiwantalk/internal/queue"
)

func main() {
	deps, err := app.BuildWorker()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to release dependencies", "err", err)
		}
	}()
	deps.Log.Info("gap worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, deps); err != nil {
		deps.Log.Error("gap worker stopped", "err", err)
		os.Exit(1)
	}
}

// run consumes lexicon_gap tasks and serves /healthz and /metrics until ctx
// is cancelled or either side fails.
func run(ctx context.Context, deps app.Deps) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeLexiconGap, gaps.Recorder(deps.Store, deps.Log, deps.Metrics))
	})
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, deps.Config.Port, "gapworker", deps.Metrics.Handler())
	})

	return g.Wait()
}
