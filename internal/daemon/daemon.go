// Package daemon runs the sync engine on a poll schedule: a full cycle every
// interval, pulled forward when the local watcher sees write activity.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/filedrift/drift/internal/syncer"
)

// kickDelay batches a burst of local writes into one early cycle.
const kickDelay = 2 * time.Second

type Daemon struct {
	engine   *syncer.Engine
	watcher  *syncer.FileWatcher
	interval time.Duration

	kick chan struct{}
}

func New(engine *syncer.Engine, watcher *syncer.FileWatcher, interval time.Duration) *Daemon {
	return &Daemon{
		engine:   engine,
		watcher:  watcher,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled. The first cycle runs immediately.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("daemon start", "interval", d.interval)

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			return err
		}
		defer d.watcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.syncLoop(ctx) })
	if d.watcher != nil {
		g.Go(func() error { return d.watchLoop(ctx) })
	}

	err := g.Wait()
	slog.Info("daemon stop")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) syncLoop(ctx context.Context) error {
	d.runCycle(ctx)

	// a timer, not a ticker: a slow cycle must not queue up ticks behind it
	timer := time.NewTimer(d.interval)
	defer timer.Stop()
	deadline := time.Now().Add(d.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-d.kick:
			// a kick only pulls the next cycle forward; under a sustained
			// write burst the pending deadline stays an upper bound
			if time.Until(deadline) <= kickDelay {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(kickDelay)
			deadline = time.Now().Add(kickDelay)

		case <-timer.C:
			d.runCycle(ctx)
			timer.Reset(d.interval)
			deadline = time.Now().Add(d.interval)
		}
	}
}

func (d *Daemon) runCycle(ctx context.Context) {
	res := d.engine.Sync(ctx)
	switch {
	case errors.Is(res.Err, syncer.ErrSyncAlreadyRunning):
		// previous cycle still going; the timer will come around again
	case errors.Is(res.Err, syncer.ErrExclusiveLockHeld):
		slog.Warn("sync skipped, exclusive lock held")
	case res.Err != nil && !errors.Is(res.Err, context.Canceled):
		slog.Error("sync cycle failed", "error", res.Err)
	default:
		for _, err := range res.Errors {
			slog.Warn("sync item error", "error", err)
		}
	}
}

func (d *Daemon) watchLoop(ctx context.Context) error {
	events := d.watcher.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case _, ok := <-events:
			if !ok {
				return nil
			}
			select {
			case d.kick <- struct{}{}:
			default:
			}
		}
	}
}
