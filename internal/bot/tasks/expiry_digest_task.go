package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/pantrybot/internal/config"
	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/expiry"
	"github.com/edgard/pantrybot/internal/resilience"
)

// DigestText builds the digest for one owner's items. It reports false when
// nothing is due within the warning window.
func DigestText(items []database.Item, today time.Time, year int, header string) (string, bool) {
	warned := expiry.Warnings(database.Entries(items), today, year)
	if len(warned) == 0 {
		return "", false
	}
	return header + "\n\n" + expiry.Lines(warned), true
}

// newExpiryDigestTask creates the task that warns every owner about items
// expiring within the warning window. A failure for one owner is logged and
// counted, and never stops the others.
func newExpiryDigestTask(deps TaskDeps) ScheduledTaskFunc {
	baseLog := deps.Logger.With("task", config.TaskExpiryDigest)

	return func(ctx context.Context) error {
		log := baseLog.With("run_id", uuid.NewString())
		log.InfoContext(ctx, "Starting expiry digest run...")
		startTime := deps.Clock.Now()

		owners, err := deps.Store.DistinctOwners(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list owners", "error", err)
			return fmt.Errorf("failed to list owners: %w", err)
		}

		loc, err := deps.Config.Location()
		if err != nil {
			loc = time.Local
		}
		today := deps.Clock.Now().In(loc)
		year := expiry.YearPolicy{FixedYear: deps.Config.Expiry.FixedYear}.Year(today)

		limit := deps.Config.Notifier.Concurrency
		if limit < 1 {
			limit = 1
		}

		breaker := resilience.NewBreaker(resilience.BreakerConfig{
			Name:        config.TaskExpiryDigest,
			MaxFailures: deps.Config.Notifier.BreakerThreshold,
			Cooldown:    deps.Config.Notifier.BreakerCooldown,
			Logger:      log,
		})

		var sent, failed atomic.Int64
		var g errgroup.Group
		g.SetLimit(limit)

		for _, owner := range owners {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				ok, err := notifyOwner(ctx, deps, log, breaker, owner, today, year)
				switch {
				case err != nil:
					failed.Add(1)
				case ok:
					sent.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		log.InfoContext(ctx, "Expiry digest run finished",
			"owners", len(owners),
			"sent", sent.Load(),
			"failed", failed.Load(),
			"duration", deps.Clock.Since(startTime))
		return ctx.Err()
	}
}

// notifyOwner sends one owner's digest. It reports whether a message was sent.
func notifyOwner(ctx context.Context, deps TaskDeps, log *slog.Logger, breaker *resilience.Breaker, owner int64, today time.Time, year int) (bool, error) {
	log = log.With("owner_id", owner)

	items, err := deps.Store.ListItemsByOwner(ctx, owner)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list items for digest", "error", err)
		countFailure(deps, "list")
		return false, err
	}

	text, ok := DigestText(items, today, year, deps.Config.Messages.DigestHeader)
	if !ok {
		log.DebugContext(ctx, "Nothing expiring soon")
		return false, nil
	}

	err = breaker.Do(ctx, func(ctx context.Context) error {
		if timeout := deps.Config.Notifier.SendTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		// Telegram private chat ids equal the user id.
		return deps.Messenger.SendText(ctx, owner, text)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		log.WarnContext(ctx, "Digest skipped, delivery circuit stayed open")
		countFailure(deps, "breaker")
		return false, err
	}
	if err != nil {
		log.WarnContext(ctx, "Failed to deliver digest", "error", err)
		countFailure(deps, "send")
		return false, err
	}

	if deps.Metrics != nil {
		deps.Metrics.DigestsSent.Inc()
	}
	log.DebugContext(ctx, "Digest delivered")
	return true, nil
}

func countFailure(deps TaskDeps, stage string) {
	if deps.Metrics != nil {
		deps.Metrics.DigestFailures.WithLabelValues(stage).Inc()
	}
}
