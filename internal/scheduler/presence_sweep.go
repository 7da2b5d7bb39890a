package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/friendchat-service/pkg/logger"
)

const sweepTimeout = time.Minute

// Sweeper resets presence records left online by a previous process
type Sweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// StartPresenceSweep runs the sweep on schedule until the returned cron is
// stopped. Overlapping runs are skipped.
func StartPresenceSweep(schedule string, sweeper Sweeper) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := sweeper.SweepStale(ctx); err != nil {
			logger.Log.WithError(err).Error("Presence sweep failed")
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sweep schedule %q", schedule)
	}

	c.Start()
	return c, nil
}
