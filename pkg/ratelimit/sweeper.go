package ratelimit

import (
	"context"
	"time"

	"github.com/shopguard/sentinel/pkg/common"
)

// Sweep deletes request log rows past the retention horizon and reports how
// many were removed.
func (l *Limiter) Sweep(ctx context.Context) (int64, error) {
	cutoff := l.now().Add(-common.RetentionHorizon)
	removed, err := l.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		l.logger.WithField("removed", removed).Info("swept expired tracking records")
	}
	return removed, nil
}

// RunSweeper sweeps on the given interval until ctx is cancelled. Meant to be
// started as a goroutine at boot.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Sweep(ctx); err != nil {
				l.logger.WithError(err).Error("retention sweep failed")
			}
		}
	}
}
