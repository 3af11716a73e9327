package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/sony/gobreaker"
)

// BreakerTrackingRepository decorates a tracking repository with a circuit
// breaker so that a flapping store trips to fast failures instead of stalling
// the request path. Callers already treat store errors as fail-open, so an
// open breaker degrades to allow-on-uncertainty.
type BreakerTrackingRepository struct {
	inner   tracking.Repository
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerTrackingRepository(inner tracking.Repository, maxFailures uint32) tracking.Repository {
	settings := gobreaker.Settings{
		Name:        "tracking_store",
		MaxRequests: 5,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &BreakerTrackingRepository{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (r *BreakerTrackingRepository) execute(fn func() (interface{}, error)) (interface{}, error) {
	out, err := r.breaker.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("breaker (%s): %w", r.breaker.Name(), err)
	}
	return out, nil
}

func (r *BreakerTrackingRepository) Insert(ctx context.Context, record *tracking.TrackedRequest) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.Insert(ctx, record)
	})
	return err
}

func (r *BreakerTrackingRepository) ListByIP(
	ctx context.Context,
	ip string,
	since time.Time,
	limit int,
) ([]tracking.TrackedRequest, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.ListByIP(ctx, ip, since, limit)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]tracking.TrackedRequest)
	return records, nil
}

func (r *BreakerTrackingRepository) RecentByIP(
	ctx context.Context,
	ip string,
	since time.Time,
	limit int,
) ([]tracking.TrackedRequest, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.RecentByIP(ctx, ip, since, limit)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]tracking.TrackedRequest)
	return records, nil
}

func (r *BreakerTrackingRepository) CountByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.CountByIP(ctx, ip, since)
	})
	if err != nil {
		return 0, err
	}
	count, _ := out.(int64)
	return count, nil
}

func (r *BreakerTrackingRepository) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.CountByUser(ctx, userID, since)
	})
	if err != nil {
		return 0, err
	}
	count, _ := out.(int64)
	return count, nil
}

func (r *BreakerTrackingRepository) CountByIPAndEndpoint(
	ctx context.Context,
	ip, endpoint string,
	since time.Time,
) (int64, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.CountByIPAndEndpoint(ctx, ip, endpoint, since)
	})
	if err != nil {
		return 0, err
	}
	count, _ := out.(int64)
	return count, nil
}

func (r *BreakerTrackingRepository) CountHighSeverity(
	ctx context.Context,
	ip string,
	minScore int,
	since time.Time,
) (int64, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.CountHighSeverity(ctx, ip, minScore, since)
	})
	if err != nil {
		return 0, err
	}
	count, _ := out.(int64)
	return count, nil
}

func (r *BreakerTrackingRepository) TopScoresByIP(
	ctx context.Context,
	ip string,
	since time.Time,
	limit int,
) ([]int, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.TopScoresByIP(ctx, ip, since, limit)
	})
	if err != nil {
		return nil, err
	}
	scores, _ := out.([]int)
	return scores, nil
}

func (r *BreakerTrackingRepository) RecentFingerprints(ctx context.Context, ip string, limit int) ([]string, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.RecentFingerprints(ctx, ip, limit)
	})
	if err != nil {
		return nil, err
	}
	hashes, _ := out.([]string)
	return hashes, nil
}

func (r *BreakerTrackingRepository) ListSince(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]tracking.TrackedRequest, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.ListSince(ctx, since, limit)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]tracking.TrackedRequest)
	return records, nil
}

func (r *BreakerTrackingRepository) MarkBlocked(ctx context.Context, id string, at time.Time) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.MarkBlocked(ctx, id, at)
	})
	return err
}

func (r *BreakerTrackingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.inner.DeleteOlderThan(ctx, cutoff)
	})
	if err != nil {
		return 0, err
	}
	count, _ := out.(int64)
	return count, nil
}
