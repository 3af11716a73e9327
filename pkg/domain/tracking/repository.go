package tracking

import (
	"context"
	"time"
)

// Repository is the queryable, timestamp-indexed log of past requests that
// every scorer reads. Implementations must tolerate concurrent callers.
type Repository interface {
	Insert(ctx context.Context, record *TrackedRequest) error

	// ListByIP returns requests from ip since the given instant, oldest
	// first, up to limit rows.
	ListByIP(ctx context.Context, ip string, since time.Time, limit int) ([]TrackedRequest, error)

	// RecentByIP returns requests from ip since the given instant, newest
	// first, up to limit rows.
	RecentByIP(ctx context.Context, ip string, since time.Time, limit int) ([]TrackedRequest, error)

	CountByIP(ctx context.Context, ip string, since time.Time) (int64, error)
	CountByUser(ctx context.Context, userID string, since time.Time) (int64, error)
	CountByIPAndEndpoint(ctx context.Context, ip, endpoint string, since time.Time) (int64, error)

	// CountHighSeverity counts requests from ip since the given instant whose
	// score is at least minScore.
	CountHighSeverity(ctx context.Context, ip string, minScore int, since time.Time) (int64, error)

	// TopScoresByIP returns the highest suspicion scores recorded for ip
	// since the given instant, descending, up to limit values.
	TopScoresByIP(ctx context.Context, ip string, since time.Time, limit int) ([]int, error)

	// RecentFingerprints returns the fingerprint hashes recorded for ip,
	// newest first, up to limit rows. Empty hashes are skipped.
	RecentFingerprints(ctx context.Context, ip string, limit int) ([]string, error)

	// ListSince returns all requests since the given instant, newest first,
	// up to limit rows. Used for traffic statistics.
	ListSince(ctx context.Context, since time.Time, limit int) ([]TrackedRequest, error)

	MarkBlocked(ctx context.Context, id string, at time.Time) error

	// DeleteOlderThan removes rows past the retention horizon and reports how
	// many were swept.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
