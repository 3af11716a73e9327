package fingerprint

import (
	"context"
	"fmt"

	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/sirupsen/logrus"
)

const historyDepth = 20

// DriftResult describes how unstable an IP's fingerprints have been.
type DriftResult struct {
	Suspicious         bool
	Score              int
	UniqueFingerprints int
	TotalRequests      int
	NewFingerprint     bool
	Reasons            []string
}

// Tracker measures fingerprint drift per IP: many distinct fingerprints from
// one address usually means user-agent spoofing or a shared exit node.
type Tracker struct {
	repo   tracking.Repository
	logger logrus.FieldLogger
}

func NewTracker(repo tracking.Repository, logger logrus.FieldLogger) *Tracker {
	return &Tracker{repo: repo, logger: logger}
}

// TrackChanges scores the drift of newHash against the last fingerprints
// seen for ip. A first-ever request is never suspicious.
func (t *Tracker) TrackChanges(ctx context.Context, ip, newHash string) (DriftResult, error) {
	history, err := t.repo.RecentFingerprints(ctx, ip, historyDepth)
	if err != nil {
		return DriftResult{}, fmt.Errorf("fetching fingerprint history: %w", err)
	}
	if len(history) == 0 {
		return DriftResult{Reasons: []string{"first request from IP"}}, nil
	}

	unique := make(map[string]struct{}, len(history))
	for _, h := range history {
		unique[h] = struct{}{}
	}
	_, seen := unique[newHash]

	result := DriftResult{
		UniqueFingerprints: len(unique),
		TotalRequests:      len(history),
		NewFingerprint:     !seen,
	}

	if len(unique) > 3 {
		result.Score += 25
		result.Reasons = append(result.Reasons, fmt.Sprintf("multiple fingerprints from IP (%d)", len(unique)))
	}
	if len(unique) > 1 && len(history) < 10 {
		result.Score += 35
		result.Reasons = append(result.Reasons, "rapid fingerprint changes")
	}
	if !seen {
		result.Score += 15
		result.Reasons = append(result.Reasons, "new fingerprint from known IP")
	}
	if result.Score > 100 {
		result.Score = 100
	}
	result.Suspicious = result.Score > 30

	if result.Suspicious {
		t.logger.WithFields(logrus.Fields{
			"ip":           ip,
			"score":        result.Score,
			"fingerprints": result.UniqueFingerprints,
		}).Debug("fingerprint drift detected")
	}
	return result, nil
}
