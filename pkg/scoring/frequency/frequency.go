package frequency

import (
	"context"
	"fmt"
	"time"

	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
)

const SignalName = "frequency"

// Scorer rates the raw one-minute request rate of an IP. The behavioral
// signal covers longer windows; this one exists to catch floods quickly.
type Scorer struct {
	repo tracking.Repository
	now  func() time.Time
}

func New(repo tracking.Repository, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{repo: repo, now: now}
}

func (s *Scorer) Name() string {
	return SignalName
}

func (s *Scorer) Score(ctx context.Context, meta types.RequestMeta) scoring.Result {
	result := scoring.Result{Signal: SignalName}

	since := s.now().Add(-time.Minute)
	count, err := s.repo.CountByIP(ctx, meta.IP, since)
	if err != nil {
		return scoring.Failed(SignalName, fmt.Errorf("counting recent requests: %w", err))
	}

	switch {
	case count > 60: // more than 1 req/sec
		result.Score = 100
	case count > 30:
		result.Score = 70
	case count > 10:
		result.Score = 40
	}

	if result.Score > 0 {
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type:    "request_flood",
			Score:   result.Score,
			Details: fmt.Sprintf("%d requests in the last minute", count),
		})
	}
	return result
}
