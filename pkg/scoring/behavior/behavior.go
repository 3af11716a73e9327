package behavior

import (
	"context"
	"time"

	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
)

const SignalName = "behavior"

// Analysis is the outcome of one behavioral sub-analysis.
type Analysis struct {
	Suspicious bool
	Score      int
	Type       string
	Details    string
}

// GeoAnalyzer detects geographic anomalies. The default implementation is a
// no-op so a real geolocation integration can be plugged in without touching
// the aggregator.
type GeoAnalyzer interface {
	Analyze(ctx context.Context, meta types.RequestMeta) (Analysis, error)
}

type noopGeoAnalyzer struct{}

func (noopGeoAnalyzer) Analyze(context.Context, types.RequestMeta) (Analysis, error) {
	return Analysis{Type: "geographic_anomaly"}, nil
}

// Window pairs a trailing window with its request-count threshold.
type Window struct {
	Duration  time.Duration
	Threshold int
}

// DefaultWindows are the frequency windows used when none are configured.
var DefaultWindows = []Window{
	{Duration: 1 * time.Minute, Threshold: 10},
	{Duration: 5 * time.Minute, Threshold: 30},
	{Duration: 15 * time.Minute, Threshold: 100},
	{Duration: 60 * time.Minute, Threshold: 200},
}

// Scorer aggregates six behavioral sub-analyses over an IP's request
// history. Sub-scores are summed, not averaged, and capped at 100.
type Scorer struct {
	repo    tracking.Repository
	logger  logrus.FieldLogger
	geo     GeoAnalyzer
	windows []Window
	now     func() time.Time
}

func New(repo tracking.Repository, logger logrus.FieldLogger, opts ...Option) *Scorer {
	s := &Scorer{
		repo:    repo,
		logger:  logger,
		geo:     noopGeoAnalyzer{},
		windows: DefaultWindows,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Option func(*Scorer)

func WithGeoAnalyzer(geo GeoAnalyzer) Option {
	return func(s *Scorer) { s.geo = geo }
}

func WithWindows(windows []Window) Option {
	return func(s *Scorer) { s.windows = windows }
}

func WithTimeProvider(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func (s *Scorer) Name() string {
	return SignalName
}

func (s *Scorer) Score(ctx context.Context, meta types.RequestMeta) scoring.Result {
	result := scoring.Result{Signal: SignalName}

	analyses := []func(context.Context, types.RequestMeta) (Analysis, error){
		s.analyzeFrequency,
		s.analyzeUserAgentConsistency,
		s.analyzeSequentialPatterns,
		s.analyzeTimePatterns,
		s.analyzeEndpointTargeting,
		s.geo.Analyze,
	}

	total := 0
	failures := 0
	for _, analyze := range analyses {
		a, err := analyze(ctx, meta)
		if err != nil {
			failures++
			s.logger.WithError(err).WithField("ip", meta.IP).Warn("behavioral analysis failed")
			continue
		}
		if !a.Suspicious {
			continue
		}
		total += a.Score
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type:    a.Type,
			Score:   a.Score,
			Details: a.Details,
		})
	}
	if failures == len(analyses) {
		return scoring.Failed(SignalName, errAllAnalysesFailed)
	}

	result.Score = scoring.CapScore(total)
	return result
}

// RiskLevel maps a behavioral score to an operator-facing severity.
func RiskLevel(score int) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 40:
		return "medium"
	case score >= 20:
		return "low"
	default:
		return "minimal"
	}
}

var patternRecommendations = map[string]string{
	"high_frequency":      "enable strict rate limiting",
	"user_agent_rotation": "validate user agents at the edge",
	"sequential_patterns": "monitor for systematic scanning",
	"endpoint_targeting":  "harden sensitive endpoints",
	"time_patterns":       "review activity windows for this IP",
	"geographic_anomaly":  "verify request origin",
}

// Recommendations returns a de-duplicated action list for the triggered
// patterns.
func Recommendations(patterns []scoring.Pattern) []string {
	seen := make(map[string]struct{})
	var recs []string
	for _, p := range patterns {
		rec, ok := patternRecommendations[p.Type]
		if !ok {
			rec = "monitor this IP closely"
		}
		if _, dup := seen[rec]; dup {
			continue
		}
		seen[rec] = struct{}{}
		recs = append(recs, rec)
	}
	return recs
}
