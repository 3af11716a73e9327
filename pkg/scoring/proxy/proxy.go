package proxy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopguard/sentinel/pkg/domain/actor"
	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
)

const SignalName = "proxy"

// isProxy verdicts start at this combined score.
const proxyThreshold = 50

var proxyHeaders = []string{
	"x-forwarded-for",
	"x-real-ip",
	"x-proxy-id",
	"x-forwarded-host",
	"via",
	"forwarded",
	"x-cluster-client-ip",
	"x-forwarded-proto",
	"x-originating-ip",
	"x-remote-ip",
}

// DefaultDatacenterPrefixes is a coarse stand-in for a commercial hosting-IP
// feed. Prefix match only; false positives are tolerable because the score
// contribution is margin-based.
var DefaultDatacenterPrefixes = []string{
	"104.", "107.", "162.", "172.", "185.", "188.", "192.", "195.",
}

// Verdict is the proxy classification attached to a scoring result.
type Verdict struct {
	IsProxy    bool
	ProxyType  actor.ProxyType
	Confidence int
}

// Scorer estimates whether an IP is fronted by a proxy, VPN or datacenter
// exit, combining the known-actor table, header signatures, address
// heuristics and this IP's recent reputation.
type Scorer struct {
	actors             actor.Store
	repo               tracking.Repository
	logger             logrus.FieldLogger
	datacenterPrefixes []string
	now                func() time.Time
}

func New(
	actors actor.Store,
	repo tracking.Repository,
	logger logrus.FieldLogger,
	datacenterPrefixes []string,
	now func() time.Time,
) *Scorer {
	if len(datacenterPrefixes) == 0 {
		datacenterPrefixes = DefaultDatacenterPrefixes
	}
	if now == nil {
		now = time.Now
	}
	return &Scorer{
		actors:             actors,
		repo:               repo,
		logger:             logger,
		datacenterPrefixes: datacenterPrefixes,
		now:                now,
	}
}

func (s *Scorer) Name() string {
	return SignalName
}

func (s *Scorer) Score(ctx context.Context, meta types.RequestMeta) scoring.Result {
	result := scoring.Result{Signal: SignalName}
	score := 0
	proxyType := actor.ProxyTypeUnknown

	known, err := s.actors.Get(ctx, meta.IP)
	if err != nil {
		return scoring.Failed(SignalName, fmt.Errorf("known actor lookup: %w", err))
	}
	if known != nil {
		score += known.ConfidenceScore
		proxyType = known.ProxyType
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type:    "known_proxy",
			Score:   known.ConfidenceScore,
			Details: string(known.ProxyType),
		})
	}

	headerScore, headerPatterns := analyzeHeaders(meta)
	score += headerScore
	result.Patterns = append(result.Patterns, headerPatterns...)

	if s.isDatacenterIP(meta.IP) {
		score += 60
		proxyType = actor.ProxyTypeDatacenter
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type: "datacenter_ip", Score: 60,
		})
		// Remember the classification so future lookups short-circuit on the
		// known-actor table. Classify never touches the block columns.
		if err := s.actors.Classify(ctx, &actor.KnownActor{
			IPAddress:       meta.IP,
			ProxyType:       actor.ProxyTypeDatacenter,
			ConfidenceScore: 60,
			DetectedAt:      s.now(),
		}); err != nil {
			s.logger.WithError(err).WithField("ip", meta.IP).Warn("failed to record datacenter IP")
		}
	}

	if geoInconsistent(meta) {
		score += 40
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type: "geo_inconsistency", Score: 40,
		})
	}

	repScore, repDetails, err := s.reputation(ctx, meta.IP)
	if err != nil {
		// Reputation is best effort; a store hiccup must not zero the rest
		// of the signal.
		s.logger.WithError(err).WithField("ip", meta.IP).Warn("ip reputation check failed")
	} else if repScore > 0 {
		score += repScore
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type: "bad_reputation", Score: repScore, Details: repDetails,
		})
	}

	result.Score = scoring.CapScore(score)
	if result.Score >= proxyThreshold {
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type:    "proxy_verdict",
			Score:   0,
			Details: fmt.Sprintf("type=%s confidence=%d", proxyType, result.Score),
		})
	}
	return result
}

// Verdict recomputes the classification from a finished result.
func (s *Scorer) Verdict(result scoring.Result) Verdict {
	v := Verdict{Confidence: result.Score, IsProxy: result.Score >= proxyThreshold}
	v.ProxyType = actor.ProxyTypeUnknown
	for _, p := range result.Patterns {
		switch p.Type {
		case "datacenter_ip":
			v.ProxyType = actor.ProxyTypeDatacenter
		case "known_proxy":
			if v.ProxyType == actor.ProxyTypeUnknown {
				v.ProxyType = actor.ProxyType(p.Details)
			}
		}
	}
	return v
}

func analyzeHeaders(meta types.RequestMeta) (int, []scoring.Pattern) {
	score := 0
	var patterns []scoring.Pattern

	for _, header := range proxyHeaders {
		if meta.Header(header) != "" {
			score += 15
			patterns = append(patterns, scoring.Pattern{
				Type: "proxy_header", Score: 15, Details: header,
			})
		}
	}

	if hasHeaderManipulation(meta) {
		score += 25
		patterns = append(patterns, scoring.Pattern{
			Type: "header_manipulation", Score: 25,
		})
	}

	if meta.Header("accept-language") == "" {
		score += 10
		patterns = append(patterns, scoring.Pattern{
			Type: "missing_accept_language", Score: 10,
		})
	}
	if meta.Header("accept-encoding") == "" {
		score += 10
		patterns = append(patterns, scoring.Pattern{
			Type: "missing_accept_encoding", Score: 10,
		})
	}

	// Header analysis is capped on its own before combining with the other
	// heuristics.
	return scoring.CapScore(score), patterns
}

func hasHeaderManipulation(meta types.RequestMeta) bool {
	ua := meta.UserAgent
	if len(ua) < 10 || ua == "Mozilla/5.0" {
		return true
	}
	if strings.Contains(meta.Header("accept-language"), "*") {
		return true
	}
	return false
}

// geoInconsistent is a best-effort check for gross language/timezone
// mismatch. With no geolocation service wired up it only catches obvious
// giveaways and never errors.
func geoInconsistent(meta types.RequestMeta) bool {
	acceptLanguage := meta.Header("accept-language")
	timezone := meta.Header("x-timezone")
	if timezone == "" {
		return false
	}
	return strings.Contains(acceptLanguage, "en-US") && !strings.Contains(timezone, "America")
}

func (s *Scorer) isDatacenterIP(ip string) bool {
	for _, prefix := range s.datacenterPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

func (s *Scorer) reputation(ctx context.Context, ip string) (int, string, error) {
	since := s.now().Add(-24 * time.Hour)
	scores, err := s.repo.TopScoresByIP(ctx, ip, since, 10)
	if err != nil {
		return 0, "", err
	}
	if len(scores) == 0 {
		return 0, "", nil
	}

	sum, high := 0, 0
	for _, sc := range scores {
		sum += sc
		if sc > 70 {
			high++
		}
	}
	avg := sum / len(scores)

	score := 0
	if avg > 50 {
		score += 30
	}
	if high > 5 {
		score += 40
	}
	return score, fmt.Sprintf("avg=%d high=%d", avg, high), nil
}
