package useragent

import (
	"context"
	"fmt"
	"strings"

	"github.com/avct/uasurfer"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
)

const SignalName = "user_agent"

var automationMarkers = []string{
	"bot", "crawler", "spider", "scraper",
	"curl", "wget", "python", "requests",
	"scrapy", "selenium", "headless", "phantomjs",
}

var browserMarkers = []string{
	"mozilla", "chrome", "firefox", "safari", "edge", "opera",
}

// Scorer rates a raw user-agent string. Pure function over its input: no
// I/O, no side effects.
type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

func (s *Scorer) Name() string {
	return SignalName
}

func (s *Scorer) Score(_ context.Context, meta types.RequestMeta) scoring.Result {
	result := scoring.Result{Signal: SignalName}
	ua := meta.UserAgent

	if ua == "" {
		// Unknown is moderately suspicious, not maximal.
		result.Score = 50
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type: "missing_user_agent", Score: 50,
		})
		return result
	}

	lower := strings.ToLower(ua)
	score := 0

	for _, marker := range automationMarkers {
		if strings.Contains(lower, marker) {
			score += 60
			result.Patterns = append(result.Patterns, scoring.Pattern{
				Type: "automation_tool", Score: 60, Details: marker,
			})
			break
		}
	}

	if !containsAny(lower, browserMarkers) {
		score += 30
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type: "no_browser_marker", Score: 30,
		})
	}

	if len(ua) < 20 || len(ua) > 500 {
		score += 20
		result.Patterns = append(result.Patterns, scoring.Pattern{
			Type: "unusual_length", Score: 20, Details: fmt.Sprintf("%d chars", len(ua)),
		})
	}

	result.Score = scoring.CapScore(score)

	// Parsed browser/device enrich the audit trail without affecting the score.
	parsed := uasurfer.Parse(ua)
	if parsed.Browser.Name != uasurfer.BrowserUnknown {
		for i := range result.Patterns {
			result.Patterns[i].Details = strings.TrimSpace(
				result.Patterns[i].Details + " " + describeAgent(parsed),
			)
		}
	}
	return result
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func describeAgent(ua *uasurfer.UserAgent) string {
	return fmt.Sprintf("(%s/%s)", ua.Browser.Name.StringTrimPrefix(), ua.OS.Name.StringTrimPrefix())
}
