package honeypot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
)

const SignalName = "honeypot"

// Violation types reported in the result patterns.
const (
	TrapURLAccess      = "TRAP_URL_ACCESS"
	HiddenFieldFilled  = "HIDDEN_FIELD_FILLED"
	MissingJSChallenge = "MISSING_JS_CHALLENGE"
	RobotsViolation    = "ROBOTS_VIOLATION"
	TimingViolation    = "TIMING_VIOLATION"
	CSSTrapTriggered   = "CSS_TRAP_TRIGGERED"
)

// Paths a legitimate UI never links to. Touching one is close to proof of
// automated probing.
var trapURLs = []string{
	"/admin", "/admin/", "/admin-login",
	"/wp-admin", "/wp-login.php", "/administrator",
	"/phpmyadmin", "/mysql", "/database",
	"/api/internal", "/api/admin", "/api/secret",
	"/robots.txt.backup", "/sitemap.xml.backup",
	"/.env", "/.git", "/config.php", "/config.json",
	"/backup", "/test", "/dev", "/staging",
	"/hidden", "/secret", "/private", "/internal",
}

// Form fields rendered invisible to humans. Bots fill everything.
var honeypotFields = []string{
	"website", "url", "contact", "phone_number", "fax",
	"address_line_3", "middle_name_2", "company_website",
	"business_phone", "honeypot", "bot_trap", "hidden_field",
	"do_not_fill", "leave_empty", "spam_protection",
}

var cssTrapFields = []string{
	"css_hidden", "invisible_field", "display_none",
	"off_screen", "zero_opacity", "negative_tab_index",
}

// Endpoints exempt from the JS-challenge requirement.
var jsChallengeExempt = []string{
	"/api/public", "/health", "/status", "/robots.txt", "/sitemap.xml",
}

// Paths the published robots policy disallows.
var robotsDisallowed = []string{
	"/admin", "/private", "/internal", "/api/admin",
	"/dashboard/bot-detection", "/dashboard/traffic",
}

// Scorer runs six independent trap checks and sums their scores. It needs no
// history: every check is a pure function of the request itself.
type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

func (s *Scorer) Name() string {
	return SignalName
}

func (s *Scorer) Score(_ context.Context, meta types.RequestMeta) scoring.Result {
	result := scoring.Result{Signal: SignalName}
	score := 0

	if p, ok := checkTrapURL(meta.Endpoint); ok {
		score += p.Score
		result.Patterns = append(result.Patterns, p)
	}
	if p, ok := checkHiddenFields(meta.FormData); ok {
		score += p.Score
		result.Patterns = append(result.Patterns, p)
	}
	if p, ok := checkJSChallenge(meta); ok {
		score += p.Score
		result.Patterns = append(result.Patterns, p)
	}
	if p, ok := checkRobots(meta.Endpoint); ok {
		score += p.Score
		result.Patterns = append(result.Patterns, p)
	}
	for _, p := range checkTiming(meta) {
		score += p.Score
		result.Patterns = append(result.Patterns, p)
	}
	if p, ok := checkCSSTraps(meta.FormData); ok {
		score += p.Score
		result.Patterns = append(result.Patterns, p)
	}

	result.Score = scoring.CapScore(score)
	return result
}

func checkTrapURL(endpoint string) (scoring.Pattern, bool) {
	lower := strings.ToLower(endpoint)
	for _, trap := range trapURLs {
		if strings.Contains(lower, trap) {
			return scoring.Pattern{Type: TrapURLAccess, Score: 80, Details: trap}, true
		}
	}
	return scoring.Pattern{}, false
}

func checkHiddenFields(form map[string]string) (scoring.Pattern, bool) {
	filled := filledFields(form, honeypotFields)
	if len(filled) == 0 {
		return scoring.Pattern{}, false
	}
	return scoring.Pattern{
		Type:    HiddenFieldFilled,
		Score:   len(filled) * 40,
		Details: strings.Join(filled, ","),
	}, true
}

func checkJSChallenge(meta types.RequestMeta) (scoring.Pattern, bool) {
	if !strings.Contains(meta.Endpoint, "/api/") {
		return scoring.Pattern{}, false
	}
	for _, exempt := range jsChallengeExempt {
		if strings.Contains(meta.Endpoint, exempt) {
			return scoring.Pattern{}, false
		}
	}
	hasChallenge := meta.Header("x-js-challenge") != "" ||
		meta.Header("x-csrf-token") != "" ||
		meta.Header("x-requested-with") == "XMLHttpRequest"
	if hasChallenge {
		return scoring.Pattern{}, false
	}
	return scoring.Pattern{Type: MissingJSChallenge, Score: 30}, true
}

func checkRobots(endpoint string) (scoring.Pattern, bool) {
	lower := strings.ToLower(endpoint)
	for _, path := range robotsDisallowed {
		if strings.HasPrefix(lower, path) {
			return scoring.Pattern{Type: RobotsViolation, Score: 25, Details: path}, true
		}
	}
	return scoring.Pattern{}, false
}

// checkTiming flags forms submitted faster than a human could fill them.
// Both thresholds may stack.
func checkTiming(meta types.RequestMeta) []scoring.Pattern {
	if len(meta.FormData) == 0 || meta.FormStartedAt.IsZero() || meta.ReceivedAt.IsZero() {
		return nil
	}
	elapsed := meta.ReceivedAt.Sub(meta.FormStartedAt)

	var patterns []scoring.Pattern
	if elapsed < 2*time.Second {
		patterns = append(patterns, scoring.Pattern{
			Type: TimingViolation, Score: 35, Details: fmt.Sprintf("submitted in %s", elapsed),
		})
	}
	if elapsed < 500*time.Millisecond {
		patterns = append(patterns, scoring.Pattern{
			Type: TimingViolation, Score: 45, Details: "impossibly fast submission",
		})
	}
	return patterns
}

func checkCSSTraps(form map[string]string) (scoring.Pattern, bool) {
	triggered := filledFields(form, cssTrapFields)
	if len(triggered) == 0 {
		return scoring.Pattern{}, false
	}
	return scoring.Pattern{
		Type:    CSSTrapTriggered,
		Score:   len(triggered) * 50,
		Details: strings.Join(triggered, ","),
	}, true
}

func filledFields(form map[string]string, names []string) []string {
	if len(form) == 0 {
		return nil
	}
	var filled []string
	for _, name := range names {
		if strings.TrimSpace(form[name]) != "" {
			filled = append(filled, name)
		}
	}
	return filled
}
