package types

import (
	"strings"
	"time"
)

// RequestMeta carries everything the detection pipeline knows about an
// inbound request. All string fields are attacker controlled and must be
// treated as heuristic input only.
type RequestMeta struct {
	IP        string
	UserAgent string
	Endpoint  string
	Method    string
	Referer   string
	UserID    string

	// Headers holds lower-cased header names mapped to their first value.
	Headers map[string]string

	// FormData holds submitted form fields, used by honeypot checks.
	FormData map[string]string

	// FormStartedAt is the client-reported instant the form was rendered.
	// Zero when unknown.
	FormStartedAt time.Time

	ReceivedAt time.Time
}

// Header returns the value for a lower-cased header name.
func (m RequestMeta) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[strings.ToLower(name)]
}

// Recommendation is the graduated response tier derived from a suspicion score.
type Recommendation string

const (
	BlockImmediately Recommendation = "BLOCK_IMMEDIATELY"
	RequireCaptcha   Recommendation = "REQUIRE_CAPTCHA"
	RateLimitStrict  Recommendation = "RATE_LIMIT_STRICT"
	MonitorClosely   Recommendation = "MONITOR_CLOSELY"
	AllowNormal      Recommendation = "ALLOW_NORMAL"
)

// Decision is the outcome of a single detection call.
type Decision struct {
	Allowed        bool           `json:"allowed"`
	NeedsChallenge bool           `json:"needs_challenge"`
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	RequestID      string         `json:"request_id,omitempty"`
}
