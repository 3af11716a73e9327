package telemetry

import (
	"context"
	"time"
)

// Event is one detection outcome shipped to external sinks for offline
// analysis. It mirrors what the audit log stores, plus the per-signal
// breakdown.
type Event struct {
	RequestID      string         `json:"request_id"`
	IP             string         `json:"ip"`
	UserID         string         `json:"user_id,omitempty"`
	Endpoint       string         `json:"endpoint"`
	Method         string         `json:"method"`
	Fingerprint    string         `json:"fingerprint,omitempty"`
	Score          int            `json:"score"`
	Recommendation string         `json:"recommendation"`
	Blocked        bool           `json:"blocked"`
	AutoBlocked    bool           `json:"auto_blocked"`
	Signals        map[string]int `json:"signals,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Exporter ships detection events to one sink. Implementations are built
// from untyped settings so sinks can be enabled purely through config.
type Exporter interface {
	Name() string
	ValidateConfig(settings map[string]interface{}) error
	WithSettings(settings map[string]interface{}) (Exporter, error)
	Handle(ctx context.Context, evt *Event) error
	Close()
}
