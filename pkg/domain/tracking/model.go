package tracking

import (
	"time"

	"github.com/google/uuid"
)

// TrackedRequest is one row per inbound request. SuspiciousScore is computed
// once at insert time and never recomputed; only Blocked/BlockedAt mutate
// afterwards.
type TrackedRequest struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	IPAddress       string     `json:"ip_address" gorm:"index:idx_tracking_ip_ts,priority:1"`
	UserAgent       string     `json:"user_agent"`
	Endpoint        string     `json:"endpoint" gorm:"index"`
	Method          string     `json:"method"`
	Referer         string     `json:"referer"`
	UserID          string     `json:"user_id" gorm:"index"`
	FingerprintHash string     `json:"fingerprint_hash"`
	SuspiciousScore int        `json:"suspicious_score"`
	Blocked         bool       `json:"blocked"`
	BlockedAt       *time.Time `json:"blocked_at"`
	Timestamp       time.Time  `json:"timestamp" gorm:"index:idx_tracking_ip_ts,priority:2"`
}

func (t TrackedRequest) TableName() string {
	return "public.request_tracking"
}
