package actor

import "time"

type ProxyType string

const (
	ProxyTypeDatacenter ProxyType = "datacenter"
	ProxyTypeVPN        ProxyType = "vpn"
	ProxyTypeBlocked    ProxyType = "blocked"
	ProxyTypeUnknown    ProxyType = "unknown"
)

// KnownActor is one row per IP with a verdict: a proxy classification, a
// confidence and an optional block flag. Rows are upserted whenever a scorer
// newly classifies an IP or an operator blocks/unblocks one.
type KnownActor struct {
	IPAddress       string    `json:"ip_address" gorm:"primaryKey"`
	ProxyType       ProxyType `json:"proxy_type"`
	ConfidenceScore int       `json:"confidence_score"`
	IsBlocked       bool      `json:"is_blocked" gorm:"index"`
	AutoBlocked     bool      `json:"auto_blocked"`
	Reason          string    `json:"reason"`
	DetectedAt      time.Time `json:"detected_at"`
}

func (a KnownActor) TableName() string {
	return "public.known_actors"
}
