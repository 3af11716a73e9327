package common

import "time"

const (
	// RetentionHorizon is how long tracked requests are kept before the
	// cleanup sweep removes them.
	RetentionHorizon = 7 * 24 * time.Hour

	// ScoreChallengeHeader is set on responses that require a client challenge.
	ScoreChallengeHeader = "X-Sentinel-Challenge"

	// SuspicionScoreHeader reports the computed score to downstream layers.
	SuspicionScoreHeader = "X-Sentinel-Score"
)

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
}
