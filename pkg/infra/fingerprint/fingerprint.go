package fingerprint

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/shopguard/sentinel/pkg/types"
)

// Signals are the stable client characteristics a fingerprint is derived
// from. The set deliberately excludes anything per-request (timestamps,
// nonces): drift tracking assumes the same device yields the same hash on
// repeat visits.
type Signals struct {
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Platform       string
	Timezone       string
}

func FromRequest(meta types.RequestMeta) Signals {
	return Signals{
		UserAgent:      strings.ToLower(strings.TrimSpace(meta.UserAgent)),
		AcceptLanguage: meta.Header("accept-language"),
		AcceptEncoding: meta.Header("accept-encoding"),
		Platform:       meta.Header("sec-ch-ua-platform"),
		Timezone:       meta.Header("x-timezone"),
	}
}

// Hash folds the signals into a short opaque base36 token using a 32-bit
// rolling hash. Deterministic: same signals, same token.
func (s Signals) Hash() string {
	raw := s.UserAgent + "|" + s.AcceptLanguage + "|" + s.AcceptEncoding + "|" + s.Platform + "|" + s.Timezone
	return hashString(raw)
}

// Nonce produces a throwaway per-request identifier by salting the stable
// signals with the clock and a random suffix. Never use it where drift
// tracking is the goal.
func (s Signals) Nonce() string {
	raw := s.UserAgent + "|" + strconv.FormatInt(time.Now().UnixNano(), 10) +
		"|" + strconv.FormatInt(rand.Int63(), 36) // #nosec G404
	return hashString(raw)
}

func hashString(s string) string {
	var h int32
	for i := 0; i < len(s); i++ {
		h = h<<5 - h + int32(s[i])
	}
	return strconv.FormatUint(uint64(uint32(h)), 36)
}
