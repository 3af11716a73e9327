package ratelimit

import (
	"context"
	"sort"
	"time"
)

// IPCount is one row of the top-talkers table.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// TrafficStats summarizes the request log for the operator dashboard.
type TrafficStats struct {
	Since              time.Time `json:"since"`
	TotalRequests      int       `json:"total_requests"`
	UniqueIPs          int       `json:"unique_ips"`
	BlockedRequests    int       `json:"blocked_requests"`
	SuspiciousRequests int       `json:"suspicious_requests"`
	TopIPs             []IPCount `json:"top_ips"`
}

const statsScanLimit = 10000

// Stats aggregates recent traffic. Suspicious means a recorded score of 70 or
// more.
func (l *Limiter) Stats(ctx context.Context, window time.Duration) (*TrafficStats, error) {
	since := l.now().Add(-window)
	records, err := l.repo.ListSince(ctx, since, statsScanLimit)
	if err != nil {
		return nil, err
	}

	stats := &TrafficStats{Since: since, TotalRequests: len(records)}
	perIP := make(map[string]int)
	for _, r := range records {
		perIP[r.IPAddress]++
		if r.Blocked {
			stats.BlockedRequests++
		}
		if r.SuspiciousScore >= 70 {
			stats.SuspiciousRequests++
		}
	}
	stats.UniqueIPs = len(perIP)

	for ip, count := range perIP {
		stats.TopIPs = append(stats.TopIPs, IPCount{IP: ip, Count: count})
	}
	sort.Slice(stats.TopIPs, func(i, j int) bool {
		if stats.TopIPs[i].Count != stats.TopIPs[j].Count {
			return stats.TopIPs[i].Count > stats.TopIPs[j].Count
		}
		return stats.TopIPs[i].IP < stats.TopIPs[j].IP
	})
	if len(stats.TopIPs) > 10 {
		stats.TopIPs = stats.TopIPs[:10]
	}
	return stats, nil
}
