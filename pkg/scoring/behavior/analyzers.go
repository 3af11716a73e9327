package behavior

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/shopguard/sentinel/pkg/types"
)

var errAllAnalysesFailed = errors.New("all behavioral analyses failed")

var sensitiveEndpointMarkers = []string{
	"admin", "config", "auth", "login", "password", "users", "dashboard",
}

var errHuntingMarkers = []string{
	"404", "error", "notfound", "missing",
}

// analyzeFrequency compares request counts against each configured window and
// keeps the worst margin. Score grows linearly with how far past the
// threshold the count is, capped at 80 per window.
func (s *Scorer) analyzeFrequency(ctx context.Context, meta types.RequestMeta) (Analysis, error) {
	worst := Analysis{Type: "high_frequency"}
	for _, w := range s.windows {
		count, err := s.repo.CountByIP(ctx, meta.IP, s.now().Add(-w.Duration))
		if err != nil {
			return Analysis{}, fmt.Errorf("counting %s window: %w", w.Duration, err)
		}
		if count <= int64(w.Threshold) {
			continue
		}
		margin := float64(count)/float64(w.Threshold) - 1
		score := int(margin * 50)
		if score > 80 {
			score = 80
		}
		if score > worst.Score {
			worst = Analysis{
				Suspicious: true,
				Score:      score,
				Type:       "high_frequency",
				Details:    fmt.Sprintf("%d requests in %s (threshold %d)", count, w.Duration, w.Threshold),
			}
		}
	}
	return worst, nil
}

// analyzeUserAgentConsistency looks at how the IP presents itself over the
// last day. Rapid rotation, generic strings and automation markers each add
// to the score.
func (s *Scorer) analyzeUserAgentConsistency(ctx context.Context, meta types.RequestMeta) (Analysis, error) {
	history, err := s.repo.RecentByIP(ctx, meta.IP, s.now().Add(-24*time.Hour), 50)
	if err != nil {
		return Analysis{}, fmt.Errorf("loading user agent history: %w", err)
	}
	if len(history) < 2 {
		return Analysis{Type: "user_agent_rotation"}, nil
	}

	distinct := make(map[string]struct{})
	generic, automated := 0, 0
	for _, req := range history {
		ua := req.UserAgent
		distinct[ua] = struct{}{}
		if isGenericUserAgent(ua) {
			generic++
		}
		lower := strings.ToLower(ua)
		if strings.Contains(lower, "bot") || strings.Contains(lower, "crawler") || strings.Contains(lower, "spider") {
			automated++
		}
	}

	score := 0
	var details []string
	rotation := float64(len(distinct)) / float64(len(history))
	if len(distinct) > 10 && rotation > 0.3 {
		score += 60
		details = append(details, fmt.Sprintf("%d user agents over %d requests", len(distinct), len(history)))
	}
	if generic > 2 {
		score += 30
		details = append(details, fmt.Sprintf("%d generic user agents", generic))
	}
	if automated > 0 {
		score += 40
		details = append(details, "automation markers in history")
	}

	return Analysis{
		Suspicious: score > 0,
		Score:      score,
		Type:       "user_agent_rotation",
		Details:    strings.Join(details, "; "),
	}, nil
}

func isGenericUserAgent(ua string) bool {
	return len(ua) < 20 || ua == "Mozilla/5.0" || !strings.Contains(ua, "/")
}

var leadingNumber = regexp.MustCompile(`\d+`)

// analyzeSequentialPatterns detects systematic crawling: broad endpoint
// coverage with few repeats, machine-regular timing, or endpoints visited in
// alphabetical or incrementing-ID order.
func (s *Scorer) analyzeSequentialPatterns(ctx context.Context, meta types.RequestMeta) (Analysis, error) {
	history, err := s.repo.ListByIP(ctx, meta.IP, s.now().Add(-time.Hour), 100)
	if err != nil {
		return Analysis{}, fmt.Errorf("loading request sequence: %w", err)
	}
	if len(history) < 5 {
		return Analysis{Type: "sequential_patterns"}, nil
	}

	score := 0
	var details []string

	endpointCounts := make(map[string]int)
	for _, req := range history {
		endpointCounts[req.Endpoint]++
	}
	if len(endpointCounts) > 20 {
		total := 0
		for _, c := range endpointCounts {
			total += c
		}
		if float64(total)/float64(len(endpointCounts)) < 3 {
			score += 70
			details = append(details, fmt.Sprintf("%d endpoints with few repeats", len(endpointCounts)))
		}
	}

	if mean, variance, ok := timingStats(history); ok && variance < 1000 && mean < 5000 {
		score += 50
		details = append(details, fmt.Sprintf("machine-regular timing (mean %.0fms)", mean))
	}

	endpoints := make([]string, 0, len(history))
	for _, req := range history {
		endpoints = append(endpoints, req.Endpoint)
	}
	if isAlphabetical(endpoints) || isIncrementing(endpoints) {
		score += 60
		details = append(details, "ordered endpoint traversal")
	}

	return Analysis{
		Suspicious: score > 0,
		Score:      score,
		Type:       "sequential_patterns",
		Details:    strings.Join(details, "; "),
	}, nil
}

// timingStats returns mean and variance of inter-request gaps in
// milliseconds. Requires at least two requests.
func timingStats(history []tracking.TrackedRequest) (mean, variance float64, ok bool) {
	if len(history) < 2 {
		return 0, 0, false
	}
	diffs := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		diffs = append(diffs, float64(history[i].Timestamp.Sub(history[i-1].Timestamp).Milliseconds()))
	}
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(len(diffs))
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(diffs))
	return mean, variance, true
}

func isAlphabetical(endpoints []string) bool {
	if len(endpoints) < 3 {
		return false
	}
	if len(endpoints) > 10 {
		endpoints = endpoints[:10]
	}
	for i := 1; i < len(endpoints); i++ {
		if endpoints[i] < endpoints[i-1] {
			return false
		}
	}
	return true
}

// isIncrementing reports whether the numeric IDs embedded in consecutive
// endpoints form a +1 arithmetic run, the signature of ID enumeration.
func isIncrementing(endpoints []string) bool {
	if len(endpoints) > 10 {
		endpoints = endpoints[:10]
	}
	var numbers []int
	for _, e := range endpoints {
		match := leadingNumber.FindString(e)
		if match == "" {
			continue
		}
		n, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	if len(numbers) < 3 {
		return false
	}
	for i := 1; i < len(numbers); i++ {
		if numbers[i] != numbers[i-1]+1 {
			return false
		}
	}
	return true
}

// analyzeTimePatterns flags activity profiles no human keeps: around-the-clock
// requests, heavy off-hours traffic, or an eerily flat hourly distribution.
func (s *Scorer) analyzeTimePatterns(ctx context.Context, meta types.RequestMeta) (Analysis, error) {
	history, err := s.repo.ListByIP(ctx, meta.IP, s.now().Add(-7*24*time.Hour), 1000)
	if err != nil {
		return Analysis{}, fmt.Errorf("loading weekly history: %w", err)
	}
	if len(history) < 10 {
		return Analysis{Type: "time_patterns"}, nil
	}

	var hourCounts [24]int
	offHours := 0
	for _, req := range history {
		hour := req.Timestamp.UTC().Hour()
		hourCounts[hour]++
		if hour <= 6 {
			offHours++
		}
	}

	activeHours := 0
	for _, c := range hourCounts {
		if c > 0 {
			activeHours++
		}
	}

	score := 0
	var details []string
	if activeHours > 20 {
		score += 40
		details = append(details, fmt.Sprintf("active in %d of 24 hours", activeHours))
	}
	if float64(offHours)/float64(len(history)) > 0.3 {
		score += 30
		details = append(details, "heavy off-hours activity")
	}
	if hourlyVariance(hourCounts, len(history)) < 2 {
		score += 25
		details = append(details, "unnaturally even hourly distribution")
	}

	return Analysis{
		Suspicious: score > 0,
		Score:      score,
		Type:       "time_patterns",
		Details:    strings.Join(details, "; "),
	}, nil
}

func hourlyVariance(hourCounts [24]int, total int) float64 {
	mean := float64(total) / 24
	variance := 0.0
	for _, c := range hourCounts {
		variance += (float64(c) - mean) * (float64(c) - mean)
	}
	return variance / 24
}

// analyzeEndpointTargeting measures interest in sensitive surfaces, broad API
// enumeration and error-page hunting over the last hour.
func (s *Scorer) analyzeEndpointTargeting(ctx context.Context, meta types.RequestMeta) (Analysis, error) {
	history, err := s.repo.RecentByIP(ctx, meta.IP, s.now().Add(-time.Hour), 200)
	if err != nil {
		return Analysis{}, fmt.Errorf("loading endpoint history: %w", err)
	}
	if len(history) < 5 {
		return Analysis{Type: "endpoint_targeting"}, nil
	}

	sensitive, errHunting := 0, 0
	apiEndpoints := make(map[string]struct{})
	for _, req := range history {
		lower := strings.ToLower(req.Endpoint)
		if containsAny(lower, sensitiveEndpointMarkers) {
			sensitive++
		}
		if containsAny(lower, errHuntingMarkers) {
			errHunting++
		}
		if strings.Contains(lower, "/api/") {
			apiEndpoints[lower] = struct{}{}
		}
	}

	score := 0
	var details []string
	if sensitive > 0 {
		add := sensitive * 15
		if add > 60 {
			add = 60
		}
		score += add
		details = append(details, fmt.Sprintf("%d sensitive endpoint hits", sensitive))
	}
	if len(apiEndpoints) > 10 {
		score += 40
		details = append(details, fmt.Sprintf("%d distinct api endpoints", len(apiEndpoints)))
	}
	if errHunting > 2 {
		score += 30
		details = append(details, "probing for error pages")
	}

	return Analysis{
		Suspicious: score > 0,
		Score:      score,
		Type:       "endpoint_targeting",
		Details:    strings.Join(details, "; "),
	}, nil
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
