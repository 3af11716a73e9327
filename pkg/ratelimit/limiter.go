package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopguard/sentinel/pkg/cache"
	"github.com/shopguard/sentinel/pkg/config"
	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/shopguard/sentinel/pkg/infra/metrics"
	"github.com/sirupsen/logrus"
)

// Limit class names.
const (
	ClassGlobal    = "global"
	ClassPerIP     = "per_ip"
	ClassPerUser   = "per_user"
	ClassAPI       = "api"
	ClassAuth      = "auth"
	ClassSensitive = "sensitive"
)

// Class pairs a request budget with its trailing window.
type Class struct {
	Requests int
	Window   time.Duration
}

// DefaultClasses are the limit classes used when none are configured.
var DefaultClasses = map[string]Class{
	ClassGlobal:    {Requests: 1000, Window: time.Hour},
	ClassPerIP:     {Requests: 100, Window: time.Hour},
	ClassPerUser:   {Requests: 200, Window: time.Hour},
	ClassAPI:       {Requests: 50, Window: time.Hour},
	ClassAuth:      {Requests: 10, Window: 15 * time.Minute},
	ClassSensitive: {Requests: 5, Window: time.Hour},
}

// EndpointLimit overrides the per-IP budget for one endpoint prefix.
type EndpointLimit struct {
	Pattern  string
	Requests int
	Window   time.Duration
}

// DefaultEndpointLimits protect the endpoints worth brute-forcing.
var DefaultEndpointLimits = []EndpointLimit{
	{Pattern: "/api/auth/login", Requests: 5, Window: 15 * time.Minute},
	{Pattern: "/api/auth/register", Requests: 3, Window: time.Hour},
	{Pattern: "/api/auth/reset-password", Requests: 3, Window: time.Hour},
	{Pattern: "/api/products", Requests: 100, Window: time.Hour},
	{Pattern: "/api/admin", Requests: 20, Window: time.Hour},
}

// Result is the outcome of one limit check.
type Result struct {
	Allowed    bool
	Kind       string
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces the request budgets. Counts come from the request log, the
// single source of truth, so limits survive restarts; redis only caches
// temp-block marks. Every check fails open: a store outage must degrade to no
// limiting, not to an outage of the storefront.
type Limiter struct {
	repo      tracking.Repository
	cache     *cache.Cache
	logger    logrus.FieldLogger
	classes   map[string]Class
	endpoints []EndpointLimit
	now       func() time.Time
}

type Option func(*Limiter)

func WithTimeProvider(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(
	repo tracking.Repository,
	redisCache *cache.Cache,
	logger logrus.FieldLogger,
	cfg config.RateLimitConfig,
	opts ...Option,
) *Limiter {
	l := &Limiter{
		repo:      repo,
		cache:     redisCache,
		logger:    logger,
		classes:   parseClasses(cfg.Classes, logger),
		endpoints: parseEndpointLimits(cfg.Endpoints, logger),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	// Longest pattern wins, so /api/auth/login is matched before /api.
	sort.SliceStable(l.endpoints, func(i, j int) bool {
		return len(l.endpoints[i].Pattern) > len(l.endpoints[j].Pattern)
	})
	return l
}

func parseClasses(configured map[string]config.LimitConfig, logger logrus.FieldLogger) map[string]Class {
	classes := make(map[string]Class, len(DefaultClasses))
	for name, class := range DefaultClasses {
		classes[name] = class
	}
	for name, lc := range configured {
		window, err := time.ParseDuration(lc.Window)
		if err != nil {
			logger.WithError(err).WithField("class", name).Warn("invalid rate limit window, keeping default")
			continue
		}
		classes[name] = Class{Requests: lc.Requests, Window: window}
	}
	return classes
}

func parseEndpointLimits(configured []config.EndpointLimitConfig, logger logrus.FieldLogger) []EndpointLimit {
	if len(configured) == 0 {
		limits := make([]EndpointLimit, len(DefaultEndpointLimits))
		copy(limits, DefaultEndpointLimits)
		return limits
	}
	var limits []EndpointLimit
	for _, ec := range configured {
		window, err := time.ParseDuration(ec.Window)
		if err != nil {
			logger.WithError(err).WithField("pattern", ec.Pattern).Warn("invalid endpoint limit window, skipping")
			continue
		}
		limits = append(limits, EndpointLimit{Pattern: ec.Pattern, Requests: ec.Requests, Window: window})
	}
	return limits
}

// CheckIP enforces a named class against one IP.
func (l *Limiter) CheckIP(ctx context.Context, ip, className string) Result {
	class, ok := l.classes[className]
	if !ok {
		class = l.classes[ClassPerIP]
		className = ClassPerIP
	}
	count, err := l.repo.CountByIP(ctx, ip, l.now().Add(-class.Window))
	if err != nil {
		return l.failOpen(className, err)
	}
	return l.verdict(className, class, count)
}

// CheckUser enforces the per-user class against an authenticated user.
func (l *Limiter) CheckUser(ctx context.Context, userID string) Result {
	class := l.classes[ClassPerUser]
	count, err := l.repo.CountByUser(ctx, userID, l.now().Add(-class.Window))
	if err != nil {
		return l.failOpen(ClassPerUser, err)
	}
	return l.verdict(ClassPerUser, class, count)
}

// CheckBurst enforces the endpoint's budget at three granularities: a
// one-minute slice of the budget, a five-minute slice and the full window.
// A burst that would be fine spread over an hour is rejected when crammed
// into a minute.
func (l *Limiter) CheckBurst(ctx context.Context, ip, endpoint string) Result {
	limit := l.endpointLimit(endpoint)

	windows := []struct {
		duration time.Duration
		budget   int
	}{
		{time.Minute, burstBudget(limit.Requests, 0.10)},
		{5 * time.Minute, burstBudget(limit.Requests, 0.30)},
		{limit.Window, limit.Requests},
	}

	for _, w := range windows {
		if w.duration > limit.Window {
			continue
		}
		count, err := l.repo.CountByIPAndEndpoint(ctx, ip, limit.Pattern, l.now().Add(-w.duration))
		if err != nil {
			return l.failOpen("burst", err)
		}
		if count >= int64(w.budget) {
			metrics.RateLimitRejectionsTotal.WithLabelValues("burst").Inc()
			return Result{
				Allowed:    false,
				Kind:       "burst",
				Limit:      w.budget,
				Remaining:  0,
				RetryAfter: w.duration,
			}
		}
	}

	full := windows[len(windows)-1]
	count, _ := l.repo.CountByIPAndEndpoint(ctx, ip, limit.Pattern, l.now().Add(-full.duration))
	return Result{
		Allowed:   true,
		Kind:      "burst",
		Limit:     full.budget,
		Remaining: remaining(full.budget, count),
	}
}

// burstBudget is the sub-window share of the full budget, rounded up so tiny
// limits keep a budget of at least one.
func burstBudget(requests int, share float64) int {
	return int(math.Ceil(float64(requests) * share))
}

// endpointLimit returns the longest matching override, or the per-IP class
// applied to the endpoint itself when nothing matches.
func (l *Limiter) endpointLimit(endpoint string) EndpointLimit {
	for _, limit := range l.endpoints {
		if strings.HasPrefix(endpoint, limit.Pattern) {
			return limit
		}
	}
	perIP := l.classes[ClassPerIP]
	return EndpointLimit{Pattern: endpoint, Requests: perIP.Requests, Window: perIP.Window}
}

// CheckAdaptive shrinks the per-IP budget as suspicion grows. A score of 80
// leaves a tenth of the normal budget.
func (l *Limiter) CheckAdaptive(ctx context.Context, ip string, suspicionScore int) Result {
	class := l.classes[ClassPerIP]
	limit := int(float64(class.Requests) * adaptiveFactor(suspicionScore))
	if limit < 1 {
		limit = 1
	}

	count, err := l.repo.CountByIP(ctx, ip, l.now().Add(-class.Window))
	if err != nil {
		return l.failOpen("adaptive", err)
	}
	if count >= int64(limit) {
		metrics.RateLimitRejectionsTotal.WithLabelValues("adaptive").Inc()
		return Result{
			Allowed:    false,
			Kind:       "adaptive",
			Limit:      limit,
			RetryAfter: class.Window,
		}
	}
	return Result{Allowed: true, Kind: "adaptive", Limit: limit, Remaining: remaining(limit, count)}
}

func adaptiveFactor(score int) float64 {
	switch {
	case score >= 80:
		return 0.1
	case score >= 60:
		return 0.3
	case score >= 40:
		return 0.5
	case score >= 20:
		return 0.7
	default:
		return 1.0
	}
}

// CheckTempBlock escalates repeat offenders. Five high-severity detections in
// the last hour earn a 24h block, three earn 1h. The mark lives in redis with
// its TTL as the block duration, so expiry needs no sweeper.
func (l *Limiter) CheckTempBlock(ctx context.Context, ip string) Result {
	key := fmt.Sprintf(cache.TempBlockKeyPattern, ip)

	blocked, err := l.cache.Exists(ctx, key)
	if err != nil {
		l.logger.WithError(err).WithField("ip", ip).Warn("temp-block lookup failed, failing open")
	} else if blocked {
		ttl, terr := l.cache.Client().TTL(ctx, key).Result()
		if terr != nil {
			ttl = time.Hour
		}
		metrics.RateLimitRejectionsTotal.WithLabelValues("temp_block").Inc()
		return Result{Allowed: false, Kind: "temp_block", RetryAfter: ttl}
	}

	count, err := l.repo.CountHighSeverity(ctx, ip, 80, l.now().Add(-time.Hour))
	if err != nil {
		return l.failOpen("temp_block", err)
	}

	var duration time.Duration
	switch {
	case count >= 5:
		duration = 24 * time.Hour
	case count >= 3:
		duration = time.Hour
	default:
		return Result{Allowed: true, Kind: "temp_block"}
	}

	if err := l.cache.Set(ctx, key, l.now().Format(time.RFC3339), duration); err != nil {
		l.logger.WithError(err).WithField("ip", ip).Warn("failed to record temp block")
	}
	l.logger.WithField("ip", ip).
		WithField("high_severity_count", count).
		WithField("duration", duration).
		Warn("IP temporarily blocked")
	metrics.RateLimitRejectionsTotal.WithLabelValues("temp_block").Inc()
	return Result{Allowed: false, Kind: "temp_block", RetryAfter: duration}
}

// Headers returns the standard rate limit response headers for a result.
func Headers(r Result) map[string]string {
	headers := map[string]string{
		"X-RateLimit-Limit":     fmt.Sprintf("%d", r.Limit),
		"X-RateLimit-Remaining": fmt.Sprintf("%d", r.Remaining),
	}
	if !r.Allowed && r.RetryAfter > 0 {
		headers["Retry-After"] = fmt.Sprintf("%d", int(r.RetryAfter.Seconds()))
	}
	return headers
}

func (l *Limiter) verdict(kind string, class Class, count int64) Result {
	if count >= int64(class.Requests) {
		metrics.RateLimitRejectionsTotal.WithLabelValues(kind).Inc()
		return Result{
			Allowed:    false,
			Kind:       kind,
			Limit:      class.Requests,
			RetryAfter: class.Window,
		}
	}
	return Result{
		Allowed:   true,
		Kind:      kind,
		Limit:     class.Requests,
		Remaining: remaining(class.Requests, count),
	}
}

func (l *Limiter) failOpen(kind string, err error) Result {
	l.logger.WithError(err).WithField("kind", kind).Error("rate limit check failed, failing open")
	return Result{Allowed: true, Kind: kind}
}

func remaining(limit int, count int64) int {
	r := limit - int(count)
	if r < 0 {
		return 0
	}
	return r
}
