package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopguard/sentinel/pkg/cache"
	"github.com/shopguard/sentinel/pkg/domain/actor"
	"github.com/shopguard/sentinel/pkg/domain/telemetry"
	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/shopguard/sentinel/pkg/infra/fingerprint"
	infratelemetry "github.com/shopguard/sentinel/pkg/infra/telemetry"
	"github.com/shopguard/sentinel/pkg/ratelimit"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
)

// blockedCacheTTL bounds how stale a cached block verdict can get after an
// operator unblocks an IP.
const blockedCacheTTL = 5 * time.Minute

// Outcome is the full result of one detection pass. Decision is what the
// middleware acts on; the rest feeds headers, logs and telemetry.
type Outcome struct {
	Decision    types.Decision
	Fingerprint string
	Drift       fingerprint.DriftResult
	RateLimit   ratelimit.Result
	Signals     []scoring.Result
}

// Detector runs the full pipeline for one request: block list, temp blocks,
// fingerprint drift, composite scoring, rate limiting, then the audit record.
// It never returns an error to the caller; any internal failure degrades to
// an allow.
type Detector struct {
	engine  *scoring.Engine
	tracker *fingerprint.Tracker
	limiter *ratelimit.Limiter
	repo    tracking.Repository
	actors  actor.Store
	cache   *cache.Cache
	emitter *infratelemetry.Emitter
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewDetector(
	engine *scoring.Engine,
	tracker *fingerprint.Tracker,
	limiter *ratelimit.Limiter,
	repo tracking.Repository,
	actors actor.Store,
	redisCache *cache.Cache,
	emitter *infratelemetry.Emitter,
	logger logrus.FieldLogger,
) *Detector {
	return &Detector{
		engine:  engine,
		tracker: tracker,
		limiter: limiter,
		repo:    repo,
		actors:  actors,
		cache:   redisCache,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

func (d *Detector) Detect(ctx context.Context, meta types.RequestMeta) Outcome {
	meta = normalize(meta, d.now())
	requestID := uuid.NewString()

	if d.isBlockedActor(ctx, meta.IP) {
		return d.deny(ctx, meta, requestID, types.BlockImmediately, 100, "ip on block list")
	}

	if tb := d.limiter.CheckTempBlock(ctx, meta.IP); !tb.Allowed {
		out := d.deny(ctx, meta, requestID, types.BlockImmediately, 100, "ip temporarily blocked")
		out.RateLimit = tb
		return out
	}

	hash := fingerprint.FromRequest(meta).Hash()
	drift, err := d.tracker.TrackChanges(ctx, meta.IP, hash)
	if err != nil {
		d.logger.WithError(err).WithField("ip", meta.IP).Warn("fingerprint drift check failed")
		drift = fingerprint.DriftResult{}
	}

	eval := d.engine.Evaluate(ctx, meta)
	if drift.Suspicious {
		d.logger.WithFields(logrus.Fields{
			"ip":      meta.IP,
			"drift":   drift.Score,
			"reasons": drift.Reasons,
		}).Info("fingerprint drift on scored request")
	}

	outcome := Outcome{
		Decision: types.Decision{
			Allowed:        !eval.ShouldBlock,
			NeedsChallenge: eval.ShouldChallenge,
			Score:          eval.Score,
			Recommendation: eval.Recommendation,
			RequestID:      requestID,
		},
		Fingerprint: hash,
		Drift:       drift,
		Signals:     eval.Results,
	}

	if outcome.Decision.Allowed {
		outcome.RateLimit = d.checkLimits(ctx, meta, eval.Score)
		if !outcome.RateLimit.Allowed {
			outcome.Decision.Allowed = false
			if outcome.Decision.Recommendation == types.AllowNormal {
				outcome.Decision.Recommendation = types.RateLimitStrict
			}
		}
	}

	d.record(ctx, meta, requestID, hash, eval.Score, !outcome.Decision.Allowed)
	d.emit(meta, requestID, hash, eval, outcome.Decision)
	return outcome
}

// checkLimits applies the limit battery in escalation order and stops at the
// first rejection.
func (d *Detector) checkLimits(ctx context.Context, meta types.RequestMeta, score int) ratelimit.Result {
	if r := d.limiter.CheckBurst(ctx, meta.IP, meta.Endpoint); !r.Allowed {
		return r
	}
	if r := d.limiter.CheckAdaptive(ctx, meta.IP, score); !r.Allowed {
		return r
	}
	if meta.UserID != "" {
		if r := d.limiter.CheckUser(ctx, meta.UserID); !r.Allowed {
			return r
		}
	}
	return d.limiter.CheckIP(ctx, meta.IP, ratelimit.ClassPerIP)
}

// isBlockedActor consults the redis block cache first and falls back to the
// known-actor table. Failures fail open.
func (d *Detector) isBlockedActor(ctx context.Context, ip string) bool {
	key := fmt.Sprintf(cache.BlockedIPKeyPattern, ip)
	if cached, err := d.cache.Exists(ctx, key); err == nil && cached {
		return true
	}

	known, err := d.actors.Get(ctx, ip)
	if err != nil {
		d.logger.WithError(err).WithField("ip", ip).Warn("block list lookup failed, failing open")
		return false
	}
	if known == nil || !known.IsBlocked {
		return false
	}
	if err := d.cache.Set(ctx, key, "1", blockedCacheTTL); err != nil {
		d.logger.WithError(err).WithField("ip", ip).Debug("failed to cache block verdict")
	}
	return true
}

func (d *Detector) deny(
	ctx context.Context,
	meta types.RequestMeta,
	requestID string,
	rec types.Recommendation,
	score int,
	reason string,
) Outcome {
	d.logger.WithFields(logrus.Fields{
		"ip":       meta.IP,
		"endpoint": meta.Endpoint,
		"reason":   reason,
	}).Info("request denied")

	d.record(ctx, meta, requestID, "", score, true)
	decision := types.Decision{
		Allowed:        false,
		Score:          score,
		Recommendation: rec,
		RequestID:      requestID,
	}
	d.emit(meta, requestID, "", scoring.Evaluation{Score: score, Recommendation: rec, ShouldBlock: true}, decision)
	return Outcome{Decision: decision}
}

// record appends the audit row. The audit trail must survive client
// disconnects, so the write ignores the request's cancellation.
func (d *Detector) record(ctx context.Context, meta types.RequestMeta, requestID, hash string, score int, blocked bool) {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	id, err := uuid.Parse(requestID)
	if err != nil {
		id = uuid.New()
	}
	record := &tracking.TrackedRequest{
		ID:              id,
		IPAddress:       meta.IP,
		UserAgent:       meta.UserAgent,
		Endpoint:        meta.Endpoint,
		Method:          meta.Method,
		Referer:         meta.Referer,
		UserID:          meta.UserID,
		FingerprintHash: hash,
		SuspiciousScore: score,
		Timestamp:       meta.ReceivedAt,
	}
	if err := d.repo.Insert(auditCtx, record); err != nil {
		d.logger.WithError(err).WithField("ip", meta.IP).Error("failed to record request")
		return
	}
	if blocked {
		if err := d.repo.MarkBlocked(auditCtx, record.ID.String(), d.now()); err != nil {
			d.logger.WithError(err).WithField("ip", meta.IP).Error("failed to mark request blocked")
		}
	}
}

func (d *Detector) emit(
	meta types.RequestMeta,
	requestID, hash string,
	eval scoring.Evaluation,
	decision types.Decision,
) {
	if d.emitter == nil {
		return
	}
	signals := make(map[string]int, len(eval.Results))
	for _, r := range eval.Results {
		signals[r.Signal] = r.Score
	}
	d.emitter.Emit(&telemetry.Event{
		RequestID:      requestID,
		IP:             meta.IP,
		UserID:         meta.UserID,
		Endpoint:       meta.Endpoint,
		Method:         meta.Method,
		Fingerprint:    hash,
		Score:          eval.Score,
		Recommendation: string(eval.Recommendation),
		Blocked:        !decision.Allowed,
		AutoBlocked:    eval.AutoBlocked,
		Signals:        signals,
		Timestamp:      meta.ReceivedAt,
	})
}

func normalize(meta types.RequestMeta, now time.Time) types.RequestMeta {
	if meta.ReceivedAt.IsZero() {
		meta.ReceivedAt = now
	}
	if meta.Endpoint == "" {
		meta.Endpoint = "/"
	}
	if meta.Method == "" {
		meta.Method = "GET"
	}
	return meta
}
