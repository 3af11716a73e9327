package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/common"
	"github.com/shopguard/sentinel/pkg/detection"
	"github.com/shopguard/sentinel/pkg/ratelimit"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
)

// formStartedHeader carries the client-reported instant the form was
// rendered, as unix milliseconds.
const formStartedHeader = "x-form-started-at"

type detectionMiddleware struct {
	logger   *logrus.Logger
	detector *detection.Detector
}

// NewDetectionMiddleware gates every storefront request through the
// detection pipeline. Blocked requests get 403, rate limited ones 429;
// everything else proceeds with the score attached for downstream layers.
func NewDetectionMiddleware(
	logger *logrus.Logger,
	detector *detection.Detector,
) Middleware {
	return &detectionMiddleware{
		logger:   logger,
		detector: detector,
	}
}

func (m *detectionMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		meta := requestMeta(ctx)
		outcome := m.detector.Detect(ctx.UserContext(), meta)

		ctx.Locals(common.TraceIdKey, outcome.Decision.RequestID)
		if outcome.Fingerprint != "" {
			ctx.Locals(common.FingerprintContextKey, outcome.Fingerprint)
		}
		ctx.Set(common.SuspicionScoreHeader, strconv.Itoa(outcome.Decision.Score))

		if !outcome.Decision.Allowed {
			if outcome.RateLimit.Kind != "" && !outcome.RateLimit.Allowed {
				for name, value := range ratelimit.Headers(outcome.RateLimit) {
					ctx.Set(name, value)
				}
				return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":      "rate limit exceeded",
					"request_id": outcome.Decision.RequestID,
				})
			}
			return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":      "access denied",
				"request_id": outcome.Decision.RequestID,
			})
		}

		if outcome.Decision.NeedsChallenge {
			ctx.Set(common.ScoreChallengeHeader, "captcha")
		}

		c := context.WithValue(ctx.UserContext(), common.TraceIdKey, outcome.Decision.RequestID)
		ctx.SetUserContext(c)
		return ctx.Next()
	}
}

// requestMeta flattens the fiber request into the pipeline's input. Header
// names are lower-cased once here so scorers can do exact lookups.
func requestMeta(ctx *fiber.Ctx) types.RequestMeta {
	headers := make(map[string]string)
	ctx.Request().Header.VisitAll(func(key, value []byte) {
		name := strings.ToLower(string(key))
		if _, ok := headers[name]; !ok {
			headers[name] = string(value)
		}
	})

	meta := types.RequestMeta{
		IP:         ctx.IP(),
		UserAgent:  ctx.Get(fiber.HeaderUserAgent),
		Endpoint:   ctx.Path(),
		Method:     ctx.Method(),
		Referer:    ctx.Get(fiber.HeaderReferer),
		UserID:     ctx.Get("x-user-id"),
		Headers:    headers,
		ReceivedAt: time.Now(),
	}

	if strings.Contains(ctx.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		meta.FormData = types.ParseForm(ctx.Body())
	}
	if raw := headers[formStartedHeader]; raw != "" {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			meta.FormStartedAt = time.UnixMilli(millis)
		}
	}
	return meta
}
