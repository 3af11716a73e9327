package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/ratelimit"
	"github.com/sirupsen/logrus"
)

type getStatsHandler struct {
	logger  *logrus.Logger
	limiter *ratelimit.Limiter
}

func NewGetStatsHandler(logger *logrus.Logger, limiter *ratelimit.Limiter) Handler {
	return &getStatsHandler{
		logger:  logger,
		limiter: limiter,
	}
}

func (h *getStatsHandler) Handle(c *fiber.Ctx) error {
	window := time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid window"})
		}
		window = parsed
	}

	stats, err := h.limiter.Stats(c.UserContext(), window)
	if err != nil {
		h.logger.WithError(err).Error("failed to aggregate traffic stats")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to aggregate stats"})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}
