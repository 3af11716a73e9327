package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/cache"
	"github.com/shopguard/sentinel/pkg/domain/actor"
	"github.com/sirupsen/logrus"
)

type unblockIPHandler struct {
	logger *logrus.Logger
	actors actor.Store
	cache  *cache.Cache
}

func NewUnblockIPHandler(logger *logrus.Logger, actors actor.Store, redisCache *cache.Cache) Handler {
	return &unblockIPHandler{
		logger: logger,
		actors: actors,
		cache:  redisCache,
	}
}

func (h *unblockIPHandler) Handle(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ip is required"})
	}

	if err := h.actors.Unblock(c.UserContext(), ip); err != nil {
		h.logger.WithError(err).WithField("ip", ip).Error("failed to unblock IP")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to unblock ip"})
	}

	// Drop the cached verdicts so the unblock is not masked until TTL expiry.
	for _, pattern := range []string{cache.BlockedIPKeyPattern, cache.TempBlockKeyPattern} {
		if err := h.cache.Delete(c.UserContext(), fmt.Sprintf(pattern, ip)); err != nil {
			h.logger.WithError(err).WithField("ip", ip).Debug("failed to drop cached block")
		}
	}

	h.logger.WithField("ip", ip).Info("IP unblocked by operator")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ip": ip, "blocked": false})
}
