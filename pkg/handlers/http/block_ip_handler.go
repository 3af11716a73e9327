package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/cache"
	"github.com/shopguard/sentinel/pkg/domain/actor"
	"github.com/sirupsen/logrus"
)

type blockIPPayload struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

type blockIPHandler struct {
	logger *logrus.Logger
	actors actor.Store
	cache  *cache.Cache
}

// NewBlockIPHandler lets an operator place a manual block. Manual blocks
// overwrite whatever verdict automation had recorded for the IP.
func NewBlockIPHandler(logger *logrus.Logger, actors actor.Store, redisCache *cache.Cache) Handler {
	return &blockIPHandler{
		logger: logger,
		actors: actors,
		cache:  redisCache,
	}
}

func (h *blockIPHandler) Handle(c *fiber.Ctx) error {
	var payload blockIPPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if payload.IP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ip is required"})
	}
	reason := payload.Reason
	if reason == "" {
		reason = "blocked by operator"
	}

	err := h.actors.Upsert(c.UserContext(), &actor.KnownActor{
		IPAddress:       payload.IP,
		ProxyType:       actor.ProxyTypeBlocked,
		ConfidenceScore: 100,
		IsBlocked:       true,
		AutoBlocked:     false,
		Reason:          reason,
		DetectedAt:      time.Now(),
	})
	if err != nil {
		h.logger.WithError(err).WithField("ip", payload.IP).Error("failed to block IP")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to block ip"})
	}

	// Prime the hot-path cache so the block takes effect immediately.
	key := fmt.Sprintf(cache.BlockedIPKeyPattern, payload.IP)
	if err := h.cache.Set(c.UserContext(), key, "1", 5*time.Minute); err != nil {
		h.logger.WithError(err).WithField("ip", payload.IP).Debug("failed to cache block")
	}

	h.logger.WithFields(logrus.Fields{
		"ip":     payload.IP,
		"reason": reason,
	}).Warn("IP blocked by operator")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ip": payload.IP, "blocked": true})
}
