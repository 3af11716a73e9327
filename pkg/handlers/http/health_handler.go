package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/cache"
	"github.com/shopguard/sentinel/pkg/infra/database"
	"github.com/sirupsen/logrus"
)

type healthHandler struct {
	logger *logrus.Logger
	db     *database.DB
	cache  *cache.Cache
}

func NewHealthHandler(logger *logrus.Logger, db *database.DB, redisCache *cache.Cache) Handler {
	return &healthHandler{
		logger: logger,
		db:     db,
		cache:  redisCache,
	}
}

func (h *healthHandler) Handle(c *fiber.Ctx) error {
	status := fiber.StatusOK
	checks := fiber.Map{"database": "ok", "redis": "ok"}

	sqlDB, err := h.db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.UserContext())
	}
	if err != nil {
		h.logger.WithError(err).Warn("database health check failed")
		checks["database"] = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	if err := h.cache.Client().Ping(c.UserContext()).Err(); err != nil {
		h.logger.WithError(err).Warn("redis health check failed")
		checks["redis"] = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(checks)
}
